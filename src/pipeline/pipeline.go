package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingservice/src/broker"
	"tradingservice/src/model"
	"tradingservice/src/repository"
	"tradingservice/src/risk"
)

// SubmitRequest is a validated order submission.
type SubmitRequest struct {
	Symbol         string
	Side           string
	Type           string
	Qty            float64
	LimitPrice     *float64
	ClientID       string
	IdempotencyKey string
}

// Validate enforces the request invariants before the pipeline runs.
func (r *SubmitRequest) Validate() error {
	if r.Symbol == "" {
		return errors.New("symbol is required")
	}
	if r.Side != model.OrderSideBuy && r.Side != model.OrderSideSell {
		return fmt.Errorf("invalid side %q", r.Side)
	}
	if r.Type != model.OrderTypeMarket && r.Type != model.OrderTypeLimit {
		return fmt.Errorf("invalid type %q", r.Type)
	}
	if r.Qty <= 0 {
		return errors.New("qty must be positive")
	}
	if r.Type == model.OrderTypeLimit && (r.LimitPrice == nil || *r.LimitPrice <= 0) {
		return errors.New("limitPrice must be positive for limit orders")
	}
	if r.IdempotencyKey == "" {
		return errors.New("idempotencyKey is required")
	}
	return nil
}

// SubmitResult mirrors the wire response: the order id and its status
// after the pipeline ran.
type SubmitResult struct {
	OrderID string
	Status  string
}

// EventSink receives pipeline events. Both the webhook notifier and the
// websocket hub implement it; delivery is fire-and-continue and never
// affects the order outcome.
type EventSink interface {
	Enqueue(event string, data map[string]interface{})
}

// Pipeline orchestrates an order submission end to end: idempotency
// resolution, risk gate, broker execution, fill recording, position update
// and event notification.
type Pipeline struct {
	orders    *repository.OrderRepository
	fills     *repository.FillRepository
	positions *repository.PositionRepository
	metrics   *repository.RiskMetricsRepository
	engine    *risk.Engine
	broker    broker.Broker
	sinks     []EventSink

	executeTimeout time.Duration
	now            func() time.Time
}

func NewPipeline(
	orders *repository.OrderRepository,
	fills *repository.FillRepository,
	positions *repository.PositionRepository,
	metrics *repository.RiskMetricsRepository,
	engine *risk.Engine,
	b broker.Broker,
	executeTimeout time.Duration,
	sinks ...EventSink,
) *Pipeline {
	if executeTimeout <= 0 {
		executeTimeout = 10 * time.Second
	}

	return &Pipeline{
		orders:         orders,
		fills:          fills,
		positions:      positions,
		metrics:        metrics,
		engine:         engine,
		broker:         b,
		sinks:          sinks,
		executeTimeout: executeTimeout,
		now:            time.Now,
	}
}

// WithClock overrides the time source. Useful for tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Submit runs the order pipeline. Requests must be validated by the caller.
//
// Error taxonomy: *RiskRejectedError means do-not-retry, the business said
// no. *BrokerExecutionError means the order is persisted but non-terminal
// and the fault may be transient. Any other error is a storage fault.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	log := logger.WithFields(map[string]interface{}{
		"component":       "OrderPipeline",
		"symbol":          req.Symbol,
		"side":            req.Side,
		"idempotency_key": req.IdempotencyKey,
	})

	// 1. Idempotency resolution: a key that was already used returns the
	// original outcome with no side effects, no matter what the request
	// says this time.
	existing, err := p.orders.FindByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if existing != nil {
		log.WithField("order_id", existing.ID).Info("Duplicate submission resolved to existing order")
		return &SubmitResult{OrderID: existing.ID, Status: existing.Status}, nil
	}

	// 2. Order construction.
	order := &model.Order{
		ID:             model.NewOrderID(),
		Symbol:         req.Symbol,
		Side:           req.Side,
		Type:           req.Type,
		Qty:            req.Qty,
		LimitPrice:     req.LimitPrice,
		Status:         model.OrderStatusAccepted,
		ClientID:       req.ClientID,
		IdempotencyKey: req.IdempotencyKey,
	}

	// 3. Risk gate over aggregates read from storage.
	openNotional, err := p.positions.TotalOpenNotional(ctx)
	if err != nil {
		return nil, fmt.Errorf("read open notional: %w", err)
	}

	dailyLoss, err := p.fills.DailyRealizedLoss(ctx, p.dayStart())
	if err != nil {
		return nil, fmt.Errorf("read daily loss: %w", err)
	}

	allowed, reason := p.engine.CheckOrder(order, openNotional, dailyLoss)
	if !allowed {
		log.WithField("reason", reason).Warn("Order blocked by risk engine")
		return nil, p.reject(ctx, order, reason)
	}

	// 4. Persist the accepted order before any execution. The unique
	// index on the idempotency key is the race arbiter: the losing
	// concurrent writer falls back to the winner's order.
	if err := p.orders.Create(ctx, order); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return p.resolveConflict(ctx, req.IdempotencyKey)
		}
		return nil, fmt.Errorf("persist order: %w", err)
	}

	// 5. Execute. Only now, with the order durably recorded.
	execCtx, cancel := context.WithTimeout(ctx, p.executeTimeout)
	defer cancel()

	result, err := p.broker.Execute(execCtx, order)
	if err != nil {
		// The order must stay distinguishable from both freshly accepted
		// and terminal states; pending marks "sent to broker, outcome
		// unknown" for the reconcile job.
		if updateErr := p.orders.UpdateStatus(ctx, order.ID, model.OrderStatusPending); updateErr != nil {
			log.WithError(updateErr).Error("Failed to mark order pending after broker failure")
		}
		log.WithError(err).Error("Broker execution failed")
		return nil, &BrokerExecutionError{Err: err}
	}

	if !result.Filled {
		if err := p.orders.UpdateStatus(ctx, order.ID, model.OrderStatusPending); err != nil {
			return nil, fmt.Errorf("mark order pending: %w", err)
		}
		log.WithField("order_id", order.ID).Info("Order resting at broker, left pending")
		return &SubmitResult{OrderID: order.ID, Status: model.OrderStatusPending}, nil
	}

	// 6. Mark filled from the execution result, the sole source of truth.
	if err := p.orders.MarkFilled(ctx, order.ID, result.Qty, result.AvgPrice); err != nil {
		return nil, fmt.Errorf("mark order filled: %w", err)
	}

	// 7. Record the fill.
	fill := &model.Fill{
		ID:        model.NewFillID(),
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Qty:       result.Qty,
		Price:     result.AvgPrice,
		ClientID:  order.ClientID,
		Timestamp: p.now().UTC(),
	}
	if err := p.fills.Create(ctx, fill); err != nil {
		return nil, fmt.Errorf("record fill: %w", err)
	}

	// 8. Update the position aggregate.
	if _, err := p.positions.ApplyFill(ctx, order.Symbol, order.Side, result.Qty, result.AvgPrice); err != nil {
		return nil, fmt.Errorf("update position: %w", err)
	}

	// 9. Notify. Best-effort, never awaited by the response path.
	p.publish("order_filled", map[string]interface{}{
		"orderId":   order.ID,
		"symbol":    order.Symbol,
		"filledQty": result.Qty,
		"avgPrice":  result.AvgPrice,
	})

	log.WithField("order_id", order.ID).Info("Order filled")

	return &SubmitResult{OrderID: order.ID, Status: model.OrderStatusFilled}, nil
}

// GetOrder fetches an order by id for the lookup endpoint.
func (p *Pipeline) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := p.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// reject persists the rejected order for the audit trail, bumps the daily
// block counter and returns the risk error. Rejected orders keep their
// row: every intake decision stays visible.
func (p *Pipeline) reject(ctx context.Context, order *model.Order, reason string) error {
	order.Status = model.OrderStatusRejected

	if err := p.orders.Create(ctx, order); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent duplicate won the key; the risk outcome for
			// this request is still a rejection.
			logger.WithFields(map[string]interface{}{
				"component":       "OrderPipeline",
				"idempotency_key": order.IdempotencyKey,
			}).Info("Rejected order lost idempotency race, skipping persist")
		} else {
			logger.WithError(err).Error("Failed to persist rejected order")
		}
	}

	if err := p.metrics.IncrementBlocks(ctx, model.MetricsDate(p.now())); err != nil {
		logger.WithError(err).Error("Failed to increment risk block counter")
	}

	return &RiskRejectedError{Reason: reason}
}

// resolveConflict re-reads the winning order after losing the
// idempotency-key insert race.
func (p *Pipeline) resolveConflict(ctx context.Context, key string) (*SubmitResult, error) {
	winner, err := p.orders.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("re-read after idempotency conflict: %w", err)
	}
	if winner == nil {
		return nil, fmt.Errorf("idempotency conflict for key %q but winner not found", key)
	}

	logger.WithFields(map[string]interface{}{
		"component":       "OrderPipeline",
		"idempotency_key": key,
		"order_id":        winner.ID,
	}).Info("Idempotency race lost, returning winner")

	return &SubmitResult{OrderID: winner.ID, Status: winner.Status}, nil
}

func (p *Pipeline) publish(event string, data map[string]interface{}) {
	for _, sink := range p.sinks {
		sink.Enqueue(event, data)
	}
}

// dayStart returns local midnight for daily aggregates.
func (p *Pipeline) dayStart() time.Time {
	now := p.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
