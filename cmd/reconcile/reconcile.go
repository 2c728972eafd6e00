package reconcile

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingservice/src/broker"
	"tradingservice/src/model"
	"tradingservice/src/repository"
)

// Reconcile sweeps orders stuck in a non-terminal state and snapshots the
// day's risk metrics. Orders end up stuck when broker execution fails or
// the process dies between accepting and filling; the sweep cancels them at
// the broker and marks them cancelled locally.
type Reconcile struct {
	Log    *logger.Entry
	DB     *gorm.DB
	Broker broker.Broker
	Config *Config

	now func() time.Time
}

func (j *Reconcile) Start() error {
	if j.Config == nil {
		j.Config = GetConfig()
	}
	if j.now == nil {
		j.now = time.Now
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.Config.Timeout)
	defer cancel()

	if err := j.sweepStuckOrders(ctx); err != nil {
		return err
	}

	return j.snapshotRiskMetrics(ctx)
}

func (j *Reconcile) sweepStuckOrders(ctx context.Context) error {
	orders := (&repository.OrderRepository{}).WithDB(j.DB)

	cutoff := j.now().Add(-j.Config.StaleAfter)
	stuck, err := orders.FindStuckBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	j.Log.WithFields(map[string]interface{}{
		"cutoff": cutoff,
		"count":  len(stuck),
	}).Info("Sweeping stuck orders")

	for _, order := range stuck {
		cancelled, err := j.Broker.Cancel(ctx, order.ID, order.Symbol)
		if err != nil {
			// Leave it for the next run rather than marking cancelled while
			// the broker may still hold a live order.
			j.Log.WithError(err).WithField("order_id", order.ID).
				Warn("Broker cancel failed, keeping order for next sweep")
			continue
		}

		if err := orders.UpdateStatus(ctx, order.ID, model.OrderStatusCancelled); err != nil {
			j.Log.WithError(err).WithField("order_id", order.ID).
				Error("Failed to mark order cancelled")
			continue
		}

		j.Log.WithFields(map[string]interface{}{
			"order_id":         order.ID,
			"symbol":           order.Symbol,
			"broker_cancelled": cancelled,
		}).Info("Stuck order cancelled")
	}

	return nil
}

func (j *Reconcile) snapshotRiskMetrics(ctx context.Context) error {
	fills := (&repository.FillRepository{}).WithDB(j.DB)
	positions := (&repository.PositionRepository{}).WithDB(j.DB)
	metrics := (&repository.RiskMetricsRepository{}).WithDB(j.DB)

	now := j.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	dailyLoss, err := fills.DailyRealizedLoss(ctx, dayStart)
	if err != nil {
		return err
	}

	totalNotional, err := positions.TotalOpenNotional(ctx)
	if err != nil {
		return err
	}

	date := model.MetricsDate(now)
	if err := metrics.UpsertSnapshot(ctx, date, dailyLoss, totalNotional); err != nil {
		return err
	}

	j.Log.WithFields(map[string]interface{}{
		"date":               date,
		"daily_loss_usd":     dailyLoss,
		"total_position_usd": totalNotional,
	}).Info("Risk metrics snapshot stored")

	return nil
}
