package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"tradingservice/src/model"
)

// GoexBroker is the live-exchange execution variant built on goex.
// In-flight calls are bounded by a weighted semaphore so a burst of
// submissions cannot exceed the venue's rate limits.
type GoexBroker struct {
	exchange goex.API
	inflight *semaphore.Weighted
}

func NewGoexBroker(cfg Config) *GoexBroker {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = binance.GLOBAL_API_BASE_URL
	}

	apiConfig := &goex.APIConfig{
		HttpClient:   http.DefaultClient,
		Endpoint:     endpoint,
		ApiKey:       cfg.APIKey,
		ApiSecretKey: cfg.APISecret,
	}

	maxInflight := cfg.MaxInflight
	if maxInflight <= 0 {
		maxInflight = 1
	}

	return &GoexBroker{
		exchange: binance.NewWithConfig(apiConfig),
		inflight: semaphore.NewWeighted(maxInflight),
	}
}

func (b *GoexBroker) Execute(ctx context.Context, order *model.Order) (*ExecutionResult, error) {
	if err := b.inflight.Acquire(ctx, 1); err != nil {
		return nil, &Error{Kind: ErrKindNetwork, Err: err}
	}
	defer b.inflight.Release(1)

	pair := currencyPair(order.Symbol)
	amount := strconv.FormatFloat(order.Qty, 'f', -1, 64)

	var (
		placed *goex.Order
		err    error
	)

	switch {
	case order.Type == model.OrderTypeLimit && order.LimitPrice != nil:
		price := strconv.FormatFloat(*order.LimitPrice, 'f', -1, 64)
		if order.Side == model.OrderSideBuy {
			placed, err = b.exchange.LimitBuy(amount, price, pair)
		} else {
			placed, err = b.exchange.LimitSell(amount, price, pair)
		}
	default:
		if order.Side == model.OrderSideBuy {
			placed, err = b.exchange.MarketBuy(amount, "0", pair)
		} else {
			placed, err = b.exchange.MarketSell(amount, "0", pair)
		}
	}

	if err != nil {
		classified := classify(err)
		logger.WithFields(map[string]interface{}{
			"broker":   "goex",
			"order_id": order.ID,
			"symbol":   order.Symbol,
			"kind":     classified.Kind,
		}).WithError(err).Error("Exchange order placement failed")

		return nil, classified
	}

	status := mapStatus(placed.Status)
	avgPrice := placed.AvgPrice
	if avgPrice == 0 {
		avgPrice = placed.Price
	}

	logger.WithFields(map[string]interface{}{
		"broker":            "goex",
		"order_id":          order.ID,
		"exchange_order_id": placed.OrderID2,
		"deal_amount":       placed.DealAmount,
		"avg_price":         avgPrice,
		"status":            status,
	}).Info("Exchange order placed")

	return &ExecutionResult{
		OrderID:  order.ID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Qty:      placed.DealAmount,
		AvgPrice: avgPrice,
		Filled:   status == model.OrderStatusFilled,
	}, nil
}

func (b *GoexBroker) Cancel(ctx context.Context, orderID string, symbol string) (bool, error) {
	if err := b.inflight.Acquire(ctx, 1); err != nil {
		return false, &Error{Kind: ErrKindNetwork, Err: err}
	}
	defer b.inflight.Release(1)

	ok, err := b.exchange.CancelOrder(orderID, currencyPair(symbol))
	if err != nil {
		classified := classify(err)
		logger.WithFields(map[string]interface{}{
			"broker":   "goex",
			"order_id": orderID,
			"symbol":   symbol,
			"kind":     classified.Kind,
		}).WithError(err).Error("Exchange order cancel failed")

		return false, classified
	}

	return ok, nil
}

func (b *GoexBroker) GetBalance(ctx context.Context, asset string) (float64, error) {
	if err := b.inflight.Acquire(ctx, 1); err != nil {
		return 0, &Error{Kind: ErrKindNetwork, Err: err}
	}
	defer b.inflight.Release(1)

	account, err := b.exchange.GetAccount()
	if err != nil {
		return 0, classify(err)
	}

	sub, ok := account.SubAccounts[goex.NewCurrency(asset, "")]
	if !ok {
		logger.WithFields(map[string]interface{}{
			"broker": "goex",
			"asset":  asset,
		}).Warn("Asset not found in exchange account")

		return 0, nil
	}

	return sub.Amount, nil
}

// currencyPair converts internal "BTC/USDT" symbols to goex pairs.
func currencyPair(symbol string) goex.CurrencyPair {
	return goex.NewCurrencyPair2(strings.ReplaceAll(symbol, "/", "_"))
}

// mapStatus translates exchange-reported order status into the internal
// status enum. Anything not clearly terminal stays pending so the
// reconcile job can pick it up.
func mapStatus(status goex.TradeStatus) string {
	switch status {
	case goex.ORDER_FINISH:
		return model.OrderStatusFilled
	case goex.ORDER_CANCEL, goex.ORDER_REJECT, goex.ORDER_FAIL:
		return model.OrderStatusCancelled
	default:
		return model.OrderStatusPending
	}
}

// classify separates transport faults from exchange-level rejections so
// the pipeline can tell "maybe retry" from "don't retry".
func classify(err error) *Error {
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return &Error{Kind: ErrKindNetwork, Err: err}
	}
	return &Error{Kind: ErrKindExchange, Err: fmt.Errorf("exchange rejected request: %w", err)}
}
