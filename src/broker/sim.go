package broker

import (
	"context"
	"math/rand"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingservice/src/model"
)

const maxSlippage = 0.001

// SimBroker is the deterministic simulated execution variant: it fills
// every order at the reference price plus a small bounded slippage, and
// never fills a limit order through its limit price.
type SimBroker struct {
	prices   map[string]float64
	balances map[string]float64
	rng      *rand.Rand
}

func NewSimBroker() *SimBroker {
	return NewSimBrokerWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSimBrokerWithRand takes the slippage source explicitly so tests can
// seed it.
func NewSimBrokerWithRand(rng *rand.Rand) *SimBroker {
	return &SimBroker{
		prices: map[string]float64{
			"BTC/USDT": 58000.0,
			"ETH/USDT": 2400.0,
			"SOL/USDT": 140.0,
		},
		balances: map[string]float64{
			"USDT": 100000.0,
			"BTC":  1.0,
			"ETH":  10.0,
			"SOL":  100.0,
		},
		rng: rng,
	}
}

func (b *SimBroker) Execute(ctx context.Context, order *model.Order) (*ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: ErrKindNetwork, Err: err}
	}

	basePrice := b.Price(order.Symbol)
	slippage := (b.rng.Float64()*2 - 1) * maxSlippage
	executionPrice := basePrice * (1 + slippage)

	// Limit orders are clamped to the limit boundary: a buy never fills
	// above its limit, a sell never fills below it.
	if order.Type == model.OrderTypeLimit && order.LimitPrice != nil {
		if order.Side == model.OrderSideBuy && executionPrice > *order.LimitPrice {
			executionPrice = *order.LimitPrice
		} else if order.Side == model.OrderSideSell && executionPrice < *order.LimitPrice {
			executionPrice = *order.LimitPrice
		}
	}

	logger.WithFields(map[string]interface{}{
		"broker":   "sim",
		"order_id": order.ID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"qty":      order.Qty,
		"price":    executionPrice,
	}).Info("SimBroker executed order")

	return &ExecutionResult{
		OrderID:  order.ID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Qty:      order.Qty,
		AvgPrice: executionPrice,
		Filled:   true,
	}, nil
}

func (b *SimBroker) Cancel(ctx context.Context, orderID string, symbol string) (bool, error) {
	logger.WithFields(map[string]interface{}{
		"broker":   "sim",
		"order_id": orderID,
		"symbol":   symbol,
	}).Info("SimBroker cancelled order")

	return true, nil
}

func (b *SimBroker) GetBalance(ctx context.Context, asset string) (float64, error) {
	return b.balances[asset], nil
}

// Price implements PriceSource with the static reference prices.
func (b *SimBroker) Price(symbol string) float64 {
	if price, ok := b.prices[symbol]; ok {
		return price
	}
	return 100.0
}
