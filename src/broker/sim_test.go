package broker

import (
	"context"
	"math/rand"
	"testing"

	"github.com/nntaoli-project/goex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingservice/src/model"
)

func TestSimBrokerMarketExecution(t *testing.T) {
	b := NewSimBrokerWithRand(rand.New(rand.NewSource(1)))

	order := &model.Order{
		ID:     "ord_test0001",
		Symbol: "BTC/USDT",
		Side:   model.OrderSideBuy,
		Type:   model.OrderTypeMarket,
		Qty:    0.01,
	}

	result, err := b.Execute(context.Background(), order)
	require.NoError(t, err)

	assert.True(t, result.Filled)
	assert.Equal(t, order.ID, result.OrderID)
	assert.Equal(t, 0.01, result.Qty)

	// slippage is bounded at ±0.1% of the reference price
	assert.InDelta(t, 58000.0, result.AvgPrice, 58000.0*maxSlippage)
}

func TestSimBrokerLimitClamp(t *testing.T) {
	t.Run("buy never fills above the limit", func(t *testing.T) {
		limit := 57000.0
		order := &model.Order{
			ID:         "ord_test0002",
			Symbol:     "BTC/USDT",
			Side:       model.OrderSideBuy,
			Type:       model.OrderTypeLimit,
			Qty:        0.01,
			LimitPrice: &limit,
		}

		// market at 58000, limit below market: every seed must clamp
		for seed := int64(0); seed < 25; seed++ {
			b := NewSimBrokerWithRand(rand.New(rand.NewSource(seed)))
			result, err := b.Execute(context.Background(), order)
			require.NoError(t, err)
			assert.LessOrEqual(t, result.AvgPrice, limit)
		}
	})

	t.Run("sell never fills below the limit", func(t *testing.T) {
		limit := 59000.0
		order := &model.Order{
			ID:         "ord_test0003",
			Symbol:     "BTC/USDT",
			Side:       model.OrderSideSell,
			Type:       model.OrderTypeLimit,
			Qty:        0.01,
			LimitPrice: &limit,
		}

		for seed := int64(0); seed < 25; seed++ {
			b := NewSimBrokerWithRand(rand.New(rand.NewSource(seed)))
			result, err := b.Execute(context.Background(), order)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, result.AvgPrice, limit)
		}
	})
}

func TestSimBrokerCancelAndBalance(t *testing.T) {
	b := NewSimBroker()

	ok, err := b.Cancel(context.Background(), "ord_whatever", "BTC/USDT")
	require.NoError(t, err)
	assert.True(t, ok)

	balance, err := b.GetBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 100000.0, balance)

	balance, err = b.GetBalance(context.Background(), "XRP")
	require.NoError(t, err)
	assert.Equal(t, 0.0, balance)
}

func TestSimBrokerPriceFallback(t *testing.T) {
	b := NewSimBroker()
	assert.Equal(t, 2400.0, b.Price("ETH/USDT"))
	assert.Equal(t, 100.0, b.Price("UNKNOWN/USDT"))
}

func TestGoexStatusMapping(t *testing.T) {
	assert.Equal(t, model.OrderStatusFilled, mapStatus(goex.ORDER_FINISH))
	assert.Equal(t, model.OrderStatusCancelled, mapStatus(goex.ORDER_CANCEL))
	assert.Equal(t, model.OrderStatusCancelled, mapStatus(goex.ORDER_REJECT))
	assert.Equal(t, model.OrderStatusCancelled, mapStatus(goex.ORDER_FAIL))
	assert.Equal(t, model.OrderStatusPending, mapStatus(goex.ORDER_UNFINISH))
	assert.Equal(t, model.OrderStatusPending, mapStatus(goex.ORDER_PART_FINISH))
}
