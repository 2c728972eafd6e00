package risk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingservice/src/model"
)

func testConfig() Config {
	return Config{
		SymbolWhitelist: []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"},
		MaxPositionUSD:  5000,
		MaxDailyLossUSD: 500,
	}
}

func marketOrder(symbol string, qty float64) *model.Order {
	return &model.Order{
		ID:     model.NewOrderID(),
		Symbol: symbol,
		Side:   model.OrderSideBuy,
		Type:   model.OrderTypeMarket,
		Qty:    qty,
	}
}

func limitOrder(symbol string, qty, limitPrice float64) *model.Order {
	o := marketOrder(symbol, qty)
	o.Type = model.OrderTypeLimit
	o.LimitPrice = &limitPrice
	return o
}

func TestCheckOrderWhitelist(t *testing.T) {
	engine := NewEngine(testConfig())

	allowed, reason := engine.CheckOrder(marketOrder("DOGE/USDT", 0.0001), 0, 0)
	require.False(t, allowed)
	assert.True(t, strings.Contains(reason, "not in whitelist"), "reason: %s", reason)

	// size does not matter, the whitelist check short-circuits first
	allowed, _ = engine.CheckOrder(marketOrder("XRP/USDT", 1e9), 0, 0)
	assert.False(t, allowed)
}

func TestCheckOrderPositionLimit(t *testing.T) {
	engine := NewEngine(testConfig())

	t.Run("order pushing total over the ceiling is rejected", func(t *testing.T) {
		// open notional 4999, adding 2 > 5000
		allowed, reason := engine.CheckOrder(limitOrder("BTC/USDT", 2, 1), 4999, 0)
		require.False(t, allowed)
		assert.Contains(t, reason, "Position limit exceeded")
	})

	t.Run("order keeping total at the ceiling is allowed", func(t *testing.T) {
		allowed, reason := engine.CheckOrder(limitOrder("BTC/USDT", 1, 1), 4999, 0)
		require.True(t, allowed, "reason: %s", reason)
		assert.Equal(t, "OK", reason)
	})

	t.Run("market order valued at reference price", func(t *testing.T) {
		// 0.1 BTC * 58000 = 5800 > 5000
		allowed, reason := engine.CheckOrder(marketOrder("BTC/USDT", 0.1), 0, 0)
		require.False(t, allowed)
		assert.Contains(t, reason, "Position limit exceeded")
	})
}

func TestCheckOrderDailyLossLimit(t *testing.T) {
	engine := NewEngine(testConfig())

	allowed, reason := engine.CheckOrder(limitOrder("ETH/USDT", 0.01, 2400), 0, 500)
	require.False(t, allowed)
	assert.Contains(t, reason, "Daily loss limit reached")

	allowed, _ = engine.CheckOrder(limitOrder("ETH/USDT", 0.01, 2400), 0, 499.99)
	assert.True(t, allowed)
}

func TestCheckOrderAllPass(t *testing.T) {
	engine := NewEngine(testConfig())

	allowed, reason := engine.CheckOrder(marketOrder("SOL/USDT", 1), 100, 10)
	require.True(t, allowed)
	assert.Equal(t, "OK", reason)
}

func TestReferencePriceFallback(t *testing.T) {
	assert.Equal(t, 58000.0, ReferencePrice("BTC/USDT"))
	assert.Equal(t, 100.0, ReferencePrice("UNKNOWN/USDT"))
}
