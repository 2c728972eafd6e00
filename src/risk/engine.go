package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradingservice/src/model"
)

// referencePrices are the marks used to estimate the notional of market
// orders, which carry no limit price.
var referencePrices = map[string]float64{
	"BTC/USDT": 58000.0,
	"ETH/USDT": 2400.0,
	"SOL/USDT": 140.0,
}

const defaultReferencePrice = 100.0

// Engine evaluates an order against the configured limits before execution.
// It is a pure decision function over externally supplied aggregates: the
// caller reads open notional and daily loss from storage and passes them
// in, so the engine itself has no side effects and no I/O.
type Engine struct {
	whitelist       map[string]struct{}
	maxPositionUSD  decimal.Decimal
	maxDailyLossUSD decimal.Decimal
}

func NewEngine(cfg Config) *Engine {
	whitelist := make(map[string]struct{}, len(cfg.SymbolWhitelist))
	for _, symbol := range cfg.SymbolWhitelist {
		whitelist[symbol] = struct{}{}
	}

	return &Engine{
		whitelist:       whitelist,
		maxPositionUSD:  decimal.NewFromFloat(cfg.MaxPositionUSD),
		maxDailyLossUSD: decimal.NewFromFloat(cfg.MaxDailyLossUSD),
	}
}

// CheckOrder runs the limit checks in order, short-circuiting on the first
// failure:
//
//  1. symbol must be whitelisted;
//  2. the order's notional plus the current open notional must stay within
//     the position ceiling;
//  3. the realized daily loss must be below the daily loss limit.
//
// Returns (true, "OK") when every check passes.
func (e *Engine) CheckOrder(
	order *model.Order,
	openNotionalUSD float64,
	dailyLossUSD float64,
) (bool, string) {

	if _, ok := e.whitelist[order.Symbol]; !ok {
		return false, fmt.Sprintf("Symbol %s not in whitelist", order.Symbol)
	}

	notional := decimal.NewFromFloat(order.Qty).
		Mul(decimal.NewFromFloat(e.priceForOrder(order)))

	total := notional.Add(decimal.NewFromFloat(openNotionalUSD))
	if total.GreaterThan(e.maxPositionUSD) {
		return false, fmt.Sprintf("Position limit exceeded: %s > %s", total, e.maxPositionUSD)
	}

	dailyLoss := decimal.NewFromFloat(dailyLossUSD)
	if dailyLoss.GreaterThanOrEqual(e.maxDailyLossUSD) {
		return false, fmt.Sprintf("Daily loss limit reached: %s", dailyLoss)
	}

	return true, "OK"
}

// priceForOrder values the order at its limit price when present,
// otherwise at the symbol's reference price.
func (e *Engine) priceForOrder(order *model.Order) float64 {
	if order.LimitPrice != nil && *order.LimitPrice > 0 {
		return *order.LimitPrice
	}
	return ReferencePrice(order.Symbol)
}

// ReferencePrice returns the static mark used for market order valuation.
func ReferencePrice(symbol string) float64 {
	if price, ok := referencePrices[symbol]; ok {
		return price
	}
	return defaultReferencePrice
}
