package broker

import (
	"context"
	"fmt"

	"tradingservice/src/model"
)

// ExecutionResult is the broker's account of what happened to an order.
// It is the sole source of truth for filled quantity and average price.
type ExecutionResult struct {
	OrderID  string
	Symbol   string
	Side     string
	Qty      float64
	AvgPrice float64
	Filled   bool
}

// Broker is the pluggable execution capability. Execute must only be
// called once per order, after the order is durably persisted in accepted
// state: executing a trade with no record is never acceptable.
type Broker interface {
	Execute(ctx context.Context, order *model.Order) (*ExecutionResult, error)
	Cancel(ctx context.Context, orderID string, symbol string) (bool, error)
	GetBalance(ctx context.Context, asset string) (float64, error)
}

// PriceSource is the pricing capability used for mark-to-market PnL on
// position queries. Not every broker variant has to provide it.
type PriceSource interface {
	Price(symbol string) float64
}

// ErrorKind separates transport faults from exchange-level rejections so
// the caller can decide retry policy.
type ErrorKind string

const (
	ErrKindNetwork  ErrorKind = "network"
	ErrKindExchange ErrorKind = "exchange"
)

// Error wraps a broker failure with its kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("broker %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
