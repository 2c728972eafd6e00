package pipeline

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned by lookups for an unknown order id.
var ErrOrderNotFound = errors.New("order not found")

// RiskRejectedError is a business rejection, not a system fault. The
// reason is surfaced to the caller verbatim so the client knows not to
// retry.
type RiskRejectedError struct {
	Reason string
}

func (e *RiskRejectedError) Error() string {
	return fmt.Sprintf("Risk blocked: %s", e.Reason)
}

// BrokerExecutionError is a system/integration fault: the broker call did
// not produce a fill. The order stays in a non-terminal state and the
// request may be retried with a new idempotency key, or swept by the
// reconcile job. Unwraps to the broker error so callers can inspect the
// failure kind (network vs exchange).
type BrokerExecutionError struct {
	Err error
}

func (e *BrokerExecutionError) Error() string {
	return fmt.Sprintf("broker execution failed: %v", e.Err)
}

func (e *BrokerExecutionError) Unwrap() error {
	return e.Err
}
