package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skathuria/modelgw/pkg/breaker"
	"github.com/skathuria/modelgw/pkg/ledger"
	"github.com/skathuria/modelgw/pkg/moderation"
)

// ErrInvalidRequest reports a request the router refused to run at all
// (empty prompt or empty backend chain).
var ErrInvalidRequest = errors.New("gateway: invalid request")

// BackendFailure records the terminal outcome of one backend in a chain.
type BackendFailure struct {
	Backend string `json:"backend"`
	Err     error  `json:"-"`
	// Skipped is true when the circuit was open and the backend was never
	// invoked.
	Skipped bool `json:"skipped"`
}

// AggregateFailureError reports that every backend in the chain failed or
// was skipped. Attempts preserves chain order for diagnosis.
type AggregateFailureError struct {
	CorrelationID string
	Attempts      []BackendFailure
}

func (e *AggregateFailureError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Backend, a.Err))
	}
	return fmt.Sprintf("gateway: all %d backends failed [%s]", len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes the per-backend errors to errors.Is/As.
func (e *AggregateFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// IsCostLimit reports whether err is a ledger rejection.
func IsCostLimit(err error) bool {
	var le *ledger.LimitError
	return errors.As(err, &le)
}

// IsPolicyViolation reports whether err is a moderation-gate rejection.
func IsPolicyViolation(err error) bool {
	var pe *moderation.PolicyViolationError
	return errors.As(err, &pe)
}

// IsAggregateFailure reports whether err means the whole chain was
// exhausted.
func IsAggregateFailure(err error) bool {
	var ae *AggregateFailureError
	return errors.As(err, &ae)
}

// IsCircuitOpen reports whether err is a breaker fast-fail. These never
// surface to callers on their own; they appear only inside an aggregate.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, breaker.ErrCircuitOpen)
}
