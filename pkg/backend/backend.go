package backend

import (
	"context"
	"errors"
	"fmt"
)

// Adapter is the contract a model-provider integration must satisfy.
// The gateway never speaks a provider's wire protocol itself; all it needs
// from an adapter is the payload/usage/cost outcome of one invocation, or a
// classified failure.
type Adapter interface {
	// ID returns the backend identifier (e.g. "gpt4-chat", "sdxl-image").
	ID() string

	// Invoke sends the prompt to the provider. Failures must be returned as
	// (or wrap) *Error so the retry policy can tell transient from fatal.
	Invoke(ctx context.Context, prompt string, opts Options) (*Invocation, error)
}

// Options are the provider-agnostic generation knobs. They participate in
// the request fingerprint, so the zero value must be stable.
type Options struct {
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

// Invocation is the outcome of one successful provider call.
type Invocation struct {
	Payload   []byte
	TokensIn  int
	TokensOut int
	CostUSD   float64
}

// StatusKind classifies provider failures independent of any wire protocol.
type StatusKind string

const (
	StatusTimeout     StatusKind = "timeout"
	StatusRateLimited StatusKind = "rate_limited"
	StatusUpstream    StatusKind = "upstream_error"
	StatusInvalid     StatusKind = "invalid_request"
	StatusAuth        StatusKind = "auth_failed"
)

// Error is a classified backend failure.
type Error struct {
	Backend   string
	Kind      StatusKind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified failure for a backend. Timeouts, throttling
// and transient upstream errors are retryable; validation and auth failures
// are fatal.
func NewError(backendID string, kind StatusKind, err error) *Error {
	retryable := true
	switch kind {
	case StatusInvalid, StatusAuth:
		retryable = false
	}
	return &Error{Backend: backendID, Kind: kind, Retryable: retryable, Err: err}
}

// IsRetryable reports whether err may succeed on a later attempt. Errors
// that carry no classification (network hiccups, context deadlines) are
// treated as retryable so a flaky transport never becomes permanent.
func IsRetryable(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Retryable
	}
	return true
}

// IsFatal reports whether err should abort all attempts against a backend.
func IsFatal(err error) bool { return !IsRetryable(err) }
