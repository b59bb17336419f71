package screening

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/aegis-longterm/internal/contracts"
)

// Kind classifies a provider failure
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
	KindAuthExpired Kind = "auth_expired"
	KindMalformed   Kind = "malformed_response"
	KindUnavailable Kind = "unavailable" // transport failure or 5xx
)

// Sentinels for errors.Is matching on *ProviderError
var (
	ErrTimeout     = errors.New("provider timeout")
	ErrRateLimited = errors.New("provider rate limited")
	ErrAuthExpired = errors.New("provider auth expired")
	ErrMalformed   = errors.New("provider malformed response")
	ErrUnavailable = errors.New("provider unavailable")
)

func (k Kind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindRateLimited:
		return ErrRateLimited
	case KindAuthExpired:
		return ErrAuthExpired
	case KindMalformed:
		return ErrMalformed
	default:
		return ErrUnavailable
	}
}

// ProviderError is returned by Fetch for every provider-side failure
type ProviderError struct {
	Kind       Kind
	Variant    contracts.VariantKey
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("screening %s: %s", e.Variant, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of e.Kind
func (e *ProviderError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newError(kind Kind, key contracts.VariantKey, status int, err error) *ProviderError {
	return &ProviderError{Kind: kind, Variant: key, StatusCode: status, Err: err}
}

// KindOf returns the failure kind of err ("" if not a provider failure)
func KindOf(err error) Kind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return ""
}

// IsRetryable reports whether another attempt may succeed.
// Every provider error kind is retried; caller cancellation is not.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	return errors.As(err, &pe)
}
