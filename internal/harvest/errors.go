package harvest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// FailureKind classifies terminal and retryable fetch failures.
type FailureKind string

// Failure kinds surfaced by fetchers and the retry wrapper.
const (
	KindTransient   FailureKind = "transient"
	KindRateLimited FailureKind = "rate_limited"
	KindAuth        FailureKind = "auth"
	KindOversized   FailureKind = "oversized"
	KindMalformed   FailureKind = "malformed"
	KindExhausted   FailureKind = "exhausted"
)

// FetchError is the typed failure attached to every unsuccessful fetch.
type FetchError struct {
	Kind      FailureKind
	Retriable bool
	// RetryAfter carries the source-declared reset duration for rate limits.
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch failed (%s)", e.Kind)
	}
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient wraps a retryable network-level failure.
func Transient(err error) *FetchError {
	return &FetchError{Kind: KindTransient, Retriable: true, Err: err}
}

// RateLimited wraps a throttling response with its declared reset duration.
func RateLimited(after time.Duration, err error) *FetchError {
	return &FetchError{Kind: KindRateLimited, Retriable: true, RetryAfter: after, Err: err}
}

// AuthInvalid wraps a credentials failure; terminal for the source.
func AuthInvalid(err error) *FetchError {
	return &FetchError{Kind: KindAuth, Err: err}
}

// Oversized marks a body that exceeded the configured byte cap.
func Oversized(got, cap int) *FetchError {
	return &FetchError{
		Kind: KindOversized,
		Err:  fmt.Errorf("body of %d bytes exceeds cap of %d", got, cap),
	}
}

// Malformed marks a body that failed the content sanity check. It is
// retryable: challenge pages are frequently transient.
func Malformed(err error) *FetchError {
	return &FetchError{Kind: KindMalformed, Retriable: true, Err: err}
}

// Exhausted marks the end of the retry budget, keeping the last cause.
func Exhausted(attempts int, last error) *FetchError {
	return &FetchError{
		Kind: KindExhausted,
		Err:  fmt.Errorf("gave up after %d attempts: %w", attempts, last),
	}
}

// Classify maps an arbitrary error onto the failure taxonomy. Typed errors
// pass through; context cancellation is terminal; plain network errors are
// transient.
func Classify(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: KindTransient, Retriable: false, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(err)
	}
	return Transient(err)
}

// KindOf reports the failure kind of err, or empty for untyped errors.
func KindOf(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
