package harvest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedFetcher struct {
	mu      sync.Mutex
	replies []error
	calls   int
}

func (f *scriptedFetcher) Fetch(_ context.Context, request FetchRequest) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.replies) == 0 {
		return Document{URL: request.URL, StatusCode: 200, Body: []byte("ok")}, nil
	}
	err := f.replies[0]
	f.replies = f.replies[1:]
	if err != nil {
		return Document{}, err
	}
	return Document{URL: request.URL, StatusCode: 200, Body: []byte("ok")}, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		RateLimitWait: time.Millisecond,
	}
}

func TestRetryingFetcher_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	inner := &scriptedFetcher{replies: []error{
		Transient(errors.New("reset")),
		Transient(errors.New("reset again")),
		nil,
	}}
	f := NewRetryingFetcher(inner, fastRetryConfig(), zap.NewNop())

	doc, err := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com/job/1"})
	require.NoError(t, err)
	require.Equal(t, 200, doc.StatusCode)
	require.Equal(t, 3, inner.callCount())
}

func TestRetryingFetcher_TerminalErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	for _, kind := range []FailureKind{KindAuth, KindOversized} {
		var first error
		switch kind {
		case KindAuth:
			first = AuthInvalid(errors.New("401"))
		case KindOversized:
			first = Oversized(10<<20, 8<<20)
		}
		inner := &scriptedFetcher{replies: []error{first}}
		f := NewRetryingFetcher(inner, fastRetryConfig(), zap.NewNop())

		_, err := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
		require.Error(t, err)
		require.Equal(t, kind, KindOf(err))
		require.Equal(t, 1, inner.callCount())
	}
}

func TestRetryingFetcher_ExhaustionIsTerminal(t *testing.T) {
	t.Parallel()

	inner := &scriptedFetcher{replies: []error{
		Transient(errors.New("a")),
		Transient(errors.New("b")),
		Transient(errors.New("c")),
		Transient(errors.New("d")),
	}}
	f := NewRetryingFetcher(inner, fastRetryConfig(), zap.NewNop())

	_, err := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
	require.Error(t, err)
	require.Equal(t, KindExhausted, KindOf(err))
	require.Equal(t, 3, inner.callCount())
}

func TestRetryingFetcher_RateLimitWaitDoesNotConsumeBudget(t *testing.T) {
	t.Parallel()

	// One rate-limit reset plus the full transient budget: the reset wait
	// must not count as an attempt, so all three budgeted calls still run.
	inner := &scriptedFetcher{replies: []error{
		RateLimited(time.Millisecond, errors.New("429")),
		Transient(errors.New("a")),
		Transient(errors.New("b")),
		nil,
	}}
	f := NewRetryingFetcher(inner, fastRetryConfig(), zap.NewNop())

	doc, err := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, 200, doc.StatusCode)
	require.Equal(t, 4, inner.callCount())
}

func TestRetryingFetcher_SecondRateLimitCountsAgainstBudget(t *testing.T) {
	t.Parallel()

	inner := &scriptedFetcher{replies: []error{
		RateLimited(time.Millisecond, errors.New("429")),
		RateLimited(time.Millisecond, errors.New("429")),
		RateLimited(time.Millisecond, errors.New("429")),
		RateLimited(time.Millisecond, errors.New("429")),
	}}
	f := NewRetryingFetcher(inner, fastRetryConfig(), zap.NewNop())

	_, err := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
	require.Error(t, err)
	require.Equal(t, KindExhausted, KindOf(err))
	// one free reset wait + three budgeted attempts
	require.Equal(t, 4, inner.callCount())
}

func TestRetryingFetcher_CancellationStopsRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &scriptedFetcher{replies: []error{Transient(errors.New("boom"))}}
	f := NewRetryingFetcher(inner, fastRetryConfig(), zap.NewNop())

	_, err := f.Fetch(ctx, FetchRequest{URL: "https://example.com"})
	require.Error(t, err)
	require.Equal(t, 1, inner.callCount())
}

func TestClassify_PassesTypedErrorsThrough(t *testing.T) {
	t.Parallel()

	fe := Classify(AuthInvalid(errors.New("nope")))
	require.Equal(t, KindAuth, fe.Kind)
	require.False(t, fe.Retriable)

	fe = Classify(errors.New("plain"))
	require.Equal(t, KindTransient, fe.Kind)
	require.True(t, fe.Retriable)

	fe = Classify(context.Canceled)
	require.False(t, fe.Retriable)
}
