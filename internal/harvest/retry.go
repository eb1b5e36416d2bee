package harvest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls the retry wrapper around a Fetcher.
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	RateLimitWait time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 250 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.RateLimitWait <= 0 {
		c.RateLimitWait = 30 * time.Second
	}
	return c
}

// RetryingFetcher wraps a Fetcher with bounded attempts, jittered
// exponential backoff, and failure classification. Rate-limit waits honor
// the source-declared reset and do not consume the attempt budget more than
// once per reset.
type RetryingFetcher struct {
	inner  Fetcher
	cfg    RetryConfig
	logger *zap.Logger
}

// NewRetryingFetcher builds the wrapper.
func NewRetryingFetcher(inner Fetcher, cfg RetryConfig, logger *zap.Logger) *RetryingFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingFetcher{inner: inner, cfg: cfg.withDefaults(), logger: logger}
}

// Fetch attempts the request until success, a terminal failure, or budget
// exhaustion.
func (f *RetryingFetcher) Fetch(ctx context.Context, request FetchRequest) (Document, error) {
	var last error
	freeRateWait := true

	for attempt := 0; attempt < f.cfg.MaxAttempts; {
		doc, err := f.inner.Fetch(ctx, request)
		if err == nil {
			return doc, nil
		}
		fe := Classify(err)
		last = err

		if !fe.Retriable {
			return Document{}, err
		}
		if ctx.Err() != nil {
			return Document{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		}

		if fe.Kind == KindRateLimited && freeRateWait {
			freeRateWait = false
			wait := fe.RetryAfter
			if wait <= 0 {
				wait = f.cfg.RateLimitWait
			}
			f.logger.Warn("rate limited, waiting for reset",
				zap.String("url", request.URL),
				zap.Duration("wait", wait),
			)
			if err := sleepCtx(ctx, wait); err != nil {
				return Document{}, err
			}
			continue
		}

		attempt++
		if attempt >= f.cfg.MaxAttempts {
			break
		}
		delay := f.backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", request.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, delay); err != nil {
			return Document{}, err
		}
	}

	return Document{}, Exhausted(f.cfg.MaxAttempts, last)
}

func (f *RetryingFetcher) backoff(attempt int) time.Duration {
	delay := float64(f.cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(f.cfg.MaxDelay) {
		delay = float64(f.cfg.MaxDelay)
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
