package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-ingest-books/config"
)

// retryManager re-issues requests that failed with a transient error, using
// capped exponential backoff. Permanent failures are returned immediately.
type retryManager struct {
	cfg     *config.Config
	metrics *Metrics

	mu           sync.Mutex
	totalRetries int
}

func newRetryManager(cfg *config.Config, metrics *Metrics) *retryManager {
	return &retryManager{
		cfg:     cfg,
		metrics: metrics,
	}
}

// Do calls fn until it succeeds, fails permanently, exhausts MaxRetries or
// ctx is done. The last error is returned.
func (rm *retryManager) Do(ctx context.Context, url string, fn func() ([]byte, error)) ([]byte, error) {
	attempt := 0
	for {
		body, err := fn()
		if err == nil {
			return body, nil
		}
		if !retryable(err) || attempt >= rm.cfg.MaxRetries || ctx.Err() != nil {
			return nil, err
		}

		attempt++
		rm.mu.Lock()
		rm.totalRetries++
		rm.mu.Unlock()
		if rm.metrics != nil {
			rm.metrics.IncRetries()
		}

		delay := rm.backoff(attempt)
		slog.Debug("retrying request",
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, err
		case <-timer.C:
		}
	}
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}
