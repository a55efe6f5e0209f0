package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-ingest-books/config"
)

// Fetcher retrieves the raw document behind a URL. Failures are reported
// as *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, rawURL string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f(ctx, rawURL)
}

// FetchStats summarises the requests a CollyFetcher has issued.
type FetchStats struct {
	Requests     int
	Errors       int
	Retries      int
	ErrorsByType map[string]int
}

// CollyFetcher issues GET requests through a colly collector. Each fetch
// runs on a clone of the base collector, so concurrent fetches share the
// HTTP backend and its limit rules but not their callbacks.
type CollyFetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryManager
	limiter   *rate.Limiter
	Metrics   *Metrics

	requestCount int64
	errorCount   int64

	mu           sync.Mutex
	errorsByType map[string]int
}

// NewCollyFetcher builds a fetcher configured from cfg. A nil metrics value
// disables instrumentation.
func NewCollyFetcher(cfg *config.Config, metrics *Metrics) (*CollyFetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &CollyFetcher{
		cfg:          cfg,
		collector:    collector,
		errorsByType: make(map[string]int),
		Metrics:      metrics,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	f.retry = newRetryManager(cfg, metrics)
	return f, nil
}

// SetTransport replaces the HTTP transport used for every request.
func (f *CollyFetcher) SetTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch retrieves rawURL, retrying transient failures.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := f.retry.Do(ctx, rawURL, func() ([]byte, error) {
		return f.fetchOnce(ctx, rawURL)
	})
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	return body, nil
}

// Stats returns a snapshot of request counters.
func (f *CollyFetcher) Stats() FetchStats {
	return FetchStats{
		Requests:     int(atomic.LoadInt64(&f.requestCount)),
		Errors:       int(atomic.LoadInt64(&f.errorCount)),
		Retries:      f.retry.TotalRetries(),
		ErrorsByType: f.snapshotErrors(),
	}
}

func (f *CollyFetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	c := f.collector.Clone()

	var (
		body   []byte
		status int
		start  time.Time
	)

	c.OnRequest(func(r *colly.Request) {
		start = time.Now()
		current := atomic.AddInt64(&f.requestCount, 1)
		f.Metrics.IncRequest("started")
		if current%50 == 0 {
			slog.Debug("scraper request progress",
				slog.Int64("requests", current),
				slog.String("url", r.URL.String()),
			)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
		f.Metrics.ObserveDuration(time.Since(start))
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(rawURL); err != nil {
		classified := classifyError(err, status)
		category := errorTypeLabel(classified)

		atomic.AddInt64(&f.errorCount, 1)
		f.mu.Lock()
		f.errorsByType[category]++
		f.mu.Unlock()
		f.Metrics.IncError(category)

		slog.Debug("request error",
			slog.String("url", rawURL),
			slog.Int("status", status),
			slog.String("category", category),
			slog.Any("error", err),
		)
		return nil, classified
	}
	return body, nil
}

func (f *CollyFetcher) snapshotErrors() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.errorsByType))
	for k, v := range f.errorsByType {
		out[k] = v
	}
	return out
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServerError{Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
