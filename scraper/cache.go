package scraper

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingFetcher keeps the most recently fetched documents in memory so a
// resumed or repeated run in the same process does not download them again.
// Failed fetches are never cached.
type CachingFetcher struct {
	next    Fetcher
	cache   *lru.Cache[string, []byte]
	metrics *Metrics
}

// NewCachingFetcher wraps next with an LRU cache holding up to size documents.
func NewCachingFetcher(next Fetcher, size int, metrics *Metrics) (*CachingFetcher, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create document cache: %w", err)
	}
	return &CachingFetcher{next: next, cache: cache, metrics: metrics}, nil
}

// Fetch returns the cached document for rawURL or fetches and caches it.
func (c *CachingFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if body, ok := c.cache.Get(rawURL); ok {
		c.metrics.IncRequest("cache_hit")
		return body, nil
	}
	body, err := c.next.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	c.cache.Add(rawURL, body)
	return body, nil
}

// Len reports how many documents are cached.
func (c *CachingFetcher) Len() int {
	return c.cache.Len()
}
