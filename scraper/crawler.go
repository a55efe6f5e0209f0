package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-ingest-books/config"
	"github.com/aluiziolira/go-ingest-books/models"
	"github.com/aluiziolira/go-ingest-books/parser"
)

// Crawler turns one numbered listing page into the books it links to.
type Crawler struct {
	fetcher   Fetcher
	extractor *parser.Extractor
	base      *url.URL
	listing   string
	metrics   *Metrics
	logger    *slog.Logger
}

// CrawlerOption customises a Crawler.
type CrawlerOption func(*Crawler)

// WithExtractor replaces the default rule-table extractor.
func WithExtractor(e *parser.Extractor) CrawlerOption {
	return func(c *Crawler) {
		c.extractor = e
	}
}

// WithMetrics records extraction counters on m.
func WithMetrics(m *Metrics) CrawlerOption {
	return func(c *Crawler) {
		c.metrics = m
	}
}

// WithLogger sets the logger used for extraction warnings.
func WithLogger(l *slog.Logger) CrawlerOption {
	return func(c *Crawler) {
		c.logger = l
	}
}

// NewCrawler builds a crawler for the catalog at cfg.BaseURL.
func NewCrawler(cfg *config.Config, fetcher Fetcher, opts ...CrawlerOption) (*Crawler, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	c := &Crawler{
		fetcher:   fetcher,
		extractor: parser.NewExtractor(nil),
		base:      base,
		listing:   cfg.ListingPath,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PageURL returns the listing URL for a 1-based page number.
func (c *Crawler) PageURL(page int) string {
	ref := &url.URL{Path: fmt.Sprintf(c.listing, page)}
	return c.base.ResolveReference(ref).String()
}

// Crawl fetches listing page number page and every detail page it links to.
// Detail pages are fetched concurrently and the page succeeds only if all
// of them do. A listing without item links yields an empty slice.
func (c *Crawler) Crawl(ctx context.Context, page int) ([]*models.Book, error) {
	if page < 1 {
		return nil, fmt.Errorf("page must be at least 1, got %d", page)
	}

	pageURL := c.PageURL(page)
	body, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	links, err := c.extractor.LinksBytes(body, c.base)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return []*models.Book{}, nil
	}

	books := make([]*models.Book, len(links))
	g, gctx := errgroup.WithContext(ctx)
	for i, link := range links {
		g.Go(func() error {
			book, err := c.detail(gctx, link)
			if err != nil {
				return err
			}
			books[i] = book
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("listing page crawled",
		slog.Int("page", page),
		slog.String("url", pageURL),
		slog.Int("books", len(books)),
	)
	return books, nil
}

func (c *Crawler) detail(ctx context.Context, link string) (*models.Book, error) {
	body, err := c.fetcher.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}

	extraction, err := c.extractor.ExtractBytes(link, body)
	if err != nil {
		return nil, err
	}
	for _, warn := range extraction.Warnings {
		c.metrics.IncWarning(warn.Field)
		c.logger.Warn("field degraded to zero value",
			slog.String("field", warn.Field),
			slog.String("url", link),
			slog.Any("error", warn.Err),
		)
	}

	if err := parser.ValidateBook(extraction.Book); err != nil {
		return nil, &parser.ParseError{Field: "record", URL: link, Err: err}
	}
	c.metrics.IncItems()
	return extraction.Book, nil
}
