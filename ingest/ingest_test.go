package ingest

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-ingest-books/config"
	"github.com/aluiziolira/go-ingest-books/scraper"
	"github.com/aluiziolira/go-ingest-books/scraper/scrapertest"
	"github.com/aluiziolira/go-ingest-books/store"
)

type pipeline struct {
	orchestrator *Orchestrator
	transport    *httpmock.MockTransport
	store        *store.SQLiteStore
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.BaseURL = scrapertest.BaseURL
	cfg.Parallelism = 4
	cfg.MaxRetries = 0

	fetcher, err := scraper.NewCollyFetcher(cfg, nil)
	require.NoError(t, err)
	transport := httpmock.NewMockTransport()
	fetcher.SetTransport(transport)

	crawler, err := scraper.NewCrawler(cfg, fetcher)
	require.NoError(t, err)

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	return &pipeline{
		orchestrator: New(crawler, st),
		transport:    transport,
		store:        st,
	}
}

func TestIngestCatalogEndToEnd(t *testing.T) {
	p := newPipeline(t)
	scrapertest.Register(p.transport, [][]int{{1, 2, 3}, {4, 5}})

	res, err := p.orchestrator.Run(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, res.PagesRequested)
	assert.Equal(t, 5, res.BooksSaved)
	assert.True(t, res.Stopped)

	books, err := p.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 5)
	for i, b := range books {
		want := scrapertest.BookDetail(i + 1)
		assert.Equal(t, want.Title, b.Title)
		assert.Equal(t, want.UPC, b.UPC)
		assert.Equal(t, i+1, b.Stock)
		assert.Equal(t, 3, b.Rating)
		assert.Equal(t, want.Description, b.Description)
	}
	assert.Equal(t, 0, p.transport.GetCallCountInfo()["GET "+scrapertest.BaseURL+scrapertest.PagePath(4)])
}

func TestIngestResumeAfterFetchFailure(t *testing.T) {
	p := newPipeline(t)
	scrapertest.Register(p.transport, [][]int{{1, 2}, {3, 4}, {5}})
	brokenURL := scrapertest.BaseURL + scrapertest.BookPath(4)
	p.transport.RegisterResponder("GET", brokenURL, httpmock.NewStringResponder(http.StatusNotFound, ""))

	res, err := p.orchestrator.Run(context.Background(), 1, 3)
	var fetchErr *scraper.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, brokenURL, fetchErr.URL)
	assert.Equal(t, 2, res.BooksSaved)

	n, err := p.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "the failed page saves nothing")

	p.transport.RegisterResponder("GET", brokenURL,
		scrapertest.HTMLResponder(scrapertest.DetailPage(scrapertest.BookDetail(4))))

	resumeAt := res.StartPage + res.PagesCrawled
	resumed, err := p.orchestrator.Run(context.Background(), resumeAt, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, resumed.BooksSaved)

	n, err = p.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestIngestTimestampsAreSet(t *testing.T) {
	p := newPipeline(t)
	scrapertest.Register(p.transport, [][]int{{1}})

	before := time.Now().Add(-time.Minute)
	_, err := p.orchestrator.Run(context.Background(), 1, 1)
	require.NoError(t, err)

	books, err := p.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.True(t, books[0].ScrapedAt.After(before))
}
