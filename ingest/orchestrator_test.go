package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-ingest-books/models"
	"github.com/aluiziolira/go-ingest-books/parser"
	"github.com/aluiziolira/go-ingest-books/scraper"
	"github.com/aluiziolira/go-ingest-books/store"
)

type fakeCrawler struct {
	pages map[int][]*models.Book
	errs  map[int]error
	calls []int
}

func (f *fakeCrawler) Crawl(_ context.Context, page int) ([]*models.Book, error) {
	f.calls = append(f.calls, page)
	if err := f.errs[page]; err != nil {
		return nil, err
	}
	return f.pages[page], nil
}

// catalog builds a crawler whose pages hold the given number of books.
func catalog(sizes ...int) *fakeCrawler {
	c := &fakeCrawler{pages: map[int][]*models.Book{}, errs: map[int]error{}}
	for i, n := range sizes {
		page := i + 1
		for j := 0; j < n; j++ {
			c.pages[page] = append(c.pages[page], &models.Book{
				Title: fmt.Sprintf("p%d-b%d", page, j),
				URL:   fmt.Sprintf("http://example.test/catalogue/p%d-b%d/index.html", page, j),
			})
		}
	}
	return c
}

type memoryStore struct {
	mu      sync.Mutex
	books   []*models.StoredBook
	batches int
	failOn  map[int]error // keyed by 1-based SaveBatch call
}

func (m *memoryStore) SaveBatch(_ context.Context, drafts []*models.StoredBook) ([]*models.StoredBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	if err := m.failOn[m.batches]; err != nil {
		return nil, err
	}
	out := make([]*models.StoredBook, len(drafts))
	for i, d := range drafts {
		saved := *d
		saved.ID = int64(len(m.books) + 1)
		m.books = append(m.books, &saved)
		out[i] = &saved
	}
	return out, nil
}

func (m *memoryStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.books), nil
}

func (m *memoryStore) Migrate(context.Context) error { return nil }
func (m *memoryStore) Close() error                  { return nil }

func (m *memoryStore) titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, b.Title)
	}
	return out
}

type recorder struct {
	events []string
}

func (r *recorder) RunStarted(res *models.IngestResult) {
	r.events = append(r.events, fmt.Sprintf("start:%d+%d", res.StartPage, res.PagesRequested))
}
func (r *recorder) PageStarted(_ string, page int) {
	r.events = append(r.events, fmt.Sprintf("page:%d", page))
}
func (r *recorder) PageSaved(_ string, page int, books []*models.StoredBook, _ time.Duration) {
	r.events = append(r.events, fmt.Sprintf("saved:%d:%d", page, len(books)))
}
func (r *recorder) Stopped(_ string, page int) {
	r.events = append(r.events, fmt.Sprintf("stopped:%d", page))
}
func (r *recorder) Failed(_ *models.IngestResult, page int, _ error) {
	r.events = append(r.events, fmt.Sprintf("failed:%d", page))
}
func (r *recorder) Finished(res *models.IngestResult) {
	r.events = append(r.events, fmt.Sprintf("finished:%d", res.BooksSaved))
}

func TestRun_SinglePageSingleBook(t *testing.T) {
	st := &memoryStore{}
	o := New(catalog(1), st)

	res, err := o.Run(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PagesRequested)
	assert.Equal(t, 1, res.BooksSaved)
	assert.Equal(t, 1, res.PagesCrawled)
	assert.False(t, res.Stopped)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"p1-b0"}, st.titles())
	assert.NotZero(t, st.books[0].ID)
}

func TestRun_StopsAtFirstEmptyPage(t *testing.T) {
	crawler := catalog(3, 2)
	st := &memoryStore{}
	obs := &recorder{}
	o := New(crawler, st, WithObserver(obs))

	res, err := o.Run(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, res.PagesRequested, "pagesRequested reports the requested count")
	assert.Equal(t, 5, res.BooksSaved)
	assert.Equal(t, 2, res.PagesCrawled)
	assert.Equal(t, 2, res.LastPage)
	assert.True(t, res.Stopped)
	assert.Equal(t, []int{1, 2, 3}, crawler.calls, "no page after the empty one is attempted")
	assert.Equal(t, []string{
		"start:1+5",
		"page:1", "saved:1:3",
		"page:2", "saved:2:2",
		"page:3", "stopped:3",
		"finished:5",
	}, obs.events)
}

func TestRun_DoneAfterRequestedPages(t *testing.T) {
	crawler := catalog(1, 1, 1, 1)
	st := &memoryStore{}

	res, err := New(crawler, st).Run(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, crawler.calls)
	assert.Equal(t, 2, res.BooksSaved)
	assert.Equal(t, 3, res.LastPage)
	assert.False(t, res.Stopped)
}

func TestRun_StoreErrorKeepsEarlierPagesAndResumes(t *testing.T) {
	crawler := catalog(2, 2, 2)
	storeErr := &store.StoreError{Op: "save batch", Err: errors.New("connection lost")}
	st := &memoryStore{failOn: map[int]error{2: storeErr}}
	obs := &recorder{}

	res, err := New(crawler, st, WithObserver(obs)).Run(context.Background(), 1, 3)
	require.Error(t, err)
	assert.Same(t, storeErr, err, "store errors propagate unchanged")
	require.NotNil(t, res)
	assert.Equal(t, 2, res.BooksSaved)
	assert.Equal(t, 1, res.PagesCrawled)
	assert.Equal(t, []string{"p1-b0", "p1-b1"}, st.titles())
	assert.Equal(t, []int{1, 2}, crawler.calls, "the run ends at the failing page")
	assert.Contains(t, obs.events, "failed:2")

	st.failOn = nil
	resumed, err := New(crawler, st).Run(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, resumed.BooksSaved)
	assert.Equal(t, []string{"p1-b0", "p1-b1", "p2-b0", "p2-b1", "p3-b0", "p3-b1"}, st.titles(),
		"page 1 is not persisted twice")
}

func TestRun_CrawlErrorsPropagateUnchanged(t *testing.T) {
	fetchErr := &scraper.FetchError{URL: "http://example.test/catalogue/page-2.html", Err: errors.New("timeout")}
	parseErr := &parser.ParseError{Field: "title", URL: "http://example.test/catalogue/x"}

	tests := []struct {
		name string
		err  error
	}{
		{name: "fetch", err: fetchErr},
		{name: "parse", err: parseErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crawler := catalog(1, 1, 1)
			crawler.errs[2] = tt.err
			st := &memoryStore{}

			res, err := New(crawler, st).Run(context.Background(), 1, 3)
			assert.Same(t, tt.err, err)
			assert.Equal(t, 1, res.BooksSaved)
			assert.Equal(t, 1, st.batches, "no batch is saved for a failed page")
		})
	}
}

func TestRun_InvalidRange(t *testing.T) {
	tests := []struct {
		start, count int
	}{
		{start: 0, count: 1},
		{start: 1, count: 0},
		{start: -3, count: -1},
	}
	for _, tt := range tests {
		crawler := catalog(1)
		res, err := New(crawler, &memoryStore{}).Run(context.Background(), tt.start, tt.count)
		assert.ErrorIs(t, err, ErrInvalidRange)
		assert.Nil(t, res)
		assert.Empty(t, crawler.calls)
	}
}

func TestRun_CancelledBeforeNextPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	crawler := catalog(1, 1, 1)
	st := &memoryStore{}
	obs := &cancelAfterFirstSave{cancel: cancel}

	res, err := New(crawler, st, WithObserver(Observers{obs})).Run(ctx, 1, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.BooksSaved)
	assert.Equal(t, []int{1}, crawler.calls)
}

type cancelAfterFirstSave struct {
	recorder
	cancel context.CancelFunc
}

func (c *cancelAfterFirstSave) PageSaved(runID string, page int, books []*models.StoredBook, d time.Duration) {
	c.recorder.PageSaved(runID, page, books, d)
	c.cancel()
}

func TestRun_Timestamps(t *testing.T) {
	clock := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	o := New(catalog(1), &memoryStore{})
	o.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	o.newRunID = func() string { return "run-1" }

	res, err := o.Run(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, 3*time.Second, res.Duration())
}
