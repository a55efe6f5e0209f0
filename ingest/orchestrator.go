// Package ingest drives page-by-page ingestion of the catalog: each listing
// page is crawled, its books are committed as one batch, and the run stops
// at the first empty page, after the requested number of pages, or at the
// first error.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/go-ingest-books/models"
	"github.com/aluiziolira/go-ingest-books/store"
)

// ErrInvalidRange is returned when the start page or page count is below 1.
var ErrInvalidRange = errors.New("ingest: start page and page count must be at least 1")

// PageCrawler produces the books listed on one catalog page. An empty
// result marks the end of the catalog.
type PageCrawler interface {
	Crawl(ctx context.Context, page int) ([]*models.Book, error)
}

// Orchestrator runs ingestion over a range of listing pages.
type Orchestrator struct {
	crawler  PageCrawler
	store    store.Store
	observer Observer
	now      func() time.Time
	newRunID func() string
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithObserver sets the observer notified of run progress.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// New creates an orchestrator persisting what crawler finds into st.
func New(crawler PageCrawler, st store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		crawler:  crawler,
		store:    st,
		observer: Observers{},
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type runState struct {
	startPage   int
	pageCount   int
	currentPage int
	totalSaved  int
}

func (s *runState) done() bool {
	return s.currentPage >= s.startPage+s.pageCount
}

// Run ingests pageCount pages starting at startPage. Pages committed before
// a failure stay committed; on failure Run returns the partial result
// together with the unchanged error, so the caller can resume at
// result.StartPage + result.PagesCrawled.
func (o *Orchestrator) Run(ctx context.Context, startPage, pageCount int) (*models.IngestResult, error) {
	if startPage < 1 || pageCount < 1 {
		return nil, fmt.Errorf("%w: got start page %d, page count %d", ErrInvalidRange, startPage, pageCount)
	}

	state := &runState{startPage: startPage, pageCount: pageCount, currentPage: startPage}
	result := &models.IngestResult{
		RunID:          o.newRunID(),
		PagesRequested: pageCount,
		StartPage:      startPage,
		StartTime:      o.now(),
	}
	o.observer.RunStarted(result)

	for !state.done() {
		page := state.currentPage
		if err := ctx.Err(); err != nil {
			return o.fail(result, state, page, err)
		}

		o.observer.PageStarted(result.RunID, page)
		books, err := o.crawler.Crawl(ctx, page)
		if err != nil {
			return o.fail(result, state, page, err)
		}
		if len(books) == 0 {
			result.Stopped = true
			o.observer.Stopped(result.RunID, page)
			break
		}

		start := o.now()
		saved, err := o.store.SaveBatch(ctx, store.NewDrafts(books))
		if err != nil {
			return o.fail(result, state, page, err)
		}

		state.totalSaved += len(saved)
		state.currentPage++
		result.BooksSaved = state.totalSaved
		result.PagesCrawled++
		result.LastPage = page
		o.observer.PageSaved(result.RunID, page, saved, o.now().Sub(start))
	}

	result.EndTime = o.now()
	o.observer.Finished(result)
	return result, nil
}

func (o *Orchestrator) fail(result *models.IngestResult, state *runState, page int, err error) (*models.IngestResult, error) {
	result.BooksSaved = state.totalSaved
	result.EndTime = o.now()
	o.observer.Failed(result, page, err)
	return result, err
}
