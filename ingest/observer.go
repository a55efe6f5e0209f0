package ingest

import (
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-ingest-books/export"
	"github.com/aluiziolira/go-ingest-books/models"
	"github.com/aluiziolira/go-ingest-books/scraper"
)

// Observer receives run progress events. Implementations must not block.
type Observer interface {
	RunStarted(result *models.IngestResult)
	PageStarted(runID string, page int)
	PageSaved(runID string, page int, books []*models.StoredBook, elapsed time.Duration)
	Stopped(runID string, page int)
	Failed(result *models.IngestResult, page int, err error)
	Finished(result *models.IngestResult)
}

// Observers fans every event out to each observer in order.
type Observers []Observer

func (obs Observers) RunStarted(result *models.IngestResult) {
	for _, o := range obs {
		o.RunStarted(result)
	}
}

func (obs Observers) PageStarted(runID string, page int) {
	for _, o := range obs {
		o.PageStarted(runID, page)
	}
}

func (obs Observers) PageSaved(runID string, page int, books []*models.StoredBook, elapsed time.Duration) {
	for _, o := range obs {
		o.PageSaved(runID, page, books, elapsed)
	}
}

func (obs Observers) Stopped(runID string, page int) {
	for _, o := range obs {
		o.Stopped(runID, page)
	}
}

func (obs Observers) Failed(result *models.IngestResult, page int, err error) {
	for _, o := range obs {
		o.Failed(result, page, err)
	}
}

func (obs Observers) Finished(result *models.IngestResult) {
	for _, o := range obs {
		o.Finished(result)
	}
}

// LogObserver writes run events with slog.
type LogObserver struct {
	Logger *slog.Logger
}

// NewLogObserver returns an observer logging to logger, or to the default
// logger when logger is nil.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger}
}

func (l *LogObserver) RunStarted(result *models.IngestResult) {
	l.Logger.Info("ingestion started",
		slog.String("run_id", result.RunID),
		slog.Int("start_page", result.StartPage),
		slog.Int("pages", result.PagesRequested),
	)
}

func (l *LogObserver) PageStarted(runID string, page int) {
	l.Logger.Debug("crawling page", slog.String("run_id", runID), slog.Int("page", page))
}

func (l *LogObserver) PageSaved(runID string, page int, books []*models.StoredBook, elapsed time.Duration) {
	l.Logger.Info("page saved",
		slog.String("run_id", runID),
		slog.Int("page", page),
		slog.Int("books", len(books)),
		slog.Duration("save_duration", elapsed),
	)
}

func (l *LogObserver) Stopped(runID string, page int) {
	l.Logger.Info("empty listing page, stopping", slog.String("run_id", runID), slog.Int("page", page))
}

func (l *LogObserver) Failed(result *models.IngestResult, page int, err error) {
	l.Logger.Error("ingestion failed",
		slog.String("run_id", result.RunID),
		slog.Int("page", page),
		slog.Int("books_saved", result.BooksSaved),
		slog.Any("error", err),
	)
}

func (l *LogObserver) Finished(result *models.IngestResult) {
	l.Logger.Info("ingestion finished",
		slog.String("run_id", result.RunID),
		slog.Int("pages_crawled", result.PagesCrawled),
		slog.Int("books_saved", result.BooksSaved),
		slog.Bool("stopped", result.Stopped),
		slog.Duration("duration", result.Duration()),
	)
}

// MetricsObserver records committed batches on Prometheus metrics.
type MetricsObserver struct {
	Metrics *scraper.Metrics
}

func (m MetricsObserver) RunStarted(*models.IngestResult)         {}
func (m MetricsObserver) PageStarted(string, int)                 {}
func (m MetricsObserver) Stopped(string, int)                     {}
func (m MetricsObserver) Failed(*models.IngestResult, int, error) {}
func (m MetricsObserver) Finished(*models.IngestResult)           {}

func (m MetricsObserver) PageSaved(_ string, _ int, books []*models.StoredBook, elapsed time.Duration) {
	m.Metrics.ObserveBatch(len(books), elapsed)
}

// ExportObserver mirrors every committed batch to an export writer. The
// first write error is kept and later batches are skipped.
type ExportObserver struct {
	writer export.Writer
	logger *slog.Logger

	mu  sync.Mutex
	err error
}

// NewExportObserver wraps w. The caller still owns w and must close it.
func NewExportObserver(w export.Writer, logger *slog.Logger) *ExportObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportObserver{writer: w, logger: logger}
}

func (e *ExportObserver) RunStarted(*models.IngestResult)         {}
func (e *ExportObserver) PageStarted(string, int)                 {}
func (e *ExportObserver) Stopped(string, int)                     {}
func (e *ExportObserver) Failed(*models.IngestResult, int, error) {}
func (e *ExportObserver) Finished(*models.IngestResult)           {}

func (e *ExportObserver) PageSaved(runID string, page int, books []*models.StoredBook, _ time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return
	}
	if err := e.writer.Write(books); err != nil {
		e.err = err
		e.logger.Error("export write failed",
			slog.String("run_id", runID),
			slog.Int("page", page),
			slog.Any("error", err),
		)
	}
}

// Err returns the first export error, if any.
func (e *ExportObserver) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}
