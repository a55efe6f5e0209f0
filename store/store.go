// Package store persists extracted books. Every SaveBatch call is a single
// transaction: either all books of the batch are stored or none are.
package store

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/aluiziolira/go-ingest-books/config"
	"github.com/aluiziolira/go-ingest-books/models"
)

// Store defines the persistence interface for ingested books.
type Store interface {
	// SaveBatch stores all drafts atomically and returns them with their
	// assigned IDs, in the same order.
	SaveBatch(ctx context.Context, drafts []*models.StoredBook) ([]*models.StoredBook, error)
	Count(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// StoreError reports a failed store operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Errorf("store %s: %w", e.Op, e.Err).Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewDraft wraps a book into an unsaved record. No I/O happens.
func NewDraft(book *models.Book) *models.StoredBook {
	return &models.StoredBook{Book: *book}
}

// NewDrafts converts books into drafts, preserving order.
func NewDrafts(books []*models.Book) []*models.StoredBook {
	drafts := make([]*models.StoredBook, 0, len(books))
	for _, book := range books {
		drafts = append(drafts, NewDraft(book))
	}
	return drafts
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		st, err := NewSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := NewPostgres(ctx, cfg.DSN, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
