package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/aluiziolira/go-ingest-books/models"
)

// pool is the subset of *pgxpool.Pool used by PostgresStore.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pool
}

// NewPostgres creates a PostgresStore with a connection pool. maxConns <= 0
// keeps the pgxpool default.
func NewPostgres(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if maxConns > 0 {
		pgxCfg.MaxConns = maxConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	p, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: p}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS books (
	id           BIGSERIAL PRIMARY KEY,
	title        TEXT NOT NULL CHECK (title <> ''),
	price        TEXT NOT NULL DEFAULT '',
	rating       INTEGER NOT NULL DEFAULT 0 CHECK (rating BETWEEN 0 AND 5),
	stock        INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
	category     TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	upc          TEXT NOT NULL DEFAULT '',
	product_type TEXT NOT NULL DEFAULT '',
	review_count INTEGER NOT NULL DEFAULT 0 CHECK (review_count >= 0),
	url          TEXT NOT NULL DEFAULT '',
	scraped_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_books_upc ON books(upc);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return &StoreError{Op: "migrate", Err: eris.Wrap(err, "postgres: migrate")}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresInsertBook = `INSERT INTO books
	(title, price, rating, stock, category, description, upc, product_type, review_count, url, scraped_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id`

// SaveBatch inserts drafts in one transaction and returns them with the
// generated IDs.
func (s *PostgresStore) SaveBatch(ctx context.Context, drafts []*models.StoredBook) ([]*models.StoredBook, error) {
	if len(drafts) == 0 {
		return []*models.StoredBook{}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &StoreError{Op: "save batch", Err: eris.Wrap(err, "postgres: begin transaction")}
	}

	ids := make([]int64, len(drafts))
	for i, d := range drafts {
		err := tx.QueryRow(ctx, postgresInsertBook,
			d.Title, d.Price, d.Rating, d.Stock, d.Category, d.Description,
			d.UPC, d.ProductType, d.ReviewCount, d.URL, scrapedAt(d.ScrapedAt),
		).Scan(&ids[i])
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, &StoreError{Op: "save batch", Err: eris.Wrapf(err, "postgres: insert book %q", d.Title)}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &StoreError{Op: "save batch", Err: eris.Wrap(err, "postgres: commit")}
	}
	return withIDs(drafts, ids), nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, &StoreError{Op: "count", Err: eris.Wrap(err, "postgres: count books")}
	}
	return n, nil
}
