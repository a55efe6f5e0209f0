package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/aluiziolira/go-ingest-books/models"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// SQLite serialises writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS books (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
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
	scraped_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_books_upc ON books(upc);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	if err != nil {
		return &StoreError{Op: "migrate", Err: eris.Wrap(err, "sqlite: migrate")}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertBook = `INSERT INTO books
	(title, price, rating, stock, category, description, upc, product_type, review_count, url, scraped_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SaveBatch inserts drafts in one transaction. On any failure the
// transaction is rolled back and the drafts keep a zero ID.
func (s *SQLiteStore) SaveBatch(ctx context.Context, drafts []*models.StoredBook) ([]*models.StoredBook, error) {
	if len(drafts) == 0 {
		return []*models.StoredBook{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StoreError{Op: "save batch", Err: eris.Wrap(err, "sqlite: begin transaction")}
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertBook)
	if err != nil {
		return nil, &StoreError{Op: "save batch", Err: eris.Wrap(err, "sqlite: prepare insert")}
	}
	defer stmt.Close()

	ids := make([]int64, len(drafts))
	for i, d := range drafts {
		res, err := stmt.ExecContext(ctx,
			d.Title, d.Price, d.Rating, d.Stock, d.Category, d.Description,
			d.UPC, d.ProductType, d.ReviewCount, d.URL, scrapedAt(d.ScrapedAt),
		)
		if err != nil {
			return nil, &StoreError{Op: "save batch", Err: eris.Wrapf(err, "sqlite: insert book %q", d.Title)}
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return nil, &StoreError{Op: "save batch", Err: eris.Wrap(err, "sqlite: last insert id")}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &StoreError{Op: "save batch", Err: eris.Wrap(err, "sqlite: commit")}
	}
	return withIDs(drafts, ids), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, &StoreError{Op: "count", Err: eris.Wrap(err, "sqlite: count books")}
	}
	return n, nil
}

// List returns every stored book ordered by ID.
func (s *SQLiteStore) List(ctx context.Context) ([]*models.StoredBook, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, price, rating, stock, category, description,
		upc, product_type, review_count, url, scraped_at FROM books ORDER BY id`)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: eris.Wrap(err, "sqlite: list books")}
	}
	defer rows.Close()

	var out []*models.StoredBook
	for rows.Next() {
		b := &models.StoredBook{}
		if err := rows.Scan(&b.ID, &b.Title, &b.Price, &b.Rating, &b.Stock, &b.Category,
			&b.Description, &b.UPC, &b.ProductType, &b.ReviewCount, &b.URL, &b.ScrapedAt); err != nil {
			return nil, &StoreError{Op: "list", Err: eris.Wrap(err, "sqlite: scan book")}
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: eris.Wrap(err, "sqlite: iterate books")}
	}
	return out, nil
}

func scrapedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

// withIDs returns copies of drafts carrying the assigned IDs.
func withIDs(drafts []*models.StoredBook, ids []int64) []*models.StoredBook {
	out := make([]*models.StoredBook, len(drafts))
	for i, d := range drafts {
		saved := *d
		saved.ID = ids[i]
		out[i] = &saved
	}
	return out
}
