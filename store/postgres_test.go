package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-ingest-books/models"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_SaveBatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	book := testBook("one", 3)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO books`).
		WithArgs(book.Title, book.Price, book.Rating, book.Stock, book.Category, book.Description,
			book.UPC, book.ProductType, book.ReviewCount, book.URL, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(41)))
	mock.ExpectQuery(`INSERT INTO books`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	saved, err := s.SaveBatch(context.Background(), NewDrafts([]*models.Book{book, testBook("two", 4)}))
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, int64(41), saved[0].ID)
	assert.Equal(t, int64(42), saved[1].ID)
	assert.Equal(t, "two", saved[1].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveBatchRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO books`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`INSERT INTO books`).
		WillReturnError(errors.New("check constraint violated"))
	mock.ExpectRollback()

	saved, err := s.SaveBatch(context.Background(), NewDrafts([]*models.Book{testBook("a", 1), testBook("b", 9)}))
	require.Error(t, err)
	assert.Nil(t, saved)

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "save batch", storeErr.Op)
	assert.Contains(t, err.Error(), "check constraint violated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BeginFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := s.SaveBatch(context.Background(), NewDrafts([]*models.Book{testBook("a", 1)}))
	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CommitFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO books`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	_, err := s.SaveBatch(context.Background(), NewDrafts([]*models.Book{testBook("a", 1)}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EmptyBatchSkipsTransaction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	saved, err := s.SaveBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM books`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS books`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
