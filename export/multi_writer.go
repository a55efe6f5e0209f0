package export

import (
	"errors"

	"github.com/aluiziolira/go-ingest-books/models"
)

// multiWriter sends every batch to each writer in order. A write stops at
// the first failing writer; Close and Validate visit all of them.
type multiWriter []Writer

// MultiWriter combines writers into one.
func MultiWriter(writers ...Writer) Writer {
	return multiWriter(writers)
}

func (mw multiWriter) Write(books []*models.StoredBook) error {
	for _, w := range mw {
		if err := w.Write(books); err != nil {
			return err
		}
	}
	return nil
}

func (mw multiWriter) Close() error {
	var errs []error
	for _, w := range mw {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

func (mw multiWriter) Validate() error {
	var errs []error
	for _, w := range mw {
		errs = append(errs, w.Validate())
	}
	return errors.Join(errs...)
}
