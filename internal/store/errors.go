package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/fathom/internal/apperr"
)

// storageErr wraps an engine failure so callers can match apperr.ErrStorage
// while the original *sqlite3.Error stays reachable.
func storageErr(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %w", op, apperr.ErrStorage, err)
}

// searchErr classifies failures of a MATCH query. The term is the only
// caller-controlled SQL input, so a generic SQLITE_ERROR is a syntax error
// in the term; everything else (busy, I/O, corruption) stays a storage error.
func searchErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrError {
		return fmt.Errorf("store: search: %w: %s", apperr.ErrQuerySyntax, se.Error())
	}
	return storageErr("search", err)
}
