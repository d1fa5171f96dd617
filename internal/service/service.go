// Package service implements the application's business logic on top of the
// repository layer. Services return apperr errors that handlers translate
// into the response envelope.
package service

import (
	"database/sql"
	"errors"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
