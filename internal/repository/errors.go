package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrStateConflict is returned when a conditional lifecycle update matched
	// an existing row in the wrong state.
	ErrStateConflict = errors.New("record is not in the expected state")
	// ErrDuplicate is returned when an insert or update violates a unique index.
	ErrDuplicate = errors.New("duplicate record")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
