package store

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// translateError maps driver errors onto the store sentinels. A value that
// cannot be cast to a UUID column never addresses a row.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return ErrConflict
		case invalidTextRepresentation:
			return ErrNotFound
		}
	}
	return err
}

// validID reports whether id can match a UUID primary or foreign key.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
