package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("entity already exists")
	// ErrInvalidReference is returned when an assignment names an id
	// that does not exist in the referenced table.
	ErrInvalidReference = errors.New("referenced entity not found")
)

// ConflictError is a unique-constraint violation carrying the name of the
// violated constraint. It matches ErrConflict under errors.Is.
type ConflictError struct {
	Constraint string
}

func (e *ConflictError) Error() string {
	if e.Constraint == "" {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s (%s)", ErrConflict.Error(), e.Constraint)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
