package driver

import (
	"errors"
	"fmt"

	"github.com/marshallshelly/pebble-entities/pkg/dialect"
)

var (
	// ErrNotConnected is returned when a driver is used before Connect or
	// after Disconnect.
	ErrNotConnected = errors.New("driver is not connected")

	// ErrUnsupported is returned when the database cannot perform an operation.
	ErrUnsupported = dialect.ErrUnsupported

	// ErrNoRows is returned when a query expected a row and found none.
	ErrNoRows = errors.New("no rows in result set")

	// ErrDuplicateKey is returned when a unique constraint is violated.
	ErrDuplicateKey = errors.New("duplicate key value")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("foreign key violation")
)

// QueryError represents a query execution error.
type QueryError struct {
	Query string
	Err   error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %v\nQuery: %s", e.Err, e.Query)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// ConstraintError wraps a database error that violated a constraint. It
// matches ErrDuplicateKey or ErrForeignKeyViolation through errors.Is.
type ConstraintError struct {
	Kind       error
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%v (%s): %v", e.Kind, e.Constraint, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
