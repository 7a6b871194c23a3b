package orm

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/marshallshelly/pebble-entities/pkg/driver"
)

var (
	// ErrNotConnected is returned when closing or querying a connection
	// that never connected.
	ErrNotConnected = driver.ErrNotConnected
	// ErrAlreadyConnected is returned by Connect on a connected or
	// connecting connection.
	ErrAlreadyConnected = errors.New("connection already established")
	// ErrConnectionClosed is returned by Connect after Close.
	ErrConnectionClosed = errors.New("connection is closed")
	// ErrEntityNotFound is returned when a lookup, update or removal matches
	// no row.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrMissingPrimaryKey is returned when an entity without a primary key
	// value is updated or removed.
	ErrMissingPrimaryKey = errors.New("entity has no primary key value")
)

// MetadataNotFoundError is returned when no metadata is registered for a type.
type MetadataNotFoundError struct {
	Target reflect.Type
}

func (e *MetadataNotFoundError) Error() string {
	return fmt.Sprintf("no metadata registered for %s", typeName(e.Target))
}

// RepositoryNotFoundError is returned when no repository exists for a type.
type RepositoryNotFoundError struct {
	Target reflect.Type
	Err    error
}

func (e *RepositoryNotFoundError) Error() string {
	return fmt.Sprintf("no repository for %s: %v", typeName(e.Target), e.Err)
}

func (e *RepositoryNotFoundError) Unwrap() error { return e.Err }

// InvalidEntityError is returned when a repository receives a value of the
// wrong type.
type InvalidEntityError struct {
	Expected reflect.Type
	Got      reflect.Type
}

func (e *InvalidEntityError) Error() string {
	return fmt.Sprintf("expected *%s, got %s", typeName(e.Expected), typeName(e.Got))
}

// UnknownFieldError is returned when a query names neither a property nor a
// column of the entity.
type UnknownFieldError struct {
	Entity string
	Field  string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s has no property or column %q", e.Entity, e.Field)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
