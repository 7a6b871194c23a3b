package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrDeclaration matches every declaration error returned while building
// entity metadata.
var ErrDeclaration = errors.New("invalid entity declaration")

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// PropertyNotFoundError is returned when a declaration names a field the
// entity does not have.
type PropertyNotFoundError struct {
	Target   reflect.Type
	Property string
	Reason   string
}

func (e *PropertyNotFoundError) Error() string {
	msg := fmt.Sprintf("property %q not found on %s", e.Property, typeName(e.Target))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *PropertyNotFoundError) Is(target error) bool { return target == ErrDeclaration }

// ColumnTypeUndefinedError is returned when a column has no explicit type and
// none can be inferred from the field's Go type.
type ColumnTypeUndefinedError struct {
	Target   reflect.Type
	Property string
	GoType   reflect.Type
}

func (e *ColumnTypeUndefinedError) Error() string {
	return fmt.Sprintf("column type for %s.%s is not defined and cannot be inferred from %s",
		typeName(e.Target), e.Property, typeName(e.GoType))
}

func (e *ColumnTypeUndefinedError) Is(target error) bool { return target == ErrDeclaration }

// PrimaryColumnCannotBeNullableError is returned for a primary column
// declared nullable.
type PrimaryColumnCannotBeNullableError struct {
	Target   reflect.Type
	Property string
}

func (e *PrimaryColumnCannotBeNullableError) Error() string {
	return fmt.Sprintf("primary column %s.%s cannot be nullable", typeName(e.Target), e.Property)
}

func (e *PrimaryColumnCannotBeNullableError) Is(target error) bool { return target == ErrDeclaration }

// DuplicateColumnError is returned when a property is declared twice or two
// properties map to the same column name.
type DuplicateColumnError struct {
	Target   reflect.Type
	Property string
	Column   string
}

func (e *DuplicateColumnError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("duplicate column %q on %s (property %s)", e.Column, typeName(e.Target), e.Property)
	}
	return fmt.Sprintf("property %s.%s is declared more than once", typeName(e.Target), e.Property)
}

func (e *DuplicateColumnError) Is(target error) bool { return target == ErrDeclaration }

// ConflictingTableNameError is returned when an entity has more than one
// distinct table declaration.
type ConflictingTableNameError struct {
	Target reflect.Type
	Names  []string
}

func (e *ConflictingTableNameError) Error() string {
	return fmt.Sprintf("conflicting table names for %s: %s", typeName(e.Target), strings.Join(e.Names, ", "))
}

func (e *ConflictingTableNameError) Is(target error) bool { return target == ErrDeclaration }

// InvalidAutoIncrementError is returned when auto-increment is declared on a
// column whose type is not an integer.
type InvalidAutoIncrementError struct {
	Target   reflect.Type
	Property string
	Type     ColumnType
}

func (e *InvalidAutoIncrementError) Error() string {
	return fmt.Sprintf("auto-increment column %s.%s must be an integer type, got %s",
		typeName(e.Target), e.Property, e.Type)
}

func (e *InvalidAutoIncrementError) Is(target error) bool { return target == ErrDeclaration }

// MissingPrimaryColumnError is returned for an entity without a primary column.
type MissingPrimaryColumnError struct {
	Target reflect.Type
}

func (e *MissingPrimaryColumnError) Error() string {
	return fmt.Sprintf("entity %s has no primary column", typeName(e.Target))
}

func (e *MissingPrimaryColumnError) Is(target error) bool { return target == ErrDeclaration }

// DuplicateTableError is returned when two entities resolve to the same table.
type DuplicateTableError struct {
	Table   string
	Targets []reflect.Type
}

func (e *DuplicateTableError) Error() string {
	names := make([]string, len(e.Targets))
	for i, t := range e.Targets {
		names[i] = typeName(t)
	}
	return fmt.Sprintf("table %q is declared by more than one entity: %s", e.Table, strings.Join(names, ", "))
}

func (e *DuplicateTableError) Is(target error) bool { return target == ErrDeclaration }

// ForeignKeyTargetError is returned when a foreign key references an entity,
// table or column that is not part of the build.
type ForeignKeyTargetError struct {
	Target    reflect.Type
	Property  string
	Reference string
	Reason    string
}

func (e *ForeignKeyTargetError) Error() string {
	return fmt.Sprintf("foreign key %s.%s -> %s: %s", typeName(e.Target), e.Property, e.Reference, e.Reason)
}

func (e *ForeignKeyTargetError) Is(target error) bool { return target == ErrDeclaration }

// InvalidListenerError is returned when a listener method is missing or has
// the wrong signature.
type InvalidListenerError struct {
	Target reflect.Type
	Method string
	Reason string
}

func (e *InvalidListenerError) Error() string {
	return fmt.Sprintf("listener %s.%s: %s", typeName(e.Target), e.Method, e.Reason)
}

func (e *InvalidListenerError) Is(target error) bool { return target == ErrDeclaration }

// InvalidDefaultError is returned when a column default looks malformed.
type InvalidDefaultError struct {
	Target   reflect.Type
	Property string
	Err      error
}

func (e *InvalidDefaultError) Error() string {
	return fmt.Sprintf("column %s.%s: %v", typeName(e.Target), e.Property, e.Err)
}

func (e *InvalidDefaultError) Unwrap() error { return e.Err }

func (e *InvalidDefaultError) Is(target error) bool { return target == ErrDeclaration }
