// Package driver defines the capabilities a database driver provides to the
// ORM: connection lifecycle, schema introspection and DDL, and single-table
// CRUD queries.
package driver

import (
	"context"

	"github.com/marshallshelly/pebble-entities/pkg/dialect"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

type (
	// Value pairs a column with the value bound to it.
	Value = dialect.Value
	// Order is one ORDER BY term.
	Order = dialect.Order
	// SelectQuery describes a single-table SELECT.
	SelectQuery = dialect.Query
	// TableInfo is the live state of a table.
	TableInfo = schema.TableInfo
	// ColumnInfo is the live state of a column.
	ColumnInfo = schema.ColumnInfo
)

// Row is a result row keyed by column name.
type Row map[string]any

// Connector manages the lifecycle of the underlying connection.
type Connector interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// SchemaDriver reads and changes table structure.
type SchemaDriver interface {
	Dialect() dialect.Dialect
	ListTables(ctx context.Context) ([]string, error)
	// LoadTable returns nil, nil when the table does not exist.
	LoadTable(ctx context.Context, name string) (*TableInfo, error)
	CreateTable(ctx context.Context, table schema.TableDefinition) error
	AddColumn(ctx context.Context, table string, col schema.ColumnDefinition) error
	AlterColumn(ctx context.Context, table string, from ColumnInfo, to schema.ColumnDefinition) error
	DropColumn(ctx context.Context, table, column string) error
}

// QueryDriver runs single-table CRUD statements.
type QueryDriver interface {
	// Insert returns the values of the returning columns, read back from the
	// database when the dialect allows it.
	Insert(ctx context.Context, table string, values []Value, returning []string) (Row, error)
	Update(ctx context.Context, table string, set, where []Value) (int64, error)
	Delete(ctx context.Context, table string, where []Value) (int64, error)
	Select(ctx context.Context, q SelectQuery) ([]Row, error)
	Count(ctx context.Context, table string, where []Value) (int64, error)
}

// Driver is a complete database driver.
type Driver interface {
	Connector
	SchemaDriver
	QueryDriver
}

// Locker is implemented by drivers that can serialise schema changes across
// processes.
type Locker interface {
	LockSchema(ctx context.Context) (unlock func(context.Context) error, err error)
}
