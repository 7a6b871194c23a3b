// Package sqlite provides a driver for SQLite 3 using mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/marshallshelly/pebble-entities/pkg/dialect"
	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/driver/sqlbase"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Driver is the SQLite driver.
type Driver struct {
	*sqlbase.DB
}

// New creates a driver for the database file at path. ":memory:" opens a
// private in-memory database. Foreign key enforcement is switched on.
func New(path string, opts ...sqlbase.Option) *Driver {
	if path == ":memory:" {
		// Every connection to :memory: gets its own database.
		opts = append([]sqlbase.Option{sqlbase.WithMaxOpenConns(1)}, opts...)
	}

	return &Driver{DB: sqlbase.New(sqlbase.Spec{
		Name:         "sqlite",
		DriverName:   "sqlite3",
		DSN:          DSN(path),
		Dialect:      dialect.SQLite{},
		Introspector: introspector{},
		MapError:     mapError,
	}, opts...)}
}

// DSN appends the connection parameters the driver relies on.
func DSN(path string) string {
	if strings.Contains(path, "_foreign_keys") || strings.Contains(path, "_fk=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}

func mapError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return &driver.ConstraintError{Kind: driver.ErrDuplicateKey, Err: err}
	case sqlite3.ErrConstraintForeignKey:
		return &driver.ConstraintError{Kind: driver.ErrForeignKeyViolation, Err: err}
	default:
		return err
	}
}

type introspector struct{}

func (introspector) ListTables(ctx context.Context, q sqlbase.Querier) ([]string, error) {
	const query = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, &driver.QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (introspector) LoadTable(ctx context.Context, q sqlbase.Querier, name string) (*schema.TableInfo, error) {
	const query = `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`

	rows, err := q.QueryContext(ctx, query, name)
	if err != nil {
		return nil, &driver.QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	table := &schema.TableInfo{Name: name}
	primaries := 0
	for rows.Next() {
		var (
			col     schema.ColumnInfo
			notNull bool
			def     sql.NullString
			pk      int
		)
		if err := rows.Scan(&col.Name, &col.DataType, &notNull, &def, &pk); err != nil {
			return nil, err
		}
		col.Nullable = !notNull
		col.Primary = pk > 0
		if def.Valid {
			col.Default = &def.String
		}
		if col.Primary {
			primaries++
		}
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(table.Columns) == 0 {
		return nil, nil
	}

	// A lone INTEGER PRIMARY KEY aliases the rowid and is generated.
	if primaries == 1 {
		for i := range table.Columns {
			col := &table.Columns[i]
			if col.Primary && strings.EqualFold(col.DataType, "INTEGER") {
				col.AutoIncrement = true
			}
		}
	}

	return table, nil
}
