// Package mysql provides a driver for MySQL and MariaDB using
// go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/marshallshelly/pebble-entities/pkg/dialect"
	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/driver/sqlbase"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// MySQL server error numbers.
const (
	errDuplicateEntry  = 1062
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
)

// Driver is the MySQL driver.
type Driver struct {
	*sqlbase.DB
}

// New creates a driver from a go-sql-driver configuration. ParseTime is
// forced on so DATETIME columns scan into time.Time.
func New(cfg *mysql.Config, opts ...sqlbase.Option) *Driver {
	cfg = cfg.Clone()
	cfg.ParseTime = true

	return &Driver{DB: sqlbase.New(sqlbase.Spec{
		Name:         "mysql",
		DriverName:   "mysql",
		DSN:          cfg.FormatDSN(),
		Dialect:      dialect.MySQL{},
		Introspector: introspector{},
		MapError:     mapError,
	}, opts...)}
}

// NewFromDSN parses a go-sql-driver DSN such as
// "user:pass@tcp(localhost:3306)/app".
func NewFromDSN(dsn string, opts ...sqlbase.Option) (*Driver, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...), nil
}

// Config builds a TCP configuration.
func Config(host string, port int, user, password, database string) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	if port == 0 {
		port = 3306
	}
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = database
	return cfg
}

func mapError(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}

	switch myErr.Number {
	case errDuplicateEntry:
		return &driver.ConstraintError{Kind: driver.ErrDuplicateKey, Err: err}
	case errRowIsReferenced, errNoReferencedRow:
		return &driver.ConstraintError{Kind: driver.ErrForeignKeyViolation, Err: err}
	default:
		return err
	}
}

type introspector struct{}

func (introspector) ListTables(ctx context.Context, q sqlbase.Querier) ([]string, error) {
	const query = `SELECT TABLE_NAME FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`

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
	const query = `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY, EXTRA
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

	rows, err := q.QueryContext(ctx, query, name)
	if err != nil {
		return nil, &driver.QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	table := &schema.TableInfo{Name: name}
	for rows.Next() {
		var (
			col        schema.ColumnInfo
			isNullable string
			def        sql.NullString
			key        string
			extra      string
		)
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &def, &key, &extra); err != nil {
			return nil, err
		}
		col.Nullable = isNullable == "YES"
		col.Primary = key == "PRI"
		col.Unique = key == "UNI"
		col.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		if def.Valid {
			col.Default = &def.String
		}
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(table.Columns) == 0 {
		return nil, nil
	}
	return table, nil
}
