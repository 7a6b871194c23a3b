// Package sqlbase implements driver.Driver on top of database/sql. Database
// specific drivers supply the dialect, the introspection queries and the
// mapping of native errors.
package sqlbase

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marshallshelly/pebble-entities/pkg/dialect"
	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Querier is the subset of *sql.DB used by introspection.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Introspector reads live table structure.
type Introspector interface {
	ListTables(ctx context.Context, q Querier) ([]string, error)
	// LoadTable returns nil, nil when the table does not exist.
	LoadTable(ctx context.Context, q Querier, name string) (*schema.TableInfo, error)
}

// Spec describes a database/sql backed driver.
type Spec struct {
	// Name is reported by driver.Connector.
	Name string
	// DriverName and DSN are passed to sql.Open.
	DriverName string
	DSN        string

	Dialect      dialect.Dialect
	Introspector Introspector
	// MapError translates native errors, e.g. to driver.ConstraintError.
	MapError func(error) error
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for statement tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(db *DB) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// WithMaxOpenConns limits the pool size.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) { db.maxOpen = n }
}

// WithDB uses an existing handle instead of opening one. Connect then only
// pings it.
func WithDB(conn *sql.DB) Option {
	return func(db *DB) { db.injected = conn }
}

// DB is a driver.Driver over a *sql.DB.
type DB struct {
	spec     Spec
	logger   *zap.Logger
	maxOpen  int
	injected *sql.DB

	mu   sync.RWMutex
	conn *sql.DB
}

var _ driver.Driver = (*DB)(nil)

// New creates a DB. No connection is made until Connect.
func New(spec Spec, opts ...Option) *DB {
	if spec.MapError == nil {
		spec.MapError = func(err error) error { return err }
	}
	db := &DB{spec: spec, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (db *DB) Name() string { return db.spec.Name }

func (db *DB) Dialect() dialect.Dialect { return db.spec.Dialect }

// Conn returns the underlying handle, or nil when not connected.
func (db *DB) Conn() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn
}

// Connect opens the pool and verifies it with a ping.
func (db *DB) Connect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn != nil {
		return nil
	}

	conn := db.injected
	if conn == nil {
		var err error
		conn, err = sql.Open(db.spec.DriverName, db.spec.DSN)
		if err != nil {
			return fmt.Errorf("failed to open %s database: %w", db.spec.Name, err)
		}
	}
	if db.maxOpen > 0 {
		conn.SetMaxOpenConns(db.maxOpen)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db.conn = conn
	db.logger.Debug("connected", zap.String("driver", db.spec.Name))
	return nil
}

// Disconnect closes the pool.
func (db *DB) Disconnect(context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn == nil {
		return driver.ErrNotConnected
	}
	err := db.conn.Close()
	db.conn = nil
	db.injected = nil
	return err
}

func (db *DB) handle() (*sql.DB, error) {
	conn := db.Conn()
	if conn == nil {
		return nil, driver.ErrNotConnected
	}
	return conn, nil
}

func (db *DB) wrap(query string, err error) error {
	return &driver.QueryError{Query: query, Err: db.spec.MapError(err)}
}

// Exec runs a statement and returns the number of affected rows.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	conn, err := db.handle()
	if err != nil {
		return 0, err
	}

	start := time.Now()
	res, err := conn.ExecContext(ctx, query, args...)
	db.logger.Debug("exec", zap.String("query", query), zap.Duration("took", time.Since(start)), zap.Error(err))
	if err != nil {
		return 0, db.wrap(query, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, db.wrap(query, err)
	}
	return n, nil
}

func (db *DB) execAll(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}
	return db.spec.Introspector.ListTables(ctx, conn)
}

func (db *DB) LoadTable(ctx context.Context, name string) (*driver.TableInfo, error) {
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}
	return db.spec.Introspector.LoadTable(ctx, conn, name)
}

func (db *DB) CreateTable(ctx context.Context, table schema.TableDefinition) error {
	return db.execAll(ctx, dialect.CreateTableSQL(db.spec.Dialect, table))
}

func (db *DB) AddColumn(ctx context.Context, table string, col schema.ColumnDefinition) error {
	return db.execAll(ctx, dialect.AddColumnSQL(db.spec.Dialect, table, col))
}

func (db *DB) AlterColumn(ctx context.Context, table string, from driver.ColumnInfo, to schema.ColumnDefinition) error {
	stmts, err := db.spec.Dialect.AlterColumnSQL(table, from, to)
	if err != nil {
		return err
	}
	return db.execAll(ctx, stmts...)
}

func (db *DB) DropColumn(ctx context.Context, table, column string) error {
	return db.execAll(ctx, dialect.DropColumnSQL(db.spec.Dialect, table, column))
}

// Insert runs an INSERT. When the dialect has no RETURNING clause the
// generated key is taken from LastInsertId and reported under the first
// returning column.
func (db *DB) Insert(ctx context.Context, table string, values []driver.Value, returning []string) (driver.Row, error) {
	query, args := dialect.InsertSQL(db.spec.Dialect, table, values, returning)

	if len(returning) > 0 && db.spec.Dialect.SupportsReturning() {
		rows, err := db.query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, &driver.QueryError{Query: query, Err: driver.ErrNoRows}
		}
		return rows[0], nil
	}

	conn, err := db.handle()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := conn.ExecContext(ctx, query, args...)
	db.logger.Debug("insert", zap.String("query", query), zap.Duration("took", time.Since(start)), zap.Error(err))
	if err != nil {
		return nil, db.wrap(query, err)
	}

	row := driver.Row{}
	if len(returning) > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, db.wrap(query, err)
		}
		row[returning[0]] = id
	}
	return row, nil
}

func (db *DB) Update(ctx context.Context, table string, set, where []driver.Value) (int64, error) {
	query, args, err := dialect.UpdateSQL(db.spec.Dialect, table, set, where)
	if err != nil {
		return 0, err
	}
	return db.Exec(ctx, query, args...)
}

func (db *DB) Delete(ctx context.Context, table string, where []driver.Value) (int64, error) {
	query, args, err := dialect.DeleteSQL(db.spec.Dialect, table, where)
	if err != nil {
		return 0, err
	}
	return db.Exec(ctx, query, args...)
}

func (db *DB) Select(ctx context.Context, q driver.SelectQuery) ([]driver.Row, error) {
	query, args := dialect.SelectSQL(db.spec.Dialect, q)
	return db.query(ctx, query, args...)
}

func (db *DB) Count(ctx context.Context, table string, where []driver.Value) (int64, error) {
	conn, err := db.handle()
	if err != nil {
		return 0, err
	}

	query, args := dialect.CountSQL(db.spec.Dialect, table, where)
	var n int64
	if err := conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, db.wrap(query, err)
	}
	return n, nil
}

func (db *DB) query(ctx context.Context, query string, args ...any) ([]driver.Row, error) {
	conn, err := db.handle()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := conn.QueryContext(ctx, query, args...)
	db.logger.Debug("query", zap.String("query", query), zap.Duration("took", time.Since(start)), zap.Error(err))
	if err != nil {
		return nil, db.wrap(query, err)
	}
	defer rows.Close()

	result, err := ScanRows(rows)
	if err != nil {
		return nil, db.wrap(query, err)
	}
	return result, nil
}

// ScanRows reads every row into a driver.Row keyed by column name.
func ScanRows(rows *sql.Rows) ([]driver.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []driver.Row
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(driver.Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
