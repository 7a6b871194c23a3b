// Package postgres provides a driver for PostgreSQL using pgx and pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/marshallshelly/pebble-entities/pkg/dialect"
	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Config represents database configuration.
type Config struct {
	// URL takes precedence over the discrete fields when set.
	URL      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	// Schema is the namespace introspected and locked. Defaults to "public".
	Schema   string
	MaxConns int32
	MinConns int32
}

// DefaultConfig returns a default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		Database: "postgres",
		User:     "postgres",
		Password: "",
		SSLMode:  "prefer",
		Schema:   "public",
		MaxConns: 10,
		MinConns: 2,
	}
}

// ConnectionString builds a PostgreSQL connection string from config.
func (c *Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		port,
		c.User,
		c.Password,
		c.Database,
		sslMode,
	)
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger used for statement tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithPool uses an existing pool. Connect then only pings it and Disconnect
// leaves it open.
func WithPool(pool *pgxpool.Pool) Option {
	return func(d *Driver) { d.external = pool }
}

// Driver is the PostgreSQL driver.
type Driver struct {
	config   *Config
	logger   *zap.Logger
	external *pgxpool.Pool

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Locker = (*Driver)(nil)
)

// New creates a driver. No connection is made until Connect.
func New(config *Config, opts ...Option) *Driver {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Schema == "" {
		config.Schema = "public"
	}

	d := &Driver{config: config, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewWithURL creates a driver for a connection URL.
func NewWithURL(url string, opts ...Option) *Driver {
	return New(&Config{URL: url}, opts...)
}

func (d *Driver) Name() string { return "postgres" }

func (d *Driver) Dialect() dialect.Dialect { return dialect.Postgres{} }

// Pool returns the underlying pgxpool.Pool, or nil when not connected.
func (d *Driver) Pool() *pgxpool.Pool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pool
}

// Connect creates the connection pool and pings the server.
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pool != nil {
		return nil
	}

	if d.external != nil {
		if err := d.external.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		d.pool = d.external
		return nil
	}

	poolConfig, err := pgxpool.ParseConfig(d.config.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if d.config.MaxConns > 0 {
		poolConfig.MaxConns = d.config.MaxConns
	}
	if d.config.MinConns > 0 {
		poolConfig.MinConns = d.config.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	d.pool = pool
	d.logger.Debug("connected", zap.String("driver", "postgres"), zap.String("host", poolConfig.ConnConfig.Host))
	return nil
}

// Disconnect closes the connection pool.
func (d *Driver) Disconnect(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pool == nil {
		return driver.ErrNotConnected
	}
	if d.pool != d.external {
		d.pool.Close()
	}
	d.pool = nil
	return nil
}

func (d *Driver) handle() (*pgxpool.Pool, error) {
	pool := d.Pool()
	if pool == nil {
		return nil, driver.ErrNotConnected
	}
	return pool, nil
}

// Exec executes a query without returning any rows.
func (d *Driver) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	pool, err := d.handle()
	if err != nil {
		return 0, err
	}

	start := time.Now()
	result, err := pool.Exec(ctx, sql, args...)
	d.logger.Debug("exec", zap.String("query", sql), zap.Duration("took", time.Since(start)), zap.Error(err))
	if err != nil {
		return 0, &driver.QueryError{Query: sql, Err: mapError(err)}
	}
	return result.RowsAffected(), nil
}

// Query executes a query and collects the rows.
func (d *Driver) Query(ctx context.Context, sql string, args ...any) ([]driver.Row, error) {
	pool, err := d.handle()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := pool.Query(ctx, sql, args...)
	d.logger.Debug("query", zap.String("query", sql), zap.Duration("took", time.Since(start)), zap.Error(err))
	if err != nil {
		return nil, &driver.QueryError{Query: sql, Err: mapError(err)}
	}

	result, err := collectRows(rows)
	if err != nil {
		return nil, &driver.QueryError{Query: sql, Err: mapError(err)}
	}
	return result, nil
}

func collectRows(rows pgx.Rows) ([]driver.Row, error) {
	defer rows.Close()

	var result []driver.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		fields := rows.FieldDescriptions()
		row := make(driver.Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// PostgreSQL SQLSTATE codes.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case uniqueViolation:
		return &driver.ConstraintError{Kind: driver.ErrDuplicateKey, Constraint: pgErr.ConstraintName, Err: err}
	case foreignKeyViolation:
		return &driver.ConstraintError{Kind: driver.ErrForeignKeyViolation, Constraint: pgErr.ConstraintName, Err: err}
	default:
		return err
	}
}

func (d *Driver) CreateTable(ctx context.Context, table schema.TableDefinition) error {
	_, err := d.Exec(ctx, dialect.CreateTableSQL(dialect.Postgres{}, table))
	return err
}

func (d *Driver) AddColumn(ctx context.Context, table string, col schema.ColumnDefinition) error {
	_, err := d.Exec(ctx, dialect.AddColumnSQL(dialect.Postgres{}, table, col))
	return err
}

func (d *Driver) AlterColumn(ctx context.Context, table string, from driver.ColumnInfo, to schema.ColumnDefinition) error {
	stmts, err := dialect.Postgres{}.AlterColumnSQL(table, from, to)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := d.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) DropColumn(ctx context.Context, table, column string) error {
	_, err := d.Exec(ctx, dialect.DropColumnSQL(dialect.Postgres{}, table, column))
	return err
}

func (d *Driver) Insert(ctx context.Context, table string, values []driver.Value, returning []string) (driver.Row, error) {
	sql, args := dialect.InsertSQL(dialect.Postgres{}, table, values, returning)

	if len(returning) == 0 {
		if _, err := d.Exec(ctx, sql, args...); err != nil {
			return nil, err
		}
		return driver.Row{}, nil
	}

	rows, err := d.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &driver.QueryError{Query: sql, Err: driver.ErrNoRows}
	}
	return rows[0], nil
}

func (d *Driver) Update(ctx context.Context, table string, set, where []driver.Value) (int64, error) {
	sql, args, err := dialect.UpdateSQL(dialect.Postgres{}, table, set, where)
	if err != nil {
		return 0, err
	}
	return d.Exec(ctx, sql, args...)
}

func (d *Driver) Delete(ctx context.Context, table string, where []driver.Value) (int64, error) {
	sql, args, err := dialect.DeleteSQL(dialect.Postgres{}, table, where)
	if err != nil {
		return 0, err
	}
	return d.Exec(ctx, sql, args...)
}

func (d *Driver) Select(ctx context.Context, q driver.SelectQuery) ([]driver.Row, error) {
	sql, args := dialect.SelectSQL(dialect.Postgres{}, q)
	return d.Query(ctx, sql, args...)
}

func (d *Driver) Count(ctx context.Context, table string, where []driver.Value) (int64, error) {
	pool, err := d.handle()
	if err != nil {
		return 0, err
	}

	sql, args := dialect.CountSQL(dialect.Postgres{}, table, where)
	var n int64
	if err := pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, &driver.QueryError{Query: sql, Err: mapError(err)}
	}
	return n, nil
}
