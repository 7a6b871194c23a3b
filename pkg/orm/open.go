package orm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/marshallshelly/pebble-entities/pkg/config"
	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/driver/mysql"
	"github.com/marshallshelly/pebble-entities/pkg/driver/postgres"
	"github.com/marshallshelly/pebble-entities/pkg/driver/sqlbase"
	"github.com/marshallshelly/pebble-entities/pkg/driver/sqlite"
	"github.com/marshallshelly/pebble-entities/pkg/metadata"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Open builds metadata for targets from storage, registers it on a new
// connection and connects. With no targets every declared entity is built.
// Declaration errors are returned before the driver is touched.
func Open(ctx context.Context, d driver.Driver, storage *metadata.Storage, targets []any, opts ...Option) (*Connection, error) {
	return open(ctx, New(d, opts...), storage, targets)
}

// OpenConfig is Open with the driver and options taken from cfg.
func OpenConfig(ctx context.Context, cfg *config.Config, storage *metadata.Storage, targets []any, opts ...Option) (*Connection, error) {
	conn, err := NewFromConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return open(ctx, conn, storage, targets)
}

func open(ctx context.Context, conn *Connection, storage *metadata.Storage, targets []any) (*Connection, error) {
	builder := metadata.NewBuilder(storage, metadata.WithLogger(conn.logger))
	var built []*schema.EntityMetadata
	var err error
	if len(targets) > 0 {
		built, err = builder.Build(targets...)
	} else {
		built, err = builder.BuildAll()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build entity metadata: %w", err)
	}
	conn.AddEntityMetadatas(built...)

	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// NewFromConfig creates a connection whose driver, logger and schema options
// come from cfg. It does not connect.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}

	d, err := OpenDriver(cfg, logger)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithName(cfg.Name),
		WithLogger(logger),
		WithAutoSchemaCreate(cfg.AutoSchemaCreate),
		WithDropColumns(cfg.DropColumns),
	}
	return New(d, append(base, opts...)...), nil
}

// OpenDriver creates the driver named by cfg without connecting it.
func OpenDriver(cfg *config.Config, logger *zap.Logger) (driver.Driver, error) {
	db := cfg.Database
	switch cfg.DriverName() {
	case "postgres":
		return postgres.New(&postgres.Config{
			URL:      db.URL,
			Host:     db.Host,
			Port:     db.Port,
			Database: db.Name,
			User:     db.User,
			Password: db.Password,
			SSLMode:  db.SSLMode,
			Schema:   db.Schema,
			MaxConns: db.MaxConns,
			MinConns: db.MinConns,
		}, postgres.WithLogger(logger)), nil

	case "sqlite":
		path := db.Path
		if path == "" {
			path = db.URL
		}
		return sqlite.New(path, sqlbase.WithLogger(logger)), nil

	case "mysql":
		opts := []sqlbase.Option{sqlbase.WithLogger(logger), sqlbase.WithMaxOpenConns(int(db.MaxConns))}
		if db.URL != "" {
			return mysql.NewFromDSN(db.URL, opts...)
		}
		return mysql.New(mysql.Config(db.Host, db.Port, db.User, db.Password, db.Name), opts...), nil
	}
	return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
}
