package postgres

import (
	"context"
	"fmt"
	"hash/fnv"

	"go.uber.org/zap"

	"github.com/marshallshelly/pebble-entities/pkg/driver"
)

// lockKey derives the advisory lock key from the schema name so processes
// syncing different schemas do not block each other.
func (d *Driver) lockKey() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("pebble-entities:" + d.config.Schema))
	return int64(h.Sum64())
}

// LockSchema takes a session-level advisory lock on a dedicated connection.
// The returned function releases the lock and the connection.
func (d *Driver) LockSchema(ctx context.Context) (func(context.Context) error, error) {
	pool, err := d.handle()
	if err != nil {
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	key := d.lockKey()
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		conn.Release()
		return nil, &driver.QueryError{Query: "SELECT pg_advisory_lock($1)", Err: err}
	}
	d.logger.Debug("schema lock acquired", zap.Int64("key", key))

	return func(ctx context.Context) error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", key); err != nil {
			return &driver.QueryError{Query: "SELECT pg_advisory_unlock($1)", Err: err}
		}
		d.logger.Debug("schema lock released", zap.Int64("key", key))
		return nil
	}, nil
}
