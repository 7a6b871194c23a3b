//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/driver/postgres"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// setupDriver starts a PostgreSQL container and returns a connected driver.
func setupDriver(t *testing.T) *postgres.Driver {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	d := postgres.NewWithURL(connStr)
	if err := d.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Disconnect(ctx) })

	return d
}

func TestDriverRoundTrip(t *testing.T) {
	d := setupDriver(t)
	ctx := context.Background()

	table := schema.TableDefinition{
		Name: "sample4_post_category",
		Columns: []schema.ColumnDefinition{
			{Name: "id", Type: schema.Integer, Primary: true, AutoIncrement: true},
			{Name: "name", Type: schema.String, Length: 255, Unique: true},
		},
		PrimaryKey: []string{"id"},
	}
	if err := d.CreateTable(ctx, table); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}

	info, err := d.LoadTable(ctx, "sample4_post_category")
	if err != nil || info == nil {
		t.Fatalf("LoadTable() = %v, %v", info, err)
	}
	id := info.Column("id")
	if id == nil || !id.Primary || !id.AutoIncrement || id.DataType != "integer" {
		t.Errorf("Unexpected id column: %+v", id)
	}
	name := info.Column("name")
	if name == nil || name.DataType != "varchar(255)" || name.Nullable || !name.Unique {
		t.Errorf("Unexpected name column: %+v", name)
	}

	missing, err := d.LoadTable(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("LoadTable(missing) = %v, %v; want nil, nil", missing, err)
	}

	row, err := d.Insert(ctx, "sample4_post_category", []driver.Value{{Column: "name", Value: "go"}}, []string{"id"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if row["id"] != int32(1) {
		t.Errorf("Expected generated id 1, got %#v", row["id"])
	}

	_, err = d.Insert(ctx, "sample4_post_category", []driver.Value{{Column: "name", Value: "go"}}, nil)
	if !errors.Is(err, driver.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	n, err := d.Count(ctx, "sample4_post_category", nil)
	if err != nil || n != 1 {
		t.Errorf("Count() = %d, %v", n, err)
	}

	unlock, err := d.LockSchema(ctx)
	if err != nil {
		t.Fatalf("LockSchema() error = %v", err)
	}
	if err := unlock(ctx); err != nil {
		t.Errorf("unlock() error = %v", err)
	}
}
