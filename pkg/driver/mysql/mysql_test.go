package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/driver/sqlbase"
)

func setupTestDriver(t *testing.T) (*Driver, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	d := New(Config("localhost", 0, "app", "secret", "shop"), sqlbase.WithDB(conn))
	require.NoError(t, d.Connect(context.Background()))
	t.Cleanup(func() {
		mock.ExpectClose()
		_ = d.Disconnect(context.Background())
	})
	return d, mock
}

func TestConfig(t *testing.T) {
	cfg := Config("db.internal", 0, "app", "secret", "shop")
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "db.internal:3306", cfg.Addr)
	assert.Equal(t, "app:secret@tcp(db.internal:3306)/shop", cfg.FormatDSN())
}

func TestNewFromDSN(t *testing.T) {
	d, err := NewFromDSN("app:secret@tcp(localhost:3307)/shop")
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())
	assert.Equal(t, "mysql", d.Dialect().Name())

	_, err = NewFromDSN("not a dsn")
	assert.Error(t, err)
}

func TestLoadTable(t *testing.T) {
	d, mock := setupTestDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.COLUMNS`)).
		WithArgs("sample4_post_category").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT", "COLUMN_KEY", "EXTRA"}).
			AddRow("id", "int", "NO", nil, "PRI", "auto_increment").
			AddRow("name", "varchar(255)", "NO", nil, "UNI", "").
			AddRow("note", "text", "YES", "none", "", ""))

	info, err := d.LoadTable(context.Background(), "sample4_post_category")
	require.NoError(t, err)
	require.Len(t, info.Columns, 3)

	id := info.Column("id")
	assert.True(t, id.Primary)
	assert.True(t, id.AutoIncrement)

	name := info.Column("name")
	assert.True(t, name.Unique)
	assert.False(t, name.Nullable)

	note := info.Column("note")
	assert.True(t, note.Nullable)
	if assert.NotNil(t, note.Default) {
		assert.Equal(t, "none", *note.Default)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadTable_Missing(t *testing.T) {
	d, mock := setupTestDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.COLUMNS`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT", "COLUMN_KEY", "EXTRA"}))

	info, err := d.LoadTable(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestListTables(t *testing.T) {
	d, mock := setupTestDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM information_schema.TABLES`)).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("authors"))

	tables, err := d.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"authors"}, tables)
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}), driver.ErrDuplicateKey)
	assert.ErrorIs(t, mapError(&mysql.MySQLError{Number: 1452}), driver.ErrForeignKeyViolation)
	assert.ErrorIs(t, mapError(&mysql.MySQLError{Number: 1451}), driver.ErrForeignKeyViolation)

	other := &mysql.MySQLError{Number: 1146}
	assert.Same(t, other, mapError(other))
	assert.Equal(t, "plain", mapError(errors.New("plain")).Error())
}
