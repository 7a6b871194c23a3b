package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/driver/sqlbase"
)

func setupTestDriver(t *testing.T) (*Driver, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	d := New("test.db", sqlbase.WithDB(conn))
	require.NoError(t, d.Connect(context.Background()))
	t.Cleanup(func() {
		mock.ExpectClose()
		_ = d.Disconnect(context.Background())
	})
	return d, mock
}

func TestDSN(t *testing.T) {
	tests := map[string]string{
		"app.db":                   "app.db?_foreign_keys=on",
		":memory:":                 ":memory:?_foreign_keys=on",
		"file:app.db?cache=shared": "file:app.db?cache=shared&_foreign_keys=on",
		"app.db?_foreign_keys=off": "app.db?_foreign_keys=off",
		"app.db?_fk=1":             "app.db?_fk=1",
	}
	for in, want := range tests {
		assert.Equal(t, want, DSN(in), in)
	}
}

func TestLoadTable(t *testing.T) {
	d, mock := setupTestDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM pragma_table_info(?)`)).
		WithArgs("sample4_post_category").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "notnull", "dflt_value", "pk"}).
			AddRow("id", "INTEGER", 1, nil, 1).
			AddRow("name", "VARCHAR(255)", 1, nil, 0).
			AddRow("note", "TEXT", 0, "'none'", 0))

	info, err := d.LoadTable(context.Background(), "sample4_post_category")
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Len(t, info.Columns, 3)

	id := info.Column("id")
	assert.True(t, id.Primary)
	assert.True(t, id.AutoIncrement)
	assert.False(t, id.Nullable)

	name := info.Column("name")
	assert.Equal(t, "VARCHAR(255)", name.DataType)
	assert.False(t, name.Primary)
	assert.Nil(t, name.Default)

	note := info.Column("note")
	assert.True(t, note.Nullable)
	if assert.NotNil(t, note.Default) {
		assert.Equal(t, "'none'", *note.Default)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadTable_Missing(t *testing.T) {
	d, mock := setupTestDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM pragma_table_info(?)`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "notnull", "dflt_value", "pk"}))

	info, err := d.LoadTable(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestLoadTable_CompositeKeyIsNotGenerated(t *testing.T) {
	d, mock := setupTestDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM pragma_table_info(?)`)).
		WithArgs("links").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "notnull", "dflt_value", "pk"}).
			AddRow("a", "INTEGER", 1, nil, 1).
			AddRow("b", "INTEGER", 1, nil, 2))

	info, err := d.LoadTable(context.Background(), "links")
	require.NoError(t, err)
	for _, col := range info.Columns {
		assert.True(t, col.Primary)
		assert.False(t, col.AutoIncrement, col.Name)
	}
}

func TestListTables(t *testing.T) {
	d, mock := setupTestDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name FROM sqlite_master`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("authors").AddRow("posts"))

	tables, err := d.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"authors", "posts"}, tables)
}

func TestMapError(t *testing.T) {
	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	fk := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}

	assert.ErrorIs(t, mapError(unique), driver.ErrDuplicateKey)
	assert.ErrorIs(t, mapError(fk), driver.ErrForeignKeyViolation)

	other := errors.New("disk I/O error")
	assert.Same(t, other, mapError(other))
}
