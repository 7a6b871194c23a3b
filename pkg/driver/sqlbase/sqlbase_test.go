package sqlbase

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/pebble-entities/pkg/dialect"
	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

type stubIntrospector struct {
	tables []string
}

func (s stubIntrospector) ListTables(context.Context, Querier) ([]string, error) {
	return s.tables, nil
}

func (s stubIntrospector) LoadTable(_ context.Context, _ Querier, name string) (*schema.TableInfo, error) {
	for _, t := range s.tables {
		if t == name {
			return &schema.TableInfo{Name: name}, nil
		}
	}
	return nil, nil
}

var errConflict = errors.New("conflict")

// setupTestDB returns a connected DB over sqlmock using the given dialect.
func setupTestDB(t *testing.T, d dialect.Dialect) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := New(Spec{
		Name:         d.Name(),
		Dialect:      d,
		Introspector: stubIntrospector{tables: []string{"post"}},
		MapError: func(err error) error {
			if err.Error() == "duplicate" {
				return errConflict
			}
			return err
		},
	}, WithDB(conn))
	require.NoError(t, db.Connect(context.Background()))

	t.Cleanup(func() {
		mock.ExpectClose()
		_ = db.Disconnect(context.Background())
	})
	return db, mock
}

func TestNotConnected(t *testing.T) {
	db := New(Spec{Name: "x", Dialect: dialect.SQLite{}})
	ctx := context.Background()

	_, err := db.Select(ctx, driver.SelectQuery{Table: "post"})
	assert.ErrorIs(t, err, driver.ErrNotConnected)
	_, err = db.ListTables(ctx)
	assert.ErrorIs(t, err, driver.ErrNotConnected)
	assert.ErrorIs(t, db.Disconnect(ctx), driver.ErrNotConnected)
}

func TestCreateTable(t *testing.T) {
	db, mock := setupTestDB(t, dialect.SQLite{})

	table := schema.TableDefinition{
		Name: "post",
		Columns: []schema.ColumnDefinition{
			{Name: "id", Type: schema.Integer, Primary: true, AutoIncrement: true},
		},
		PrimaryKey: []string{"id"},
	}
	mock.ExpectExec(regexp.QuoteMeta(dialect.CreateTableSQL(dialect.SQLite{}, table))).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.CreateTable(context.Background(), table))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlterColumn_Unsupported(t *testing.T) {
	db, mock := setupTestDB(t, dialect.SQLite{})

	err := db.AlterColumn(context.Background(), "post",
		schema.ColumnInfo{Name: "title", DataType: "TEXT"},
		schema.ColumnDefinition{Name: "title", Type: schema.String})
	assert.ErrorIs(t, err, driver.ErrUnsupported)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_Returning(t *testing.T) {
	db, mock := setupTestDB(t, dialect.SQLite{})

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "post" ("title") VALUES (?) RETURNING "id"`)).
		WithArgs("hello").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	row, err := db.Insert(context.Background(), "post", []driver.Value{{Column: "title", Value: "hello"}}, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, driver.Row{"id": int64(7)}, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_LastInsertID(t *testing.T) {
	db, mock := setupTestDB(t, dialect.MySQL{})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `post` (`title`) VALUES (?)")).
		WithArgs("hello").
		WillReturnResult(sqlmock.NewResult(42, 1))

	row, err := db.Insert(context.Background(), "post", []driver.Value{{Column: "title", Value: "hello"}}, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), row["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_MapsErrors(t *testing.T) {
	db, mock := setupTestDB(t, dialect.MySQL{})

	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("duplicate"))

	_, err := db.Insert(context.Background(), "post", []driver.Value{{Column: "title", Value: "x"}}, nil)
	var qErr *driver.QueryError
	require.ErrorAs(t, err, &qErr)
	assert.Contains(t, qErr.Query, "INSERT INTO `post`")
	assert.ErrorIs(t, err, errConflict)
}

func TestUpdateDelete(t *testing.T) {
	db, mock := setupTestDB(t, dialect.SQLite{})
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "post" SET "title" = ? WHERE "id" = ?`)).
		WithArgs("new", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "post" WHERE "id" = ?`)).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := db.Update(ctx, "post", []driver.Value{{Column: "title", Value: "new"}}, []driver.Value{{Column: "id", Value: 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = db.Delete(ctx, "post", []driver.Value{{Column: "id", Value: 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.Delete(ctx, "post", nil)
	assert.ErrorIs(t, err, dialect.ErrNoConditions)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectAndCount(t *testing.T) {
	db, mock := setupTestDB(t, dialect.SQLite{})
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id", "title" FROM "post" WHERE "draft" = ? ORDER BY "id" ASC LIMIT 2`)).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(int64(1), "a").
			AddRow(int64(2), nil))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "post"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))

	rows, err := db.Select(ctx, driver.SelectQuery{
		Table:   "post",
		Columns: []string{"id", "title"},
		Where:   []driver.Value{{Column: "draft", Value: false}},
		OrderBy: []driver.Order{{Column: "id"}},
		Limit:   2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, driver.Row{"id": int64(1), "title": "a"}, rows[0])
	assert.Nil(t, rows[1]["title"])

	n, err := db.Count(ctx, "post", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospectionDelegates(t *testing.T) {
	db, _ := setupTestDB(t, dialect.SQLite{})
	ctx := context.Background()

	tables, err := db.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"post"}, tables)

	info, err := db.LoadTable(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, info)
}
