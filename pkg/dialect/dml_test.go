package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertSQL(t *testing.T) {
	values := []Value{{Column: "title", Value: "a"}, {Column: "views", Value: 1}}

	sql, args := InsertSQL(Postgres{}, "post", values, []string{"id"})
	assert.Equal(t, `INSERT INTO "post" ("title", "views") VALUES ($1, $2) RETURNING "id"`, sql)
	assert.Equal(t, []any{"a", 1}, args)

	sql, _ = InsertSQL(MySQL{}, "post", values, []string{"id"})
	assert.Equal(t, "INSERT INTO `post` (`title`, `views`) VALUES (?, ?)", sql, "mysql has no RETURNING")

	sql, _ = InsertSQL(SQLite{}, "post", values, nil)
	assert.Equal(t, `INSERT INTO "post" ("title", "views") VALUES (?, ?)`, sql)
}

func TestInsertSQL_NoValues(t *testing.T) {
	sql, args := InsertSQL(Postgres{}, "post", nil, []string{"id"})
	assert.Equal(t, `INSERT INTO "post" DEFAULT VALUES RETURNING "id"`, sql)
	assert.Empty(t, args)

	sql, _ = InsertSQL(MySQL{}, "post", nil, nil)
	assert.Equal(t, "INSERT INTO `post` () VALUES ()", sql)
}

func TestUpdateSQL(t *testing.T) {
	sql, args, err := UpdateSQL(Postgres{}, "post",
		[]Value{{Column: "title", Value: "b"}, {Column: "body", Value: nil}},
		[]Value{{Column: "id", Value: 7}})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "post" SET "title" = $1, "body" = $2 WHERE "id" = $3`, sql)
	assert.Equal(t, []any{"b", nil, 7}, args)

	_, _, err = UpdateSQL(Postgres{}, "post", []Value{{Column: "title", Value: "b"}}, nil)
	assert.ErrorIs(t, err, ErrNoConditions)

	_, _, err = UpdateSQL(Postgres{}, "post", nil, []Value{{Column: "id", Value: 7}})
	assert.Error(t, err)
}

func TestDeleteSQL(t *testing.T) {
	sql, args, err := DeleteSQL(MySQL{}, "post", []Value{{Column: "id", Value: 7}})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM `post` WHERE `id` = ?", sql)
	assert.Equal(t, []any{7}, args)

	_, _, err = DeleteSQL(MySQL{}, "post", nil)
	assert.ErrorIs(t, err, ErrNoConditions)
}

func TestSelectSQL(t *testing.T) {
	sql, args := SelectSQL(Postgres{}, Query{
		Table:   "post",
		Columns: []string{"id", "title"},
		Where:   []Value{{Column: "author_id", Value: 3}, {Column: "deleted_at"}},
		OrderBy: []Order{{Column: "id", Desc: true}, {Column: "title"}},
		Limit:   10,
		Offset:  20,
	})
	assert.Equal(t, `SELECT "id", "title" FROM "post" WHERE "author_id" = $1 AND "deleted_at" IS NULL ORDER BY "id" DESC, "title" ASC LIMIT 10 OFFSET 20`, sql)
	assert.Equal(t, []any{3}, args)
}

func TestSelectSQL_OffsetWithoutLimit(t *testing.T) {
	tests := []struct {
		d    Dialect
		want string
	}{
		{Postgres{}, `SELECT * FROM "post" OFFSET 5`},
		{SQLite{}, `SELECT * FROM "post" LIMIT -1 OFFSET 5`},
		{MySQL{}, "SELECT * FROM `post` LIMIT 18446744073709551615 OFFSET 5"},
	}

	for _, tt := range tests {
		t.Run(tt.d.Name(), func(t *testing.T) {
			sql, args := SelectSQL(tt.d, Query{Table: "post", Offset: 5})
			assert.Equal(t, tt.want, sql)
			assert.Empty(t, args)
		})
	}
}

func TestCountSQL(t *testing.T) {
	sql, args := CountSQL(Postgres{}, "post", nil)
	assert.Equal(t, `SELECT COUNT(*) FROM "post"`, sql)
	assert.Empty(t, args)

	sql, args = CountSQL(SQLite{}, "post", []Value{{Column: "draft", Value: true}})
	assert.Equal(t, `SELECT COUNT(*) FROM "post" WHERE "draft" = ?`, sql)
	assert.Equal(t, []any{true}, args)
}
