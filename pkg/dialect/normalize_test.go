package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		d      Dialect
		native string
		want   string
	}{
		{Postgres{}, "character varying(100)", "varchar(100)"},
		{Postgres{}, "timestamp with time zone", "timestamptz"},
		{Postgres{}, "timestamp without time zone", "timestamp"},
		{Postgres{}, "INT4", "integer"},
		{Postgres{}, "serial", "integer"},
		{Postgres{}, "double  precision", "double precision"},
		{Postgres{}, "numeric(10, 2)", "numeric(10,2)"},
		{Postgres{}, "numeric(10,0)", "numeric(10)"},
		{SQLite{}, "VARCHAR(255)", "varchar(255)"},
		{SQLite{}, "BIGINT", "integer"},
		{SQLite{}, "TIMESTAMP", "datetime"},
		{MySQL{}, "int(11)", "int"},
		{MySQL{}, "bigint(20) unsigned", "bigint"},
		{MySQL{}, "tinyint(1)", "tinyint(1)"},
		{MySQL{}, "boolean", "tinyint(1)"},
		{MySQL{}, "decimal(10,0)", "decimal(10)"},
		{MySQL{}, "VARCHAR(255)", "varchar(255)"},
	}

	for _, tt := range tests {
		t.Run(tt.d.Name()+"/"+tt.native, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.NormalizeType(tt.native))
		})
	}
}

func TestNormalizeDefault(t *testing.T) {
	tests := map[string]string{
		"'draft'::character varying": "draft",
		"(0)":                        "0",
		"((1))":                      "1",
		"CURRENT_TIMESTAMP":          "now()",
		"now()":                      "now()",
		"'t'":                        "true",
		"TRUE":                       "true",
		"(a) + (b)":                  "(a) + (b)",
	}

	for in, want := range tests {
		assert.Equal(t, want, NormalizeDefault(in), in)
	}
}

func TestCompareColumn(t *testing.T) {
	t.Run("unchanged varchar", func(t *testing.T) {
		change := CompareColumn(Postgres{},
			schema.ColumnInfo{Name: "name", DataType: "character varying(255)"},
			schema.ColumnDefinition{Name: "name", Type: schema.String, Length: 255})
		assert.False(t, change.Any())
	})

	t.Run("serial matches generated column", func(t *testing.T) {
		change := CompareColumn(Postgres{},
			schema.ColumnInfo{Name: "id", DataType: "integer", Default: schema.Default("nextval('post_id_seq'::regclass)"), Primary: true},
			schema.ColumnDefinition{Name: "id", Type: schema.Integer, Primary: true, AutoIncrement: true})
		assert.False(t, change.Any())
	})

	t.Run("identity matches generated column", func(t *testing.T) {
		change := CompareColumn(Postgres{},
			schema.ColumnInfo{Name: "id", DataType: "bigint", AutoIncrement: true, Primary: true},
			schema.ColumnDefinition{Name: "id", Type: schema.BigInt, Primary: true, AutoIncrement: true})
		assert.False(t, change.Any())
	})

	t.Run("nullability", func(t *testing.T) {
		change := CompareColumn(Postgres{},
			schema.ColumnInfo{Name: "body", DataType: "text", Nullable: true},
			schema.ColumnDefinition{Name: "body", Type: schema.Text})
		assert.Equal(t, ColumnChange{Nullable: true}, change)
	})

	t.Run("default and type", func(t *testing.T) {
		change := CompareColumn(Postgres{},
			schema.ColumnInfo{Name: "status", DataType: "text", Default: schema.Default("'a'::text")},
			schema.ColumnDefinition{Name: "status", Type: schema.String, Length: 20, Default: schema.Default("'b'")})
		assert.Equal(t, ColumnChange{Type: true, Default: true}, change)
	})
}

func TestAlterColumnSQL(t *testing.T) {
	from := schema.ColumnInfo{Name: "views", DataType: "text", Nullable: true}
	to := schema.ColumnDefinition{Name: "views", Type: schema.Integer}

	stmts, err := Postgres{}.AlterColumnSQL("post", from, to)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`ALTER TABLE "post" ALTER COLUMN "views" TYPE integer USING CASE WHEN "views" ~ '^-?[0-9]+$' THEN "views"::integer ELSE NULL END`,
		`ALTER TABLE "post" ALTER COLUMN "views" SET NOT NULL`,
	}, stmts)

	stmts, err = MySQL{}.AlterColumnSQL("post", from, to)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALTER TABLE `post` MODIFY COLUMN `views` int NOT NULL"}, stmts)

	_, err = SQLite{}.AlterColumnSQL("post", from, to)
	assert.ErrorIs(t, err, ErrUnsupported)

	stmts, err = SQLite{}.AlterColumnSQL("post", schema.ColumnInfo{Name: "views", DataType: "INTEGER"}, to)
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestAlterColumnSQL_Defaults(t *testing.T) {
	p := Postgres{}

	stmts, err := p.AlterColumnSQL("post",
		schema.ColumnInfo{Name: "draft", DataType: "boolean", Default: schema.Default("false")},
		schema.ColumnDefinition{Name: "draft", Type: schema.Boolean, Nullable: false})
	require.NoError(t, err)
	assert.Equal(t, []string{`ALTER TABLE "post" ALTER COLUMN "draft" DROP DEFAULT`}, stmts)

	stmts, err = p.AlterColumnSQL("post",
		schema.ColumnInfo{Name: "id", DataType: "integer", Primary: true},
		schema.ColumnDefinition{Name: "id", Type: schema.Integer, Primary: true, AutoIncrement: true})
	require.NoError(t, err)
	assert.Equal(t, []string{`ALTER TABLE "post" ALTER COLUMN "id" ADD GENERATED BY DEFAULT AS IDENTITY`}, stmts)
}
