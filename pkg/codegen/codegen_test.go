package codegen

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/pebble-entities/pkg/loader"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

func blogPackage() *loader.Package {
	return &loader.Package{
		Name: "blog",
		Entities: []*loader.Entity{
			{
				Name:  "Author",
				Table: "authors",
				Columns: []*loader.Column{
					{Property: "ID", Primary: true, Options: schema.ColumnOptions{Name: "id", AutoIncrement: true}},
					{Property: "Email", Options: schema.ColumnOptions{Type: schema.String, Length: 320, Unique: true}},
				},
			},
			{
				Name: "Post",
				Columns: []*loader.Column{
					{Property: "Slug", Primary: true, Options: schema.ColumnOptions{Type: schema.String, Length: 64}},
					{Property: "Score", Options: schema.ColumnOptions{Type: schema.Decimal, Precision: 5, Scale: 2, Default: schema.Default("0")}},
					{Property: "Body", Options: schema.ColumnOptions{Name: "content", Type: schema.Text, Nullable: true}},
					{
						Property:  "AuthorID",
						Reference: &loader.Reference{Table: "authors", Column: "id", OnDelete: schema.Cascade, OnUpdate: schema.NoAction},
					},
					{
						Property:  "TenantID",
						Reference: &loader.Reference{Table: "tenants", Column: "id", OnDelete: schema.NoAction, OnUpdate: schema.SetNull},
					},
					{Property: "CreatedAt", Mode: schema.ModeCreateDate},
					{Property: "UpdatedAt", Mode: schema.ModeUpdateDate},
				},
				Listeners: []schema.EventType{schema.BeforeInsert},
			},
		},
	}
}

func TestGenerate(t *testing.T) {
	src, err := Generate(blogPackage(), Options{Command: "generate entities --scan ./blog"})
	require.NoError(t, err)
	out := string(src)

	assert.True(t, strings.HasPrefix(out, "// Code generated by pebble. DO NOT EDIT.\n// pebble generate entities --scan ./blog\n\npackage blog\n"))

	for _, want := range []string{
		`"github.com/marshallshelly/pebble-entities/pkg/metadata"`,
		`"github.com/marshallshelly/pebble-entities/pkg/schema"`,
		`func DeclareEntities(s *metadata.Storage) error {`,
		`if err := metadata.Declare[Author](s).`,
		`Table("authors").`,
		`PrimaryGeneratedColumn("ID").`,
		`Column("Email", schema.ColumnOptions{Type: schema.String, Length: 320, Unique: true}).`,
		`if err := metadata.Declare[Post](s).`,
		`Table("").`,
		`PrimaryColumn("Slug", schema.ColumnOptions{Type: schema.String, Length: 64}).`,
		`Column("Score", schema.ColumnOptions{Type: schema.Decimal, Precision: 5, Scale: 2, Default: schema.Default("0")}).`,
		`Column("Body", schema.ColumnOptions{Type: schema.Text, Name: "content", Nullable: true}).`,
		`Column("AuthorID", schema.ColumnOptions{}).`,
		`CreateDateColumn("CreatedAt", schema.ColumnOptions{}).`,
		`UpdateDateColumn("UpdatedAt", schema.ColumnOptions{}).`,
		`References("AuthorID", Author{}, "ID", metadata.OnDelete(schema.Cascade)).`,
		`ReferencesTable("TenantID", "tenants", "id", metadata.OnUpdate(schema.SetNull)).`,
		`ListenMethod(schema.BeforeInsert, "BeforeInsert").`,
	} {
		assert.Contains(t, out, want)
	}

	_, err = parser.ParseFile(token.NewFileSet(), "entities.gen.go", src, 0)
	assert.NoError(t, err, "generated code must parse")
}

func TestGenerate_OnlyMetadataImport(t *testing.T) {
	pkg := &loader.Package{
		Name: "models",
		Entities: []*loader.Entity{{
			Name:    "Counter",
			Columns: []*loader.Column{{Property: "ID", Primary: true, Options: schema.ColumnOptions{AutoIncrement: true}}},
		}},
	}

	src, err := Generate(pkg, Options{FuncName: "Register"})
	require.NoError(t, err)
	out := string(src)
	assert.NotContains(t, out, "pkg/schema")
	assert.NotContains(t, out, "// pebble ")
	assert.Contains(t, out, "func Register(s *metadata.Storage) error {")
}

func TestGenerate_Errors(t *testing.T) {
	_, err := Generate(&loader.Package{Name: "empty"}, Options{})
	assert.ErrorContains(t, err, "no entities")

	_, err = Generate(&loader.Package{}, Options{})
	assert.ErrorContains(t, err, "package name is required")

	_, err = Generate(blogPackage(), Options{FuncName: "not valid"})
	assert.ErrorContains(t, err, "invalid function name")
}

func TestWriteFile_FromLoader(t *testing.T) {
	dir := t.TempDir()
	source := "package shop\n\n// table_name: sample4_post_category\ntype PostCategory struct {\n" +
		"\tID   int    `po:\"id,primaryKey,autoIncrement\"`\n" +
		"\tName string `po:\"name\"`\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "category.go"), []byte(source), 0o644))

	pkg, err := loader.Load(dir)
	require.NoError(t, err)

	path, err := WriteFile("", pkg, Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultFileName), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), `Table("sample4_post_category").`)
	assert.Contains(t, string(written), `Column("Name", schema.ColumnOptions{}).`)

	again, err := loader.Load(dir)
	require.NoError(t, err, "the generated file is skipped on the next scan")
	assert.Len(t, again.Entities, 1)
}
