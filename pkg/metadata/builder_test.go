package metadata

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

func declarePostCategory(t *testing.T, s *Storage) {
	t.Helper()
	err := Declare[PostCategory](s).
		Table("sample4_post_category").
		PrimaryGeneratedColumn("ID").
		Column("Name", schema.ColumnOptions{}).
		Err()
	require.NoError(t, err)
}

func TestBuilder_PostCategory(t *testing.T) {
	s := NewStorage()
	declarePostCategory(t, s)

	metas, err := NewBuilder(s).Build(PostCategory{})
	require.NoError(t, err)
	require.Len(t, metas, 1)

	m := metas[0]
	assert.Equal(t, reflect.TypeFor[PostCategory](), m.Target)
	assert.Equal(t, "PostCategory", m.Name)
	assert.Equal(t, "sample4_post_category", m.TableName)
	require.Len(t, m.Columns, 2)

	id := m.Columns[0]
	assert.Equal(t, "id", id.Name)
	assert.Equal(t, schema.Integer, id.Type)
	assert.True(t, id.Primary)
	assert.False(t, id.Nullable)
	assert.True(t, id.AutoIncrement)
	assert.Equal(t, []int{0}, id.FieldIndex)

	name := m.Columns[1]
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, schema.String, name.Type)
	assert.Equal(t, schema.DefaultStringLength, name.Length)
	assert.False(t, name.Primary)

	assert.Equal(t, []*schema.ColumnMetadata{id}, m.PrimaryColumns)
	assert.Same(t, id, m.GeneratedColumn())
}

func TestBuilder_PrimaryColumnCannotBeNullable(t *testing.T) {
	// bypass the declarer, which rejects this combination itself
	s := NewStorage()
	target := reflect.TypeFor[PostCategory]()
	s.AddTable(TableDeclaration{Target: target})
	s.AddColumn(ColumnDeclaration{Target: target, Property: "ID", Primary: true, Options: schema.ColumnOptions{Nullable: true}})

	_, err := NewBuilder(s).Build(target)

	var pErr *schema.PrimaryColumnCannotBeNullableError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, target, pErr.Target)
	assert.Equal(t, "ID", pErr.Property)
}

func TestBuilder_ColumnTypeUndefined(t *testing.T) {
	s := NewStorage()
	err := Declare[Opaque](s).
		PrimaryGeneratedColumn("ID").
		Column("Payload", schema.ColumnOptions{}).
		Err()
	require.NoError(t, err)

	_, err = NewBuilder(s).Build(Opaque{})

	var tErr *schema.ColumnTypeUndefinedError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "Payload", tErr.Property)
	assert.Equal(t, reflect.TypeFor[chan int](), tErr.GoType)
}

func TestBuilder_ExplicitTypeSkipsInference(t *testing.T) {
	s := NewStorage()
	err := Declare[Opaque](s).
		PrimaryGeneratedColumn("ID").
		Column("Payload", schema.ColumnOptions{Type: schema.JSON}).
		Err()
	require.NoError(t, err)

	metas, err := NewBuilder(s).Build(Opaque{})
	require.NoError(t, err)
	assert.Equal(t, schema.JSON, metas[0].ColumnByProperty("Payload").Type)
}

func TestBuilder_CustomTypeMapper(t *testing.T) {
	s := NewStorage()
	err := Declare[Opaque](s).
		PrimaryGeneratedColumn("ID").
		Column("Payload", schema.ColumnOptions{}).
		Err()
	require.NoError(t, err)

	mapper := schema.NewTypeMapper()
	mapper.RegisterType(reflect.TypeFor[chan int](), schema.Bytes)

	metas, err := NewBuilder(s, WithTypeMapper(mapper)).Build(Opaque{})
	require.NoError(t, err)
	assert.Equal(t, schema.Bytes, metas[0].ColumnByProperty("Payload").Type)
}

func TestBuilder_DeclarationErrors(t *testing.T) {
	postCategory := reflect.TypeFor[PostCategory]()

	tests := []struct {
		name    string
		declare func(s *Storage)
		target  any
		check   func(t *testing.T, err error)
	}{
		{
			name: "duplicate property",
			declare: func(s *Storage) {
				_ = Declare[PostCategory](s).PrimaryGeneratedColumn("ID").
					Column("Name", schema.ColumnOptions{}).
					Column("Name", schema.ColumnOptions{}).Err()
			},
			check: func(t *testing.T, err error) {
				var dErr *schema.DuplicateColumnError
				require.ErrorAs(t, err, &dErr)
				assert.Equal(t, "Name", dErr.Property)
				assert.Empty(t, dErr.Column)
			},
		},
		{
			name: "duplicate column name",
			declare: func(s *Storage) {
				_ = Declare[PostCategory](s).PrimaryGeneratedColumn("ID").
					Column("Name", schema.ColumnOptions{Name: "id"}).Err()
			},
			check: func(t *testing.T, err error) {
				var dErr *schema.DuplicateColumnError
				require.ErrorAs(t, err, &dErr)
				assert.Equal(t, "id", dErr.Column)
			},
		},
		{
			name: "conflicting table names",
			declare: func(s *Storage) {
				_ = Declare[PostCategory](s).Table("a").Table("b").Table("a").PrimaryGeneratedColumn("ID").Err()
			},
			check: func(t *testing.T, err error) {
				var cErr *schema.ConflictingTableNameError
				require.ErrorAs(t, err, &cErr)
				assert.Equal(t, []string{"a", "b"}, cErr.Names)
			},
		},
		{
			name: "unknown property",
			declare: func(s *Storage) {
				s.AddColumn(ColumnDeclaration{Target: postCategory, Property: "Slug"})
			},
			check: func(t *testing.T, err error) {
				var pErr *schema.PropertyNotFoundError
				require.ErrorAs(t, err, &pErr)
				assert.Equal(t, "Slug", pErr.Property)
			},
		},
		{
			name: "auto increment on string",
			declare: func(s *Storage) {
				_ = Declare[PostCategory](s).PrimaryGeneratedColumn("ID").
					Column("Name", schema.ColumnOptions{AutoIncrement: true}).Err()
			},
			check: func(t *testing.T, err error) {
				var aErr *schema.InvalidAutoIncrementError
				require.ErrorAs(t, err, &aErr)
				assert.Equal(t, schema.String, aErr.Type)
			},
		},
		{
			name: "missing primary column",
			declare: func(s *Storage) {
				_ = Declare[PostCategory](s).Column("Name", schema.ColumnOptions{}).Err()
			},
			check: func(t *testing.T, err error) {
				var mErr *schema.MissingPrimaryColumnError
				require.ErrorAs(t, err, &mErr)
			},
		},
		{
			name: "bad default",
			declare: func(s *Storage) {
				_ = Declare[PostCategory](s).PrimaryColumn("ID", schema.ColumnOptions{Default: schema.Default("'one'")}).Err()
			},
			check: func(t *testing.T, err error) {
				var dErr *schema.InvalidDefaultError
				require.ErrorAs(t, err, &dErr)
				assert.Equal(t, "ID", dErr.Property)
			},
		},
		{
			name: "listener method missing",
			declare: func(s *Storage) {
				_ = Declare[PostCategory](s).PrimaryGeneratedColumn("ID").
					ListenMethod(schema.AfterLoad, "Hydrate").Err()
			},
			check: func(t *testing.T, err error) {
				var lErr *schema.InvalidListenerError
				require.ErrorAs(t, err, &lErr)
				assert.Equal(t, "Hydrate", lErr.Method)
			},
		},
		{
			name: "listener method with wrong signature",
			declare: func(s *Storage) {
				_ = Declare[Article](s).PrimaryGeneratedColumn("ID").
					ListenMethod(schema.AfterInsert, "AfterInsert").Err()
			},
			target: Article{},
			check: func(t *testing.T, err error) {
				var lErr *schema.InvalidListenerError
				require.ErrorAs(t, err, &lErr)
			},
		},
		{
			name:    "not a struct",
			declare: func(s *Storage) {},
			target:  42,
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStorage()
			tt.declare(s)
			target := tt.target
			if target == nil {
				target = postCategory
			}

			metas, err := NewBuilder(s).Build(target)

			assert.Nil(t, metas)
			assert.ErrorIs(t, err, schema.ErrDeclaration)
			tt.check(t, err)
		})
	}
}

func TestBuilder_FailFastAbortsBatch(t *testing.T) {
	s := NewStorage()
	declarePostCategory(t, s)
	require.NoError(t, Declare[Opaque](s).Table("opaque").PrimaryGeneratedColumn("ID").Column("Payload", schema.ColumnOptions{}).Err())

	metas, err := NewBuilder(s).BuildAll()
	assert.Nil(t, metas)
	assert.ErrorIs(t, err, schema.ErrDeclaration)
}

func TestBuilder_DuplicateTable(t *testing.T) {
	s := NewStorage()
	declarePostCategory(t, s)
	require.NoError(t, Declare[Node](s).Table("sample4_post_category").PrimaryGeneratedColumn("ID").Err())

	_, err := NewBuilder(s).BuildAll()

	var dErr *schema.DuplicateTableError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "sample4_post_category", dErr.Table)
}

func TestBuilder_SameTableNameTwiceIsNotAConflict(t *testing.T) {
	s := NewStorage()
	declarePostCategory(t, s)
	Declare[PostCategory](s).Table("sample4_post_category")

	metas, err := NewBuilder(s).BuildAll()
	require.NoError(t, err)
	assert.Equal(t, "sample4_post_category", metas[0].TableName)
}

func TestBuilder_Idempotent(t *testing.T) {
	s := NewStorage()
	declarePostCategory(t, s)
	require.NoError(t, RegisterStruct(s, Author{}))

	b := NewBuilder(s)
	first, err := b.BuildAll()
	require.NoError(t, err)
	second, err := b.BuildAll()
	require.NoError(t, err)

	// Author's listeners hold functions, which never compare equal
	for _, ms := range [][]*schema.EntityMetadata{first, second} {
		for _, m := range ms {
			m.Listeners = nil
		}
	}
	assert.True(t, reflect.DeepEqual(first, second))
	for i := range first {
		assert.NotSame(t, first[i], second[i])
		assert.Equal(t, first[i].TableName, second[i].TableName)
		assert.Equal(t, first[i].PrimaryColumns, second[i].PrimaryColumns)
	}
}

func TestBuilder_NamingStrategy(t *testing.T) {
	s := NewStorage()
	require.NoError(t, Declare[PostCategory](s).PrimaryGeneratedColumn("ID").Column("Name", schema.ColumnOptions{}).Err())

	metas, err := NewBuilder(s).Build(PostCategory{})
	require.NoError(t, err)
	assert.Equal(t, "post_category", metas[0].TableName)

	metas, err = NewBuilder(s, WithNamingStrategy(schema.PluralNamingStrategy{})).Build(PostCategory{})
	require.NoError(t, err)
	assert.Equal(t, "post_categories", metas[0].TableName)
}

func TestBuilder_Inheritance(t *testing.T) {
	s := NewStorage()
	require.NoError(t, Declare[Base](s).PrimaryGeneratedColumn("ID").Err())
	require.NoError(t, Declare[Derived](s).Table("derived").Column("Label", schema.ColumnOptions{Type: schema.Text}).Err())

	metas, err := NewBuilder(s).Build(Derived{})
	require.NoError(t, err)

	m := metas[0]
	require.Len(t, m.Columns, 2)
	assert.Equal(t, "id", m.Columns[0].Name)
	assert.Equal(t, []int{0, 0}, m.Columns[0].FieldIndex)
	assert.Equal(t, reflect.TypeFor[Derived](), m.Columns[0].Target)
	assert.Equal(t, "label", m.Columns[1].Name)
	assert.Len(t, m.PrimaryColumns, 1)
}

func TestBuilder_PointerEmbedRejected(t *testing.T) {
	s := NewStorage()
	require.NoError(t, Declare[Linked](s).
		PrimaryGeneratedColumn("ID").
		Column("Label", schema.ColumnOptions{Type: schema.Text}).
		Err())

	_, err := NewBuilder(s).Build(Linked{})
	var pErr *schema.PropertyNotFoundError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "ID", pErr.Property)
	assert.Equal(t, "promoted through an embedded pointer", pErr.Reason)
	assert.ErrorIs(t, err, schema.ErrDeclaration)
}

func TestBuilder_TaggedEntities(t *testing.T) {
	s := NewStorage()
	require.NoError(t, RegisterStruct(s, Author{}))
	require.NoError(t, RegisterStruct(s, Article{}))

	metas, err := NewBuilder(s).BuildAll()
	require.NoError(t, err)
	require.Len(t, metas, 2)

	author, article := metas[0], metas[1]
	assert.Equal(t, "authors", author.TableName)
	assert.Equal(t, schema.UUID, author.ColumnByName("id").Type)
	assert.Equal(t, 80, author.ColumnByName("name").Length)
	assert.True(t, author.ColumnByName("email").Unique)

	assert.Equal(t, "article", article.TableName)
	assert.Equal(t, schema.BigInt, article.ColumnByName("id").Type)
	assert.Equal(t, "title", article.ColumnByProperty("Title").Name)
	assert.Len(t, article.ColumnsByMode(schema.ModeCreateDate), 1)
	assert.Len(t, article.ColumnsByMode(schema.ModeUpdateDate), 1)
	assert.Equal(t, []string{"authors"}, article.Dependencies())

	require.Len(t, article.ForeignKeys, 1)
	fk := article.ForeignKeys[0]
	assert.Equal(t, "fk_article_author_id_authors", fk.Name)
	assert.Equal(t, reflect.TypeFor[Author](), fk.ReferencedTarget)
	assert.Equal(t, schema.Cascade, fk.OnDelete)
}

func TestBuilder_ForeignKeyErrors(t *testing.T) {
	t.Run("referenced entity not in build", func(t *testing.T) {
		s := NewStorage()
		require.NoError(t, RegisterStruct(s, Author{}))
		require.NoError(t, RegisterStruct(s, Article{}))

		_, err := NewBuilder(s).Build(Article{})

		var fkErr *schema.ForeignKeyTargetError
		require.ErrorAs(t, err, &fkErr)
		assert.Equal(t, "authors.id", fkErr.Reference)
	})

	t.Run("referenced column missing", func(t *testing.T) {
		s := NewStorage()
		require.NoError(t, Declare[Node](s).
			PrimaryGeneratedColumn("ID").
			Column("ParentID", schema.ColumnOptions{Nullable: true}).
			References("ParentID", Node{}, "Missing").Err())

		_, err := NewBuilder(s).Build(Node{})
		var fkErr *schema.ForeignKeyTargetError
		require.ErrorAs(t, err, &fkErr)
	})

	t.Run("property is not a column", func(t *testing.T) {
		s := NewStorage()
		require.NoError(t, Declare[Node](s).
			PrimaryGeneratedColumn("ID").
			References("ParentID", Node{}, "ID").Err())

		_, err := NewBuilder(s).Build(Node{})
		var fkErr *schema.ForeignKeyTargetError
		require.ErrorAs(t, err, &fkErr)
	})

	t.Run("self reference", func(t *testing.T) {
		s := NewStorage()
		require.NoError(t, Declare[Node](s).
			PrimaryGeneratedColumn("ID").
			Column("ParentID", schema.ColumnOptions{Nullable: true}).
			References("ParentID", Node{}, "ID").Err())

		metas, err := NewBuilder(s).Build(Node{})
		require.NoError(t, err)
		assert.Equal(t, "node", metas[0].ForeignKeys[0].ReferencedTable)
		assert.Empty(t, metas[0].Dependencies())
	})
}

func TestBuilder_ResolvesListenerMethods(t *testing.T) {
	s := NewStorage()
	require.NoError(t, RegisterStruct(s, Author{}))
	require.NoError(t, RegisterStruct(s, Article{}))

	metas, err := NewBuilder(s).BuildAll()
	require.NoError(t, err)
	article := metas[1]

	load := article.ListenersFor(schema.AfterLoad)
	require.Len(t, load, 1)
	entity := &Article{}
	require.NoError(t, load[0].Handler(context.Background(), entity))
	assert.True(t, entity.loaded)

	insert := article.ListenersFor(schema.BeforeInsert)
	require.Len(t, insert, 1)
	assert.ErrorIs(t, insert[0].Handler(context.Background(), &Article{}), errBlankTitle)
	assert.NoError(t, insert[0].Handler(context.Background(), &Article{Title: "ok"}))
	assert.Error(t, insert[0].Handler(context.Background(), Article{}), "non-pointer entity")

	// promoted from the embedded Audit
	update := article.ListenersFor(schema.BeforeUpdate)
	require.Len(t, update, 1)
	assert.NoError(t, update[0].Handler(context.Background(), &Article{}))
}

func TestBuilder_BuildAllEmpty(t *testing.T) {
	metas, err := NewBuilder(NewStorage()).BuildAll()
	require.NoError(t, err)
	assert.Empty(t, metas)
}
