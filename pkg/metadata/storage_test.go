package metadata

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

func TestStorage_AppendsWithoutValidation(t *testing.T) {
	s := NewStorage()
	target := reflect.TypeFor[PostCategory]()

	s.AddColumn(ColumnDeclaration{Target: target, Property: "Name"})
	s.AddColumn(ColumnDeclaration{Target: target, Property: "Name"})
	s.AddColumn(ColumnDeclaration{Target: target, Property: "Missing", Primary: true, Options: schema.ColumnOptions{Nullable: true}})

	cols := s.Columns(target)
	if assert.Len(t, cols, 3) {
		assert.Equal(t, "Name", cols[0].Property)
		assert.Equal(t, "Name", cols[1].Property)
		assert.Equal(t, "Missing", cols[2].Property)
	}
}

func TestStorage_InheritedDeclarations(t *testing.T) {
	s := NewStorage()
	base := reflect.TypeFor[Base]()
	derived := reflect.TypeFor[Derived]()

	s.AddColumn(ColumnDeclaration{Target: derived, Property: "Label"})
	s.AddColumn(ColumnDeclaration{Target: base, Property: "ID", Primary: true})
	s.AddEntityListener(ListenerDeclaration{Target: base, Event: schema.AfterLoad, Method: "Load"})
	s.AddForeignKey(ForeignKeyDeclaration{Target: derived, Property: "Label"})

	cols := s.Columns(derived)
	if assert.Len(t, cols, 2) {
		assert.Equal(t, "ID", cols[0].Property, "ancestor entries come first")
		assert.Equal(t, "Label", cols[1].Property)
	}
	assert.Len(t, s.Columns(base), 1)
	assert.Len(t, s.EntityListeners(derived), 1)
	assert.Len(t, s.ForeignKeys(derived), 1)
	assert.Empty(t, s.ForeignKeys(base))
}

func TestStorage_TablesAreNotInherited(t *testing.T) {
	s := NewStorage()
	s.AddTable(TableDeclaration{Target: reflect.TypeFor[Base](), Name: "bases"})

	assert.Empty(t, s.Tables(reflect.TypeFor[Derived]()))
	assert.Len(t, s.Tables(reflect.TypeFor[Base]()), 1)
}

func TestStorage_Targets(t *testing.T) {
	s := NewStorage()
	s.AddTable(TableDeclaration{Target: reflect.TypeFor[Node]()})
	s.AddTable(TableDeclaration{Target: reflect.TypeFor[PostCategory]()})
	s.AddTable(TableDeclaration{Target: reflect.TypeFor[Node](), Name: "nodes"})

	assert.Equal(t, []reflect.Type{reflect.TypeFor[Node](), reflect.TypeFor[PostCategory]()}, s.Targets())
}

func TestStorage_Reset(t *testing.T) {
	s := NewStorage()
	target := reflect.TypeFor[PostCategory]()
	s.AddTable(TableDeclaration{Target: target})
	s.AddColumn(ColumnDeclaration{Target: target, Property: "ID"})
	assert.True(t, s.Declared(target))

	s.Reset()

	assert.Empty(t, s.Targets())
	assert.Empty(t, s.Columns(target))
	assert.False(t, s.Declared(target))
}

func TestStorage_ConcurrentAdds(t *testing.T) {
	s := NewStorage()
	target := reflect.TypeFor[PostCategory]()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddColumn(ColumnDeclaration{Target: target, Property: "Name"})
			_ = s.Columns(target)
		}()
	}
	wg.Wait()

	assert.Len(t, s.Columns(target), 50)
}

func TestLineage(t *testing.T) {
	got := Lineage(reflect.TypeFor[Article]())
	assert.Equal(t, []reflect.Type{reflect.TypeFor[Audit](), reflect.TypeFor[Article]()}, got)
	assert.Nil(t, Lineage(nil))
}
