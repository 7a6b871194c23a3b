// Package metadata collects entity declarations and builds validated
// schema.EntityMetadata from them.
package metadata

import (
	"reflect"
	"sync"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// TableDeclaration marks a struct type as an entity.
// An empty Name means the naming strategy picks the table name.
type TableDeclaration struct {
	Target reflect.Type
	Name   string
}

// ColumnDeclaration declares a struct field as a column.
type ColumnDeclaration struct {
	Target   reflect.Type
	Property string
	Options  schema.ColumnOptions
	Primary  bool
	Mode     schema.ColumnMode
}

// ForeignKeyDeclaration declares that a column references another column.
// Either ReferencedTarget and ReferencedProperty, or ReferencedTable and
// ReferencedColumn, are set.
type ForeignKeyDeclaration struct {
	Target             reflect.Type
	Property           string
	ReferencedTarget   reflect.Type
	ReferencedProperty string
	ReferencedTable    string
	ReferencedColumn   string
	OnDelete           schema.ReferenceAction
	OnUpdate           schema.ReferenceAction
}

// ListenerDeclaration binds a handler function or a method name to an event.
type ListenerDeclaration struct {
	Target  reflect.Type
	Event   schema.EventType
	Method  string
	Handler schema.ListenerFunc
}

// Storage accumulates raw declarations. It performs no validation; the
// Builder checks everything. Storage is safe for concurrent use.
type Storage struct {
	mu          sync.RWMutex
	tables      []TableDeclaration
	columns     []ColumnDeclaration
	foreignKeys []ForeignKeyDeclaration
	listeners   []ListenerDeclaration
}

// NewStorage creates an empty Storage.
func NewStorage() *Storage {
	return &Storage{}
}

// AddTable appends a table declaration.
func (s *Storage) AddTable(d TableDeclaration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append(s.tables, d)
}

// AddColumn appends a column declaration. Duplicates are kept.
func (s *Storage) AddColumn(d ColumnDeclaration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = append(s.columns, d)
}

// AddForeignKey appends a foreign key declaration.
func (s *Storage) AddForeignKey(d ForeignKeyDeclaration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foreignKeys = append(s.foreignKeys, d)
}

// AddEntityListener appends a listener declaration.
func (s *Storage) AddEntityListener(d ListenerDeclaration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, d)
}

// Tables returns the table declarations made on t itself.
func (s *Storage) Tables(t reflect.Type) []TableDeclaration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []TableDeclaration
	for _, d := range s.tables {
		if d.Target == t {
			out = append(out, d)
		}
	}
	return out
}

// Columns returns the column declarations of t and its ancestors,
// ancestors first.
func (s *Storage) Columns(t reflect.Type) []ColumnDeclaration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.columns, t, func(d ColumnDeclaration) reflect.Type { return d.Target })
}

// ForeignKeys returns the foreign key declarations of t and its ancestors.
func (s *Storage) ForeignKeys(t reflect.Type) []ForeignKeyDeclaration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.foreignKeys, t, func(d ForeignKeyDeclaration) reflect.Type { return d.Target })
}

// EntityListeners returns the listener declarations of t and its ancestors.
func (s *Storage) EntityListeners(t reflect.Type) []ListenerDeclaration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.listeners, t, func(d ListenerDeclaration) reflect.Type { return d.Target })
}

// Targets returns every type with a table declaration, in declaration order.
func (s *Storage) Targets() []reflect.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[reflect.Type]bool)
	var out []reflect.Type
	for _, d := range s.tables {
		if !seen[d.Target] {
			seen[d.Target] = true
			out = append(out, d.Target)
		}
	}
	return out
}

// Declared reports whether any column or listener is declared on t itself.
func (s *Storage) Declared(t reflect.Type) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.columns {
		if d.Target == t {
			return true
		}
	}
	for _, d := range s.listeners {
		if d.Target == t {
			return true
		}
	}
	return false
}

// Reset drops every declaration.
func (s *Storage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = nil
	s.columns = nil
	s.foreignKeys = nil
	s.listeners = nil
}

func collect[D any](all []D, t reflect.Type, target func(D) reflect.Type) []D {
	var out []D
	for _, typ := range Lineage(t) {
		for _, d := range all {
			if target(d) == typ {
				out = append(out, d)
			}
		}
	}
	return out
}

// Lineage returns t's ancestors followed by t. Ancestors are struct types
// embedded by value, walked depth-first in field order.
func Lineage(t reflect.Type) []reflect.Type {
	var out []reflect.Type
	seen := make(map[reflect.Type]bool)
	var walk func(reflect.Type)
	walk = func(t reflect.Type) {
		if seen[t] {
			return
		}
		seen[t] = true
		if t.Kind() == reflect.Struct {
			for i := range t.NumField() {
				f := t.Field(i)
				if f.Anonymous && f.Type.Kind() == reflect.Struct {
					walk(f.Type)
				}
			}
		}
		out = append(out, t)
	}
	if t != nil {
		walk(t)
	}
	return out
}
