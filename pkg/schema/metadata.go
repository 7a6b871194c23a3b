package schema

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// ColumnOptions are the per-column options a caller may declare.
type ColumnOptions struct {
	Type          ColumnType
	Name          string // overrides the naming strategy
	Length        int
	Precision     int
	Scale         int
	Nullable      bool
	AutoIncrement bool
	Unique        bool
	Default       *string
}

// Default returns a pointer to expr for use in ColumnOptions.Default.
func Default(expr string) *string {
	return &expr
}

// ColumnMode marks columns whose values are managed by the repository.
type ColumnMode int

const (
	ModeRegular ColumnMode = iota
	ModeCreateDate
	ModeUpdateDate
)

func (m ColumnMode) String() string {
	switch m {
	case ModeCreateDate:
		return "createDate"
	case ModeUpdateDate:
		return "updateDate"
	default:
		return "regular"
	}
}

// ColumnMetadata is a fully resolved column of an entity.
// It is built once by the metadata builder and read-only afterwards.
type ColumnMetadata struct {
	Target        reflect.Type // owning entity type
	Property      string       // Go field name
	Name          string       // column name
	GoType        reflect.Type
	FieldIndex    []int
	Type          ColumnType
	Length        int
	Precision     int
	Scale         int
	Default       *string
	Unique        bool
	Primary       bool
	Nullable      bool
	AutoIncrement bool
	Mode          ColumnMode
}

// Definition returns the driver-facing description of the column.
func (c *ColumnMetadata) Definition() ColumnDefinition {
	def := ColumnDefinition{
		Name:          c.Name,
		Type:          c.Type,
		Length:        c.Length,
		Precision:     c.Precision,
		Scale:         c.Scale,
		Nullable:      c.Nullable,
		Primary:       c.Primary,
		AutoIncrement: c.AutoIncrement,
		Unique:        c.Unique,
	}
	if c.Default != nil {
		d := *c.Default
		def.Default = &d
	}
	return def
}

// ReferenceAction is the ON DELETE / ON UPDATE behaviour of a foreign key.
type ReferenceAction string

const (
	NoAction   ReferenceAction = "NO ACTION"
	Restrict   ReferenceAction = "RESTRICT"
	Cascade    ReferenceAction = "CASCADE"
	SetNull    ReferenceAction = "SET NULL"
	SetDefault ReferenceAction = "SET DEFAULT"
)

// ParseReferenceAction accepts "cascade", "setNull", "SET NULL" and friends.
// An empty string means NoAction.
func ParseReferenceAction(s string) (ReferenceAction, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", " "))
	switch strings.ReplaceAll(normalized, " ", "") {
	case "", "NOACTION":
		return NoAction, nil
	case "RESTRICT":
		return Restrict, nil
	case "CASCADE":
		return Cascade, nil
	case "SETNULL":
		return SetNull, nil
	case "SETDEFAULT":
		return SetDefault, nil
	}
	return "", fmt.Errorf("unknown reference action %q", s)
}

// ForeignKeyMetadata links a column to a column of another table.
type ForeignKeyMetadata struct {
	Name             string
	Property         string
	Column           string
	ReferencedTarget reflect.Type // nil when declared by table name
	ReferencedTable  string
	ReferencedColumn string
	OnDelete         ReferenceAction
	OnUpdate         ReferenceAction
}

// EventType identifies an entity lifecycle event.
type EventType int

const (
	BeforeInsert EventType = iota
	AfterInsert
	BeforeUpdate
	AfterUpdate
	BeforeRemove
	AfterRemove
	AfterLoad
)

var eventNames = [...]string{
	BeforeInsert: "BeforeInsert",
	AfterInsert:  "AfterInsert",
	BeforeUpdate: "BeforeUpdate",
	AfterUpdate:  "AfterUpdate",
	BeforeRemove: "BeforeRemove",
	AfterRemove:  "AfterRemove",
	AfterLoad:    "AfterLoad",
}

func (e EventType) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("EventType(%d)", int(e))
	}
	return eventNames[e]
}

// ParseEventType returns the event whose name is name, such as "BeforeInsert".
func ParseEventType(name string) (EventType, bool) {
	for i, n := range eventNames {
		if n == name {
			return EventType(i), true
		}
	}
	return 0, false
}

// ListenerFunc handles an entity event. entity is a pointer to the entity.
type ListenerFunc func(ctx context.Context, entity any) error

// EntityListenerMetadata binds a handler to an entity event.
// Method is set when the handler was declared by method name; the builder
// resolves it into Handler.
type EntityListenerMetadata struct {
	Target  reflect.Type
	Event   EventType
	Method  string
	Handler ListenerFunc
}

// EntityMetadata is the validated description of one entity and its table.
type EntityMetadata struct {
	Target         reflect.Type
	Name           string
	TableName      string
	Columns        []*ColumnMetadata
	PrimaryColumns []*ColumnMetadata
	ForeignKeys    []*ForeignKeyMetadata
	Listeners      []*EntityListenerMetadata
}

// ColumnByProperty finds a column by Go field name.
func (m *EntityMetadata) ColumnByProperty(property string) *ColumnMetadata {
	for _, c := range m.Columns {
		if c.Property == property {
			return c
		}
	}
	return nil
}

// ColumnByName finds a column by column name.
func (m *EntityMetadata) ColumnByName(name string) *ColumnMetadata {
	for _, c := range m.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// GeneratedColumn returns the auto-increment primary column, if any.
func (m *EntityMetadata) GeneratedColumn() *ColumnMetadata {
	for _, c := range m.PrimaryColumns {
		if c.AutoIncrement {
			return c
		}
	}
	return nil
}

// ColumnsByMode returns the columns with the given mode.
func (m *EntityMetadata) ColumnsByMode(mode ColumnMode) []*ColumnMetadata {
	var cols []*ColumnMetadata
	for _, c := range m.Columns {
		if c.Mode == mode {
			cols = append(cols, c)
		}
	}
	return cols
}

// ListenersFor returns the listeners registered for event, in declaration order.
func (m *EntityMetadata) ListenersFor(event EventType) []*EntityListenerMetadata {
	var out []*EntityListenerMetadata
	for _, l := range m.Listeners {
		if l.Event == event {
			out = append(out, l)
		}
	}
	return out
}

// Dependencies returns the tables this entity references, excluding itself.
func (m *EntityMetadata) Dependencies() []string {
	seen := make(map[string]bool)
	var deps []string
	for _, fk := range m.ForeignKeys {
		if fk.ReferencedTable == m.TableName || seen[fk.ReferencedTable] {
			continue
		}
		seen[fk.ReferencedTable] = true
		deps = append(deps, fk.ReferencedTable)
	}
	return deps
}

// TableDefinition returns the DDL description of the entity's table.
func (m *EntityMetadata) TableDefinition() TableDefinition {
	def := TableDefinition{
		Name:    m.TableName,
		Columns: make([]ColumnDefinition, 0, len(m.Columns)),
	}
	for _, c := range m.Columns {
		def.Columns = append(def.Columns, c.Definition())
	}
	for _, c := range m.PrimaryColumns {
		def.PrimaryKey = append(def.PrimaryKey, c.Name)
	}
	for _, fk := range m.ForeignKeys {
		def.ForeignKeys = append(def.ForeignKeys, ForeignKeyDefinition{
			Name:             fk.Name,
			Column:           fk.Column,
			ReferencedTable:  fk.ReferencedTable,
			ReferencedColumn: fk.ReferencedColumn,
			OnDelete:         fk.OnDelete,
			OnUpdate:         fk.OnUpdate,
		})
	}
	return def
}

// TableDefinition describes a table to create.
type TableDefinition struct {
	Name        string
	Columns     []ColumnDefinition
	PrimaryKey  []string
	ForeignKeys []ForeignKeyDefinition
}

// ColumnDefinition describes a column to create or alter.
type ColumnDefinition struct {
	Name          string
	Type          ColumnType
	Length        int
	Precision     int
	Scale         int
	Nullable      bool
	Primary       bool
	AutoIncrement bool
	Unique        bool
	Default       *string
}

// ForeignKeyDefinition describes a foreign key constraint to create.
type ForeignKeyDefinition struct {
	Name             string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	OnDelete         ReferenceAction
	OnUpdate         ReferenceAction
}
