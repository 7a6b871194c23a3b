package metadata

import (
	"context"
	"fmt"
	"reflect"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// TableNamer lets a tagged struct choose its table name.
type TableNamer interface {
	TableName() string
}

// hookMethods are picked up as listeners when *T defines them with the
// signature func(context.Context) error.
var hookMethods = []schema.EventType{
	schema.BeforeInsert,
	schema.AfterInsert,
	schema.BeforeUpdate,
	schema.AfterUpdate,
	schema.BeforeRemove,
	schema.AfterRemove,
	schema.AfterLoad,
}

// RegisterStruct declares model from its `po` struct tags.
//
//	type Post struct {
//	    ID       int       `po:"id,primaryKey,autoIncrement"`
//	    Title    string    `po:"title,varchar(200)"`
//	    AuthorID int       `po:"author_id,fk:authors.id,onDelete:cascade"`
//	    Created  time.Time `po:"created_at,createdAt"`
//	}
//
// Fields without a tag are ignored. Embedded structs are registered as
// ancestors, so their tagged fields become columns of model.
func RegisterStruct(s *Storage, model any) error {
	t := TypeOf(model)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("model must be a struct, got %v", t)
	}
	if err := registerFields(s, t); err != nil {
		return err
	}

	var name string
	if namer, ok := reflect.New(t).Interface().(TableNamer); ok {
		name = namer.TableName()
	}
	s.AddTable(TableDeclaration{Target: t, Name: name})
	return nil
}

func registerFields(s *Storage, t reflect.Type) error {
	// An ancestor shared by several entities is registered once.
	if s.Declared(t) {
		return nil
	}

	for i := range t.NumField() {
		field := t.Field(i)
		tag, hasTag := field.Tag.Lookup(schema.StructTagKey)
		if tag == "-" {
			continue
		}
		if field.Anonymous && field.Type.Kind() == reflect.Struct && !hasTag {
			if err := registerFields(s, field.Type); err != nil {
				return err
			}
			continue
		}
		if !hasTag || !field.IsExported() {
			continue
		}
		if err := registerField(s, t, field, tag); err != nil {
			return fmt.Errorf("failed to parse tag for field %s.%s: %w", t.Name(), field.Name, err)
		}
	}

	ptr := reflect.PointerTo(t)
	for _, event := range hookMethods {
		m, ok := ptr.MethodByName(event.String())
		if !ok || !isHookSignature(m.Type) {
			continue
		}
		// Promoted methods are registered on the ancestor.
		if promoted(t, event.String()) {
			continue
		}
		s.AddEntityListener(ListenerDeclaration{Target: t, Event: event, Method: event.String()})
	}
	return nil
}

func registerField(s *Storage, t reflect.Type, field reflect.StructField, tag string) error {
	opts, err := schema.ParseTag(tag)
	if err != nil {
		return err
	}

	col := ColumnDeclaration{
		Target:   t,
		Property: field.Name,
		Primary:  opts.Has("primaryKey"),
		Options: schema.ColumnOptions{
			Name:          opts.Name,
			Nullable:      opts.Has("nullable"),
			Unique:        opts.Has("unique"),
			AutoIncrement: opts.Has("autoIncrement") || opts.Has("serial"),
		},
	}
	spec, found, err := opts.ColumnSpec()
	if err != nil {
		return err
	}
	if found {
		col.Options.Type = spec.Type
		col.Options.Length = spec.Length
		col.Options.Precision = spec.Precision
		col.Options.Scale = spec.Scale
	}
	if opts.Has("default") {
		col.Options.Default = schema.Default(opts.Get("default"))
	}
	switch {
	case opts.Has("createdAt"):
		col.Mode = schema.ModeCreateDate
	case opts.Has("updatedAt"):
		col.Mode = schema.ModeUpdateDate
	}
	s.AddColumn(col)

	table, column, ok, err := opts.Reference()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	onDelete, err := schema.ParseReferenceAction(opts.Get("onDelete"))
	if err != nil {
		return err
	}
	onUpdate, err := schema.ParseReferenceAction(opts.Get("onUpdate"))
	if err != nil {
		return err
	}
	s.AddForeignKey(ForeignKeyDeclaration{
		Target:           t,
		Property:         field.Name,
		ReferencedTable:  table,
		ReferencedColumn: column,
		OnDelete:         onDelete,
		OnUpdate:         onUpdate,
	})
	return nil
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// isHookSignature checks a method type obtained from a reflect.Type, whose
// first input is the receiver.
func isHookSignature(m reflect.Type) bool {
	return m.NumIn() == 2 && m.In(1) == contextType &&
		m.NumOut() == 1 && m.Out(0) == errorType
}

// promoted reports whether an ancestor of t already provides method.
func promoted(t reflect.Type, method string) bool {
	for i := range t.NumField() {
		f := t.Field(i)
		if _, tagged := f.Tag.Lookup(schema.StructTagKey); !f.Anonymous || tagged || f.Type.Kind() != reflect.Struct {
			continue
		}
		if _, ok := reflect.PointerTo(f.Type).MethodByName(method); ok {
			return true
		}
	}
	return false
}
