package metadata

import (
	"context"
	"fmt"
	"reflect"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Declarer records declarations for the entity type T.
//
//	err := metadata.Declare[PostCategory](s).
//	    Table("sample4_post_category").
//	    PrimaryGeneratedColumn("ID").
//	    Column("Name", schema.ColumnOptions{}).
//	    Err()
//
// The first failing call is kept and every later call is ignored.
type Declarer[T any] struct {
	storage *Storage
	target  reflect.Type
	err     error
}

// Declare starts declarations for T on s.
func Declare[T any](s *Storage) *Declarer[T] {
	d := &Declarer[T]{storage: s, target: reflect.TypeFor[T]()}
	if d.target.Kind() != reflect.Struct {
		d.err = fmt.Errorf("entity must be a struct, got %s", d.target)
	}
	return d
}

// Err returns the first error hit by the declarer.
func (d *Declarer[T]) Err() error {
	return d.err
}

// Table declares T as an entity stored in table name. An empty name lets the
// naming strategy derive it.
func (d *Declarer[T]) Table(name string) *Declarer[T] {
	if d.err != nil {
		return d
	}
	d.storage.AddTable(TableDeclaration{Target: d.target, Name: name})
	return d
}

// Column declares a regular column.
func (d *Declarer[T]) Column(property string, opts schema.ColumnOptions) *Declarer[T] {
	return d.column(property, opts, false, schema.ModeRegular)
}

// PrimaryColumn declares a primary column. Primary columns cannot be nullable.
func (d *Declarer[T]) PrimaryColumn(property string, opts schema.ColumnOptions) *Declarer[T] {
	return d.column(property, opts, true, schema.ModeRegular)
}

// PrimaryGeneratedColumn declares an auto-incrementing integer primary column.
func (d *Declarer[T]) PrimaryGeneratedColumn(property string) *Declarer[T] {
	return d.column(property, schema.ColumnOptions{AutoIncrement: true}, true, schema.ModeRegular)
}

// CreateDateColumn declares a column set to the current time on insert.
func (d *Declarer[T]) CreateDateColumn(property string, opts schema.ColumnOptions) *Declarer[T] {
	return d.column(property, opts, false, schema.ModeCreateDate)
}

// UpdateDateColumn declares a column set to the current time on insert and update.
func (d *Declarer[T]) UpdateDateColumn(property string, opts schema.ColumnOptions) *Declarer[T] {
	return d.column(property, opts, false, schema.ModeUpdateDate)
}

func (d *Declarer[T]) column(property string, opts schema.ColumnOptions, primary bool, mode schema.ColumnMode) *Declarer[T] {
	if d.err != nil {
		return d
	}
	if !d.hasProperty(property) {
		return d
	}
	if primary && opts.Nullable {
		d.err = &schema.PrimaryColumnCannotBeNullableError{Target: d.target, Property: property}
		return d
	}
	d.storage.AddColumn(ColumnDeclaration{
		Target:   d.target,
		Property: property,
		Options:  opts,
		Primary:  primary,
		Mode:     mode,
	})
	return d
}

// ForeignKeyOption configures a foreign key declaration.
type ForeignKeyOption func(*ForeignKeyDeclaration)

// OnDelete sets the ON DELETE action.
func OnDelete(a schema.ReferenceAction) ForeignKeyOption {
	return func(fk *ForeignKeyDeclaration) { fk.OnDelete = a }
}

// OnUpdate sets the ON UPDATE action.
func OnUpdate(a schema.ReferenceAction) ForeignKeyOption {
	return func(fk *ForeignKeyDeclaration) { fk.OnUpdate = a }
}

// References declares that property references refProperty of the entity
// type of ref, which may be a value, a pointer or a reflect.Type.
func (d *Declarer[T]) References(property string, ref any, refProperty string, opts ...ForeignKeyOption) *Declarer[T] {
	if d.err != nil {
		return d
	}
	if !d.hasProperty(property) {
		return d
	}
	refType := TypeOf(ref)
	if refType == nil || refType.Kind() != reflect.Struct {
		d.err = &schema.ForeignKeyTargetError{
			Target:    d.target,
			Property:  property,
			Reference: fmt.Sprintf("%v.%s", refType, refProperty),
			Reason:    "referenced entity must be a struct",
		}
		return d
	}
	fk := ForeignKeyDeclaration{
		Target:             d.target,
		Property:           property,
		ReferencedTarget:   refType,
		ReferencedProperty: refProperty,
		OnDelete:           schema.NoAction,
		OnUpdate:           schema.NoAction,
	}
	for _, opt := range opts {
		opt(&fk)
	}
	d.storage.AddForeignKey(fk)
	return d
}

// ReferencesTable declares that property references column of table, for
// tables whose entity type is not known to the caller.
func (d *Declarer[T]) ReferencesTable(property, table, column string, opts ...ForeignKeyOption) *Declarer[T] {
	if d.err != nil {
		return d
	}
	if !d.hasProperty(property) {
		return d
	}
	fk := ForeignKeyDeclaration{
		Target:           d.target,
		Property:         property,
		ReferencedTable:  table,
		ReferencedColumn: column,
		OnDelete:         schema.NoAction,
		OnUpdate:         schema.NoAction,
	}
	for _, opt := range opts {
		opt(&fk)
	}
	d.storage.AddForeignKey(fk)
	return d
}

// Listen registers fn for event.
func (d *Declarer[T]) Listen(event schema.EventType, fn schema.ListenerFunc) *Declarer[T] {
	if d.err != nil {
		return d
	}
	if fn == nil {
		d.err = &schema.InvalidListenerError{Target: d.target, Method: event.String(), Reason: "nil handler"}
		return d
	}
	d.storage.AddEntityListener(ListenerDeclaration{Target: d.target, Event: event, Handler: fn})
	return d
}

// On registers a typed handler for event.
func (d *Declarer[T]) On(event schema.EventType, fn func(ctx context.Context, entity *T) error) *Declarer[T] {
	if fn == nil {
		return d.Listen(event, nil)
	}
	return d.Listen(event, func(ctx context.Context, entity any) error {
		e, ok := entity.(*T)
		if !ok {
			return fmt.Errorf("listener for %s received %T", d.target, entity)
		}
		return fn(ctx, e)
	})
}

// ListenMethod registers the method of *T named method for event. The method
// must have the signature func(context.Context) error; the builder checks it.
func (d *Declarer[T]) ListenMethod(event schema.EventType, method string) *Declarer[T] {
	if d.err != nil {
		return d
	}
	d.storage.AddEntityListener(ListenerDeclaration{Target: d.target, Event: event, Method: method})
	return d
}

func (d *Declarer[T]) hasProperty(property string) bool {
	if _, ok := d.target.FieldByName(property); !ok {
		d.err = &schema.PropertyNotFoundError{Target: d.target, Property: property}
		return false
	}
	return true
}

// TypeOf returns the struct type behind v, which may be a reflect.Type, a
// value or a pointer to one.
func TypeOf(v any) reflect.Type {
	var t reflect.Type
	switch x := v.(type) {
	case nil:
		return nil
	case reflect.Type:
		t = x
	default:
		t = reflect.TypeOf(v)
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
