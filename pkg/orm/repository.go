package orm

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/marshallshelly/pebble-entities/pkg/driver"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Where matches rows by equality. Keys are property or column names; a nil
// value matches NULL.
type Where map[string]any

// Order sorts results by a property or column.
type Order struct {
	Field string
	Desc  bool
}

// FindOptions narrows a Find.
type FindOptions struct {
	Where  Where
	Order  []Order
	Limit  int
	Offset int
}

// Repository persists and loads one entity type. Entities are passed as
// pointers to the registered struct type.
type Repository struct {
	conn *Connection
	meta *schema.EntityMetadata
}

// Metadata returns the entity metadata.
func (r *Repository) Metadata() *schema.EntityMetadata { return r.meta }

// Target returns the entity type.
func (r *Repository) Target() reflect.Type { return r.meta.Target }

// Create returns a pointer to a new zero entity.
func (r *Repository) Create() any {
	return reflect.New(r.meta.Target).Interface()
}

// Insert inserts entity. Create and update date columns are stamped and
// generated values are written back.
func (r *Repository) Insert(ctx context.Context, entity any) error {
	v, err := r.value(entity)
	if err != nil {
		return err
	}
	if err := r.conn.ready(); err != nil {
		return err
	}
	if err := r.conn.broadcast(ctx, schema.BeforeInsert, r.meta, entity); err != nil {
		return err
	}

	now := r.conn.now()
	for _, col := range r.meta.Columns {
		field := v.FieldByIndex(col.FieldIndex)
		switch col.Mode {
		case schema.ModeCreateDate:
			if field.IsZero() {
				setTime(field, now)
			}
		case schema.ModeUpdateDate:
			setTime(field, now)
		}
	}

	var values []driver.Value
	var returning []string
	supportsReturning := r.conn.driver.Dialect().SupportsReturning()
	if gen := r.meta.GeneratedColumn(); gen != nil && v.FieldByIndex(gen.FieldIndex).IsZero() {
		returning = append(returning, gen.Name)
	}
	for _, col := range r.meta.Columns {
		field := v.FieldByIndex(col.FieldIndex)
		if col.AutoIncrement && field.IsZero() {
			continue
		}
		// zero values of columns with a database default are left to the database
		if col.Default != nil && field.IsZero() {
			if supportsReturning {
				returning = append(returning, col.Name)
			}
			continue
		}
		values = append(values, driver.Value{Column: col.Name, Value: fieldValue(field)})
	}

	row, err := r.conn.driver.Insert(ctx, r.meta.TableName, values, returning)
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.meta.Name, err)
	}
	if err := r.load(v, row); err != nil {
		return err
	}

	r.conn.logger.Debug("entity inserted", zap.String("entity", r.meta.Name))
	return r.conn.broadcast(ctx, schema.AfterInsert, r.meta, entity)
}

// Update writes every non-primary column of entity, matched by primary key.
func (r *Repository) Update(ctx context.Context, entity any) error {
	n, err := r.update(ctx, entity)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", r.meta.Name, ErrEntityNotFound)
	}
	return r.conn.broadcast(ctx, schema.AfterUpdate, r.meta, entity)
}

func (r *Repository) update(ctx context.Context, entity any) (int64, error) {
	v, err := r.value(entity)
	if err != nil {
		return 0, err
	}
	if err := r.conn.ready(); err != nil {
		return 0, err
	}
	where, err := r.primaryValues(v)
	if err != nil {
		return 0, err
	}
	if err := r.conn.broadcast(ctx, schema.BeforeUpdate, r.meta, entity); err != nil {
		return 0, err
	}

	now := r.conn.now()
	var set []driver.Value
	for _, col := range r.meta.Columns {
		if col.Primary {
			continue
		}
		field := v.FieldByIndex(col.FieldIndex)
		switch col.Mode {
		case schema.ModeCreateDate:
			continue
		case schema.ModeUpdateDate:
			setTime(field, now)
		}
		set = append(set, driver.Value{Column: col.Name, Value: fieldValue(field)})
	}

	n, err := r.conn.driver.Update(ctx, r.meta.TableName, set, where)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", r.meta.Name, err)
	}
	return n, nil
}

// Save updates entity when it has a primary key that matches a row and
// inserts it otherwise. The row is looked up before any event fires, so
// listeners see either the insert or the update events, never both.
func (r *Repository) Save(ctx context.Context, entity any) error {
	v, err := r.value(entity)
	if err != nil {
		return err
	}
	if err := r.conn.ready(); err != nil {
		return err
	}
	where, err := r.primaryValues(v)
	if err != nil {
		return r.Insert(ctx, entity)
	}

	n, err := r.conn.driver.Count(ctx, r.meta.TableName, where)
	if err != nil {
		return fmt.Errorf("save %s: %w", r.meta.Name, err)
	}
	if n == 0 {
		return r.Insert(ctx, entity)
	}
	return r.Update(ctx, entity)
}

// Remove deletes the row of entity, matched by primary key.
func (r *Repository) Remove(ctx context.Context, entity any) error {
	v, err := r.value(entity)
	if err != nil {
		return err
	}
	if err := r.conn.ready(); err != nil {
		return err
	}
	where, err := r.primaryValues(v)
	if err != nil {
		return err
	}
	if err := r.conn.broadcast(ctx, schema.BeforeRemove, r.meta, entity); err != nil {
		return err
	}

	n, err := r.conn.driver.Delete(ctx, r.meta.TableName, where)
	if err != nil {
		return fmt.Errorf("remove %s: %w", r.meta.Name, err)
	}
	if n == 0 {
		return fmt.Errorf("remove %s: %w", r.meta.Name, ErrEntityNotFound)
	}
	return r.conn.broadcast(ctx, schema.AfterRemove, r.meta, entity)
}

// FindByID loads the entity with the given primary key values, in primary
// column order.
func (r *Repository) FindByID(ctx context.Context, ids ...any) (any, error) {
	if len(ids) != len(r.meta.PrimaryColumns) {
		return nil, fmt.Errorf("%s has %d primary columns, got %d values", r.meta.Name, len(r.meta.PrimaryColumns), len(ids))
	}
	where := make(Where, len(ids))
	for i, col := range r.meta.PrimaryColumns {
		where[col.Name] = ids[i]
	}
	return r.FindOne(ctx, FindOptions{Where: where})
}

// FindOne loads the first matching entity.
func (r *Repository) FindOne(ctx context.Context, opts FindOptions) (any, error) {
	opts.Limit = 1
	found, err := r.Find(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("find %s: %w", r.meta.Name, ErrEntityNotFound)
	}
	return found[0], nil
}

// Find loads every matching entity as pointers.
func (r *Repository) Find(ctx context.Context, opts FindOptions) ([]any, error) {
	if err := r.conn.ready(); err != nil {
		return nil, err
	}
	where, err := r.where(opts.Where)
	if err != nil {
		return nil, err
	}

	q := driver.SelectQuery{
		Table:   r.meta.TableName,
		Columns: make([]string, len(r.meta.Columns)),
		Where:   where,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	}
	for i, col := range r.meta.Columns {
		q.Columns[i] = col.Name
	}
	for _, o := range opts.Order {
		col, err := r.column(o.Field)
		if err != nil {
			return nil, err
		}
		q.OrderBy = append(q.OrderBy, driver.Order{Column: col.Name, Desc: o.Desc})
	}

	rows, err := r.conn.driver.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", r.meta.Name, err)
	}

	out := make([]any, 0, len(rows))
	for _, row := range rows {
		ptr := reflect.New(r.meta.Target)
		if err := r.load(ptr.Elem(), row); err != nil {
			return nil, err
		}
		entity := ptr.Interface()
		if err := r.conn.broadcast(ctx, schema.AfterLoad, r.meta, entity); err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

// Count counts matching rows.
func (r *Repository) Count(ctx context.Context, where Where) (int64, error) {
	if err := r.conn.ready(); err != nil {
		return 0, err
	}
	values, err := r.where(where)
	if err != nil {
		return 0, err
	}
	n, err := r.conn.driver.Count(ctx, r.meta.TableName, values)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.meta.Name, err)
	}
	return n, nil
}

// value returns the struct behind entity, which must be a non-nil pointer
// to the repository's type.
func (r *Repository) value(entity any) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Type() != r.meta.Target {
		return reflect.Value{}, &InvalidEntityError{Expected: r.meta.Target, Got: reflect.TypeOf(entity)}
	}
	return v.Elem(), nil
}

func (r *Repository) primaryValues(v reflect.Value) ([]driver.Value, error) {
	where := make([]driver.Value, 0, len(r.meta.PrimaryColumns))
	for _, col := range r.meta.PrimaryColumns {
		field := v.FieldByIndex(col.FieldIndex)
		if col.AutoIncrement && field.IsZero() {
			return nil, fmt.Errorf("%s: %w", r.meta.Name, ErrMissingPrimaryKey)
		}
		value := fieldValue(field)
		if value == nil {
			return nil, fmt.Errorf("%s: %w", r.meta.Name, ErrMissingPrimaryKey)
		}
		where = append(where, driver.Value{Column: col.Name, Value: value})
	}
	return where, nil
}

// where resolves names to columns in declaration order.
func (r *Repository) where(w Where) ([]driver.Value, error) {
	if len(w) == 0 {
		return nil, nil
	}
	values := make([]driver.Value, 0, len(w))
	for field, value := range w {
		col, err := r.column(field)
		if err != nil {
			return nil, err
		}
		if rv := reflect.ValueOf(value); rv.Kind() == reflect.Pointer {
			value = fieldValue(rv)
		}
		values = append(values, driver.Value{Column: col.Name, Value: value})
	}
	slices.SortFunc(values, func(a, b driver.Value) int {
		return r.columnIndex(a.Column) - r.columnIndex(b.Column)
	})
	return values, nil
}

func (r *Repository) column(field string) (*schema.ColumnMetadata, error) {
	if col := r.meta.ColumnByProperty(field); col != nil {
		return col, nil
	}
	if col := r.meta.ColumnByName(field); col != nil {
		return col, nil
	}
	return nil, &UnknownFieldError{Entity: r.meta.Name, Field: field}
}

func (r *Repository) columnIndex(name string) int {
	return slices.IndexFunc(r.meta.Columns, func(c *schema.ColumnMetadata) bool { return c.Name == name })
}

// load copies row values into the matching fields of v.
func (r *Repository) load(v reflect.Value, row driver.Row) error {
	for name, value := range row {
		col := r.meta.ColumnByName(name)
		if col == nil {
			continue
		}
		if err := assign(v.FieldByIndex(col.FieldIndex), value); err != nil {
			return fmt.Errorf("load %s.%s: %w", r.meta.Name, col.Property, err)
		}
	}
	return nil
}

func setTime(field reflect.Value, now time.Time) {
	switch {
	case field.Type() == timeType:
		field.Set(reflect.ValueOf(now))
	case field.Kind() == reflect.Pointer && field.Type().Elem() == timeType:
		field.Set(reflect.ValueOf(&now))
	}
}
