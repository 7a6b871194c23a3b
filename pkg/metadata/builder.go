package metadata

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"go.uber.org/zap"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Builder turns storage declarations into validated entity metadata.
type Builder struct {
	storage *Storage
	mapper  *schema.TypeMapper
	naming  schema.NamingStrategy
	logger  *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithTypeMapper sets the mapper used for columns without an explicit type.
func WithTypeMapper(m *schema.TypeMapper) Option {
	return func(b *Builder) { b.mapper = m }
}

// WithNamingStrategy sets the strategy for derived table and column names.
func WithNamingStrategy(n schema.NamingStrategy) Option {
	return func(b *Builder) { b.naming = n }
}

// WithLogger sets the builder's logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a Builder reading from s.
func NewBuilder(s *Storage, opts ...Option) *Builder {
	b := &Builder{
		storage: s,
		mapper:  schema.DefaultTypeMapper,
		naming:  schema.DefaultNamingStrategy,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildAll builds every entity with a table declaration.
func (b *Builder) BuildAll() ([]*schema.EntityMetadata, error) {
	targets := b.storage.Targets()
	args := make([]any, len(targets))
	for i, t := range targets {
		args[i] = t
	}
	return b.Build(args...)
}

// Build builds metadata for targets, each a reflect.Type, a struct value or a
// pointer to one. Results follow the order of targets. The first declaration
// error aborts the whole batch.
func (b *Builder) Build(targets ...any) ([]*schema.EntityMetadata, error) {
	types := make([]reflect.Type, 0, len(targets))
	seen := make(map[reflect.Type]bool)
	for _, target := range targets {
		t := TypeOf(target)
		if t == nil || t.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: entity must be a struct, got %v", schema.ErrDeclaration, t)
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}

	metas := make([]*schema.EntityMetadata, 0, len(types))
	byTable := make(map[string]*schema.EntityMetadata)
	for _, t := range types {
		meta, err := b.buildEntity(t)
		if err != nil {
			return nil, err
		}
		if other, ok := byTable[meta.TableName]; ok {
			return nil, &schema.DuplicateTableError{Table: meta.TableName, Targets: []reflect.Type{other.Target, t}}
		}
		byTable[meta.TableName] = meta
		metas = append(metas, meta)
	}

	byTarget := make(map[reflect.Type]*schema.EntityMetadata, len(metas))
	for _, m := range metas {
		byTarget[m.Target] = m
	}
	for _, m := range metas {
		if err := b.resolveForeignKeys(m, byTarget, byTable); err != nil {
			return nil, err
		}
		b.logger.Debug("entity metadata built",
			zap.String("entity", m.Name),
			zap.String("table", m.TableName),
			zap.Int("columns", len(m.Columns)),
			zap.Int("foreign_keys", len(m.ForeignKeys)),
			zap.Int("listeners", len(m.Listeners)),
		)
	}
	return metas, nil
}

func (b *Builder) buildEntity(t reflect.Type) (*schema.EntityMetadata, error) {
	tableName, err := b.tableName(t)
	if err != nil {
		return nil, err
	}
	meta := &schema.EntityMetadata{
		Target:    t,
		Name:      t.Name(),
		TableName: tableName,
	}

	properties := make(map[string]bool)
	names := make(map[string]bool)
	for _, decl := range b.storage.Columns(t) {
		col, err := b.buildColumn(t, decl)
		if err != nil {
			return nil, err
		}
		if properties[col.Property] {
			return nil, &schema.DuplicateColumnError{Target: t, Property: col.Property}
		}
		if names[col.Name] {
			return nil, &schema.DuplicateColumnError{Target: t, Property: col.Property, Column: col.Name}
		}
		properties[col.Property] = true
		names[col.Name] = true

		meta.Columns = append(meta.Columns, col)
		if col.Primary {
			meta.PrimaryColumns = append(meta.PrimaryColumns, col)
		}
	}
	if len(meta.PrimaryColumns) == 0 {
		return nil, &schema.MissingPrimaryColumnError{Target: t}
	}

	for _, decl := range b.storage.EntityListeners(t) {
		l, err := resolveListener(t, decl)
		if err != nil {
			return nil, err
		}
		meta.Listeners = append(meta.Listeners, l)
	}
	return meta, nil
}

func (b *Builder) tableName(t reflect.Type) (string, error) {
	var names []string
	for _, d := range b.storage.Tables(t) {
		if d.Name != "" && !slices.Contains(names, d.Name) {
			names = append(names, d.Name)
		}
	}
	switch len(names) {
	case 0:
		return b.naming.TableName(t.Name()), nil
	case 1:
		return names[0], nil
	default:
		return "", &schema.ConflictingTableNameError{Target: t, Names: names}
	}
}

func (b *Builder) buildColumn(t reflect.Type, decl ColumnDeclaration) (*schema.ColumnMetadata, error) {
	field, ok := t.FieldByName(decl.Property)
	if !ok || !field.IsExported() {
		return nil, &schema.PropertyNotFoundError{Target: t, Property: decl.Property}
	}
	if embeddedPointer(t, field.Index) {
		return nil, &schema.PropertyNotFoundError{Target: t, Property: decl.Property, Reason: "promoted through an embedded pointer"}
	}
	opts := decl.Options
	if decl.Primary && opts.Nullable {
		return nil, &schema.PrimaryColumnCannotBeNullableError{Target: t, Property: decl.Property}
	}

	colType := opts.Type
	if colType == schema.Undefined {
		colType, _ = b.mapper.Resolve(field.Type)
	}
	if !colType.IsValid() {
		return nil, &schema.ColumnTypeUndefinedError{Target: t, Property: decl.Property, GoType: field.Type}
	}
	if opts.AutoIncrement && !colType.IsInteger() {
		return nil, &schema.InvalidAutoIncrementError{Target: t, Property: decl.Property, Type: colType}
	}
	if opts.Default != nil {
		if err := schema.ValidateDefaultFor(colType, *opts.Default); err != nil {
			return nil, &schema.InvalidDefaultError{Target: t, Property: decl.Property, Err: err}
		}
	}

	name := opts.Name
	if name == "" {
		name = b.naming.ColumnName(decl.Property)
	}
	length := opts.Length
	if colType == schema.String && length == 0 {
		length = schema.DefaultStringLength
	}

	col := &schema.ColumnMetadata{
		Target:        t,
		Property:      decl.Property,
		Name:          name,
		GoType:        field.Type,
		FieldIndex:    append([]int(nil), field.Index...),
		Type:          colType,
		Length:        length,
		Precision:     opts.Precision,
		Scale:         opts.Scale,
		Unique:        opts.Unique,
		Primary:       decl.Primary,
		Nullable:      opts.Nullable,
		AutoIncrement: opts.AutoIncrement,
		Mode:          decl.Mode,
	}
	if opts.Default != nil {
		col.Default = schema.Default(*opts.Default)
	}
	return col, nil
}

// embeddedPointer reports whether the field at index is promoted through an
// embedded pointer, which is nil on a zero entity.
func embeddedPointer(t reflect.Type, index []int) bool {
	for _, i := range index[:len(index)-1] {
		t = t.Field(i).Type
		if t.Kind() == reflect.Pointer {
			return true
		}
	}
	return false
}

func (b *Builder) resolveForeignKeys(
	m *schema.EntityMetadata,
	byTarget map[reflect.Type]*schema.EntityMetadata,
	byTable map[string]*schema.EntityMetadata,
) error {
	for _, decl := range b.storage.ForeignKeys(m.Target) {
		col := m.ColumnByProperty(decl.Property)
		if col == nil {
			if _, ok := m.Target.FieldByName(decl.Property); !ok {
				return &schema.PropertyNotFoundError{Target: m.Target, Property: decl.Property}
			}
			return &schema.ForeignKeyTargetError{
				Target: m.Target, Property: decl.Property, Reference: reference(decl),
				Reason: "property is not a declared column",
			}
		}

		var refMeta *schema.EntityMetadata
		var refCol *schema.ColumnMetadata
		if decl.ReferencedTarget != nil {
			refMeta = byTarget[decl.ReferencedTarget]
			if refMeta != nil {
				refCol = refMeta.ColumnByProperty(decl.ReferencedProperty)
			}
		} else {
			refMeta = byTable[decl.ReferencedTable]
			if refMeta != nil {
				refCol = refMeta.ColumnByName(decl.ReferencedColumn)
			}
		}
		if refMeta == nil {
			return &schema.ForeignKeyTargetError{
				Target: m.Target, Property: decl.Property, Reference: reference(decl),
				Reason: "referenced entity is not part of the build",
			}
		}
		if refCol == nil {
			return &schema.ForeignKeyTargetError{
				Target: m.Target, Property: decl.Property, Reference: reference(decl),
				Reason: "referenced column does not exist",
			}
		}

		m.ForeignKeys = append(m.ForeignKeys, &schema.ForeignKeyMetadata{
			Name:             fmt.Sprintf("fk_%s_%s_%s", m.TableName, col.Name, refMeta.TableName),
			Property:         col.Property,
			Column:           col.Name,
			ReferencedTarget: refMeta.Target,
			ReferencedTable:  refMeta.TableName,
			ReferencedColumn: refCol.Name,
			OnDelete:         orNoAction(decl.OnDelete),
			OnUpdate:         orNoAction(decl.OnUpdate),
		})
	}
	return nil
}

func reference(decl ForeignKeyDeclaration) string {
	if decl.ReferencedTarget != nil {
		return decl.ReferencedTarget.String() + "." + decl.ReferencedProperty
	}
	return decl.ReferencedTable + "." + decl.ReferencedColumn
}

func orNoAction(a schema.ReferenceAction) schema.ReferenceAction {
	if a == "" {
		return schema.NoAction
	}
	return a
}

func resolveListener(t reflect.Type, decl ListenerDeclaration) (*schema.EntityListenerMetadata, error) {
	l := &schema.EntityListenerMetadata{Target: t, Event: decl.Event, Method: decl.Method, Handler: decl.Handler}
	if l.Handler != nil {
		return l, nil
	}
	if decl.Method == "" {
		return nil, &schema.InvalidListenerError{Target: t, Method: decl.Event.String(), Reason: "no handler or method given"}
	}

	ptr := reflect.PointerTo(t)
	m, ok := ptr.MethodByName(decl.Method)
	if !ok {
		return nil, &schema.InvalidListenerError{Target: t, Method: decl.Method, Reason: "method not found on " + ptr.String()}
	}
	if !isHookSignature(m.Type) {
		return nil, &schema.InvalidListenerError{Target: t, Method: decl.Method, Reason: "method must have signature func(context.Context) error"}
	}

	fn := m.Func
	l.Handler = func(ctx context.Context, entity any) error {
		v := reflect.ValueOf(entity)
		if !v.IsValid() || v.Type() != ptr {
			return fmt.Errorf("listener %s.%s received %T", t.Name(), decl.Method, entity)
		}
		out := fn.Call([]reflect.Value{v, reflect.ValueOf(&ctx).Elem()})
		if err, _ := out[0].Interface().(error); err != nil {
			return err
		}
		return nil
	}
	return l, nil
}
