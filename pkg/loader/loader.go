// Package loader reads entity definitions from Go source files without
// compiling them. Structs with `po` tags become entities, the same way
// metadata.RegisterStruct reads them at runtime.
package loader

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Package holds the entities found in one Go package.
type Package struct {
	Name     string
	Dir      string
	Entities []*Entity
}

// Entity returns the entity for the struct named name, or nil.
func (p *Package) Entity(name string) *Entity {
	for _, e := range p.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// EntityByTable returns the entity stored in table, or nil. Entities without
// an explicit table name match their snake_case struct name.
func (p *Package) EntityByTable(table string) *Entity {
	for _, e := range p.Entities {
		if e.TableName() == table {
			return e
		}
	}
	return nil
}

// Entity is a tagged struct.
type Entity struct {
	Name string
	File string
	// Table is set from a `// table_name: x` comment or a TableName method
	// returning a literal. Empty lets the naming strategy decide.
	Table     string
	Columns   []*Column
	Listeners []schema.EventType
}

// TableName returns Table or the default snake_case name.
func (e *Entity) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return schema.ToSnakeCase(e.Name)
}

// Column returns the column declared on property, or nil.
func (e *Entity) Column(property string) *Column {
	for _, c := range e.Columns {
		if c.Property == property {
			return c
		}
	}
	return nil
}

// ColumnByName returns the column whose database name is name, or nil.
func (e *Entity) ColumnByName(name string) *Column {
	for _, c := range e.Columns {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Column is a tagged struct field.
type Column struct {
	Property  string
	Primary   bool
	Mode      schema.ColumnMode
	Options   schema.ColumnOptions
	Reference *Reference
}

// Name returns the explicit column name or the default snake_case one.
func (c *Column) Name() string {
	if c.Options.Name != "" {
		return c.Options.Name
	}
	return schema.ToSnakeCase(c.Property)
}

// Generated reports whether the column is a plain auto-incrementing primary
// key with no other options. A name equal to the default one is allowed.
func (c *Column) Generated() bool {
	opts := c.Options
	if opts.Name == schema.ToSnakeCase(c.Property) {
		opts.Name = ""
	}
	return c.Primary && c.Mode == schema.ModeRegular &&
		opts == (schema.ColumnOptions{AutoIncrement: true})
}

// Reference is a foreign key read from an fk tag option.
type Reference struct {
	Table    string
	Column   string
	OnDelete schema.ReferenceAction
	OnUpdate schema.ReferenceAction
}

// structInfo is a parsed struct before embedded fields are resolved.
type structInfo struct {
	name   string
	file   string
	table  string
	fields []fieldInfo
}

// fieldInfo is either a column or an embedded struct name.
type fieldInfo struct {
	column *Column
	embed  string
}

// Load scans a .go file or a directory (recursively) for tagged structs.
// Test files and generated files are skipped. All files must belong to the
// same package.
func Load(path string) (*Package, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	var files []string
	dir := path
	if info.IsDir() {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".go") && !strings.HasSuffix(d.Name(), "_test.go") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory: %w", err)
		}
	} else {
		if !strings.HasSuffix(path, ".go") {
			return nil, fmt.Errorf("file must have .go extension")
		}
		files = append(files, path)
		dir = filepath.Dir(path)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .go files found in %s", path)
	}

	l := &loader{fset: token.NewFileSet(), structs: make(map[string]*structInfo)}
	pkg := &Package{Dir: dir}
	for _, file := range files {
		name, err := l.parseFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load entities from %s: %w", file, err)
		}
		if name == "" {
			continue
		}
		if pkg.Name != "" && pkg.Name != name {
			return nil, fmt.Errorf("found packages %s and %s in %s", pkg.Name, name, path)
		}
		pkg.Name = name
	}

	entities, err := l.entities()
	if err != nil {
		return nil, err
	}
	pkg.Entities = entities
	return pkg, nil
}

type loader struct {
	fset    *token.FileSet
	order   []string
	structs map[string]*structInfo
	tables  map[string]string
	hooks   map[string][]schema.EventType
}

// parseFile records the structs and methods of filename and returns its
// package name, or "" for generated files.
func (l *loader) parseFile(filename string) (string, error) {
	node, err := parser.ParseFile(l.fset, filename, nil, parser.ParseComments)
	if err != nil {
		return "", fmt.Errorf("failed to parse file: %w", err)
	}
	if ast.IsGenerated(node) {
		return "", nil
	}

	for _, decl := range node.Decls {
		switch decl := decl.(type) {
		case *ast.GenDecl:
			if decl.Tok != token.TYPE {
				continue
			}
			for _, spec := range decl.Specs {
				typeSpec, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				structType, ok := typeSpec.Type.(*ast.StructType)
				if !ok {
					continue
				}
				doc := typeSpec.Doc
				if doc == nil && len(decl.Specs) == 1 {
					doc = decl.Doc
				}
				s, err := l.parseStruct(typeSpec.Name.Name, filename, structType)
				if err != nil {
					return "", err
				}
				s.table = tableNameFromDoc(doc)
				l.order = append(l.order, s.name)
				l.structs[s.name] = s
			}
		case *ast.FuncDecl:
			l.parseMethod(decl)
		}
	}
	return node.Name.Name, nil
}

func (l *loader) parseStruct(name, file string, structType *ast.StructType) (*structInfo, error) {
	s := &structInfo{name: name, file: file}
	if structType.Fields == nil {
		return s, nil
	}

	for _, field := range structType.Fields.List {
		tag, hasTag := fieldTag(field)
		if tag == "-" {
			continue
		}
		if len(field.Names) == 0 {
			if ident, ok := field.Type.(*ast.Ident); ok && !hasTag {
				s.fields = append(s.fields, fieldInfo{embed: ident.Name})
			}
			continue
		}
		if !hasTag {
			continue
		}

		for _, fieldName := range field.Names {
			if !fieldName.IsExported() {
				continue
			}
			col, err := parseColumn(fieldName.Name, tag)
			if err != nil {
				return nil, fmt.Errorf("%s: field %s.%s: %w", l.fset.Position(field.Pos()), name, fieldName.Name, err)
			}
			s.fields = append(s.fields, fieldInfo{column: col})
		}
	}
	return s, nil
}

// parseColumn reads a `po` tag the way metadata.RegisterStruct does.
func parseColumn(property, tag string) (*Column, error) {
	opts, err := schema.ParseTag(tag)
	if err != nil {
		return nil, err
	}

	col := &Column{
		Property: property,
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
		return nil, err
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

	table, column, ok, err := opts.Reference()
	if err != nil || !ok {
		return col, err
	}
	ref := &Reference{Table: table, Column: column}
	if ref.OnDelete, err = schema.ParseReferenceAction(opts.Get("onDelete")); err != nil {
		return nil, err
	}
	if ref.OnUpdate, err = schema.ParseReferenceAction(opts.Get("onUpdate")); err != nil {
		return nil, err
	}
	col.Reference = ref
	return col, nil
}

// parseMethod records TableName methods returning a literal and lifecycle
// hooks with the signature func(context.Context) error.
func (l *loader) parseMethod(fn *ast.FuncDecl) {
	receiver := receiverName(fn)
	if receiver == "" {
		return
	}

	if fn.Name.Name == "TableName" {
		if name := literalReturn(fn); name != "" {
			if l.tables == nil {
				l.tables = make(map[string]string)
			}
			l.tables[receiver] = name
		}
		return
	}

	event, ok := schema.ParseEventType(fn.Name.Name)
	if !ok || !isHookSignature(fn.Type) {
		return
	}
	if l.hooks == nil {
		l.hooks = make(map[string][]schema.EventType)
	}
	l.hooks[receiver] = append(l.hooks[receiver], event)
}

// entities resolves embedded structs and returns the tagged structs that are
// not only used as embedded ancestors.
func (l *loader) entities() ([]*Entity, error) {
	embedded := make(map[string]bool)
	for _, s := range l.structs {
		for _, f := range s.fields {
			if f.embed != "" {
				embedded[f.embed] = true
			}
		}
	}

	var out []*Entity
	for _, name := range l.order {
		s := l.structs[name]
		if embedded[name] {
			continue
		}
		e := &Entity{Name: s.name, File: s.file, Table: s.table}
		if t, ok := l.tables[name]; ok && e.Table == "" {
			e.Table = t
		}
		if err := l.flatten(e, s, nil); err != nil {
			return nil, err
		}
		if len(e.Columns) == 0 {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// flatten appends the columns and hooks of s and its embedded structs to e
// in field order.
func (l *loader) flatten(e *Entity, s *structInfo, seen []string) error {
	if slices.Contains(seen, s.name) {
		return fmt.Errorf("struct %s embeds itself", s.name)
	}
	seen = append(seen, s.name)

	for _, f := range s.fields {
		if f.column != nil {
			if e.Column(f.column.Property) != nil {
				return fmt.Errorf("%s: duplicate column property %s", e.Name, f.column.Property)
			}
			e.Columns = append(e.Columns, f.column)
			continue
		}
		if base, ok := l.structs[f.embed]; ok {
			if err := l.flatten(e, base, seen); err != nil {
				return err
			}
		}
	}
	for _, event := range l.hooks[s.name] {
		if !slices.Contains(e.Listeners, event) {
			e.Listeners = append(e.Listeners, event)
		}
	}
	return nil
}

func fieldTag(field *ast.Field) (string, bool) {
	if field.Tag == nil {
		return "", false
	}
	raw, err := strconv.Unquote(field.Tag.Value)
	if err != nil {
		return "", false
	}
	return reflect.StructTag(raw).Lookup(schema.StructTagKey)
}

// tableNameFromDoc reads a `// table_name: name` comment.
func tableNameFromDoc(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	for _, c := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		if name, ok := strings.CutPrefix(text, "table_name:"); ok {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func receiverName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) != 1 {
		return ""
	}
	typ := fn.Recv.List[0].Type
	if star, ok := typ.(*ast.StarExpr); ok {
		typ = star.X
	}
	if ident, ok := typ.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

func literalReturn(fn *ast.FuncDecl) string {
	if fn.Body == nil || len(fn.Body.List) != 1 {
		return ""
	}
	ret, ok := fn.Body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return ""
	}
	lit, ok := ret.Results[0].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return ""
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return ""
	}
	return s
}

// isHookSignature matches func(context.Context) error.
func isHookSignature(ft *ast.FuncType) bool {
	if ft.Params == nil || len(ft.Params.List) != 1 || len(ft.Params.List[0].Names) > 1 {
		return false
	}
	sel, ok := ft.Params.List[0].Type.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Context" {
		return false
	}
	if pkg, ok := sel.X.(*ast.Ident); !ok || pkg.Name != "context" {
		return false
	}
	if ft.Results == nil || len(ft.Results.List) != 1 || len(ft.Results.List[0].Names) > 1 {
		return false
	}
	ident, ok := ft.Results.List[0].Type.(*ast.Ident)
	return ok && ident.Name == "error"
}
