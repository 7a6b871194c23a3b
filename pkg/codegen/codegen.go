// Package codegen writes Go source that declares loaded entities with
// metadata.Declare, so production builds do not depend on struct tags or
// source files being present.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/marshallshelly/pebble-entities/pkg/loader"
	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

const (
	// DefaultFuncName is the name of the generated declaration function.
	DefaultFuncName = "DeclareEntities"
	// DefaultFileName is the generated file written next to the entities.
	DefaultFileName = "entities.gen.go"
)

// Options controls generation.
type Options struct {
	// FuncName defaults to DefaultFuncName.
	FuncName string
	// Command is recorded in the file header when set.
	Command string
}

var fileTemplate = template.Must(template.New("entities").Funcs(template.FuncMap{
	"quote": strconv.Quote,
}).Parse(`// Code generated by pebble. DO NOT EDIT.
{{- if .Command}}
// pebble {{.Command}}
{{- end}}

package {{.Package}}

import (
	"github.com/marshallshelly/pebble-entities/pkg/metadata"
{{- if .NeedsSchema}}
	"github.com/marshallshelly/pebble-entities/pkg/schema"
{{- end}}
)

// {{.Func}} declares the entities of package {{.Package}} on s.
func {{.Func}}(s *metadata.Storage) error {
{{- range .Entities}}
	if err := metadata.Declare[{{.Name}}](s).
		Table({{quote .Table}}).
{{- range .Calls}}
		{{.}}.
{{- end}}
		Err(); err != nil {
		return err
	}
{{- end}}
	return nil
}
`))

type fileData struct {
	Package     string
	Command     string
	Func        string
	NeedsSchema bool
	Entities    []entityData
}

type entityData struct {
	Name  string
	Table string
	Calls []string
}

// Generate renders the declaration file for pkg.
func Generate(pkg *loader.Package, opts Options) ([]byte, error) {
	if pkg.Name == "" {
		return nil, fmt.Errorf("package name is required")
	}
	if len(pkg.Entities) == 0 {
		return nil, fmt.Errorf("no entities found in package %s", pkg.Name)
	}
	fn := opts.FuncName
	if fn == "" {
		fn = DefaultFuncName
	}
	if !token.IsIdentifier(fn) {
		return nil, fmt.Errorf("invalid function name %q", fn)
	}

	data := fileData{Package: pkg.Name, Command: opts.Command, Func: fn}
	for _, e := range pkg.Entities {
		ed := entityData{Name: e.Name, Table: e.Table}
		for _, c := range e.Columns {
			ed.Calls = append(ed.Calls, columnCall(c))
		}
		for _, c := range e.Columns {
			if c.Reference != nil {
				ed.Calls = append(ed.Calls, referenceCall(pkg, c))
			}
		}
		for _, event := range e.Listeners {
			ed.Calls = append(ed.Calls, fmt.Sprintf("ListenMethod(schema.%s, %q)", event, event))
		}
		for _, call := range ed.Calls {
			if strings.Contains(call, "schema.") {
				data.NeedsSchema = true
			}
		}
		data.Entities = append(data.Entities, ed)
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format generated code: %w", err)
	}
	return src, nil
}

// WriteFile generates the declaration file for pkg and writes it to path.
// An empty path writes DefaultFileName in the package directory.
func WriteFile(path string, pkg *loader.Package, opts Options) (string, error) {
	src, err := Generate(pkg, opts)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(pkg.Dir, DefaultFileName)
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func columnCall(c *loader.Column) string {
	if c.Generated() {
		return fmt.Sprintf("PrimaryGeneratedColumn(%q)", c.Property)
	}
	method := "Column"
	switch {
	case c.Primary:
		method = "PrimaryColumn"
	case c.Mode == schema.ModeCreateDate:
		method = "CreateDateColumn"
	case c.Mode == schema.ModeUpdateDate:
		method = "UpdateDateColumn"
	}
	return fmt.Sprintf("%s(%q, %s)", method, c.Property, optionsLiteral(c))
}

// referenceCall uses References when the referenced table belongs to an
// entity of the same package and ReferencesTable otherwise.
func referenceCall(pkg *loader.Package, c *loader.Column) string {
	ref := c.Reference
	var opts string
	if ref.OnDelete != schema.NoAction {
		opts += ", metadata.OnDelete(schema." + actionIdents[ref.OnDelete] + ")"
	}
	if ref.OnUpdate != schema.NoAction {
		opts += ", metadata.OnUpdate(schema." + actionIdents[ref.OnUpdate] + ")"
	}

	if target := pkg.EntityByTable(ref.Table); target != nil {
		if col := target.ColumnByName(ref.Column); col != nil {
			return fmt.Sprintf("References(%q, %s{}, %q%s)", c.Property, target.Name, col.Property, opts)
		}
	}
	return fmt.Sprintf("ReferencesTable(%q, %q, %q%s)", c.Property, ref.Table, ref.Column, opts)
}

func optionsLiteral(c *loader.Column) string {
	o := c.Options
	var fields []string
	if o.Type != schema.Undefined {
		fields = append(fields, "Type: schema."+typeIdents[o.Type])
	}
	if o.Name != "" && o.Name != schema.ToSnakeCase(c.Property) {
		fields = append(fields, "Name: "+strconv.Quote(o.Name))
	}
	if o.Length != 0 {
		fields = append(fields, "Length: "+strconv.Itoa(o.Length))
	}
	if o.Precision != 0 {
		fields = append(fields, "Precision: "+strconv.Itoa(o.Precision))
	}
	if o.Scale != 0 {
		fields = append(fields, "Scale: "+strconv.Itoa(o.Scale))
	}
	if o.Nullable {
		fields = append(fields, "Nullable: true")
	}
	if o.AutoIncrement {
		fields = append(fields, "AutoIncrement: true")
	}
	if o.Unique {
		fields = append(fields, "Unique: true")
	}
	if o.Default != nil {
		fields = append(fields, "Default: schema.Default("+strconv.Quote(*o.Default)+")")
	}
	return "schema.ColumnOptions{" + strings.Join(fields, ", ") + "}"
}

var typeIdents = map[schema.ColumnType]string{
	schema.Boolean:   "Boolean",
	schema.SmallInt:  "SmallInt",
	schema.Integer:   "Integer",
	schema.BigInt:    "BigInt",
	schema.Float:     "Float",
	schema.Double:    "Double",
	schema.Decimal:   "Decimal",
	schema.String:    "String",
	schema.Text:      "Text",
	schema.Timestamp: "Timestamp",
	schema.Date:      "Date",
	schema.Time:      "Time",
	schema.Bytes:     "Bytes",
	schema.JSON:      "JSON",
	schema.UUID:      "UUID",
}

var actionIdents = map[schema.ReferenceAction]string{
	schema.NoAction:   "NoAction",
	schema.Restrict:   "Restrict",
	schema.Cascade:    "Cascade",
	schema.SetNull:    "SetNull",
	schema.SetDefault: "SetDefault",
}
