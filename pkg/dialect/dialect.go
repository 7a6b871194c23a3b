// Package dialect renders DDL and DML for the supported SQL databases and
// normalises native type names so live columns can be compared with entity
// metadata.
package dialect

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Dialect captures the differences between SQL databases.
type Dialect interface {
	// Name is the driver name the dialect belongs to.
	Name() string
	QuoteIdent(name string) string
	// Placeholder returns the bind parameter for the n-th argument, 1-based.
	Placeholder(n int) string
	// ColumnType returns the native type used for a column definition.
	ColumnType(col schema.ColumnDefinition) string
	// ColumnSQL renders a column definition. inlinePrimary is set when the
	// column is the only primary key column of its table.
	ColumnSQL(col schema.ColumnDefinition, inlinePrimary bool) string
	// NormalizeType maps a native type name to a canonical spelling.
	NormalizeType(native string) string
	// AlterColumnSQL renders the statements that turn the live column into
	// the declared one.
	AlterColumnSQL(table string, from schema.ColumnInfo, to schema.ColumnDefinition) ([]string, error)
	// SupportsReturning reports whether INSERT ... RETURNING is available.
	SupportsReturning() bool
}

// ErrUnsupported is returned when a dialect cannot express an operation.
var ErrUnsupported = errors.New("operation not supported by dialect")

// Lookup returns the dialect registered for a driver name.
func Lookup(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

// ColumnChange lists what differs between a live column and its definition.
type ColumnChange struct {
	Type     bool
	Nullable bool
	Default  bool
}

// Any reports whether anything changed.
func (c ColumnChange) Any() bool {
	return c.Type || c.Nullable || c.Default
}

// CompareColumn compares a live column with the declared one.
func CompareColumn(d Dialect, from schema.ColumnInfo, to schema.ColumnDefinition) ColumnChange {
	var change ColumnChange

	if d.NormalizeType(from.DataType) != d.NormalizeType(d.ColumnType(to)) {
		change.Type = true
	}

	// Primary key columns are implicitly NOT NULL in every dialect.
	if !to.Primary && from.Nullable != to.Nullable {
		change.Nullable = true
	}

	if !sameDefault(from, to) {
		change.Default = true
	}

	return change
}

func sameDefault(from schema.ColumnInfo, to schema.ColumnDefinition) bool {
	// Generated columns carry a sequence or identity, never a literal default.
	if to.AutoIncrement {
		return from.AutoIncrement || isSequenceDefault(from.Default)
	}

	if from.Default == nil && to.Default == nil {
		return true
	}
	if from.Default == nil || to.Default == nil {
		return false
	}

	return NormalizeDefault(*from.Default) == NormalizeDefault(*to.Default)
}

func isSequenceDefault(def *string) bool {
	if def == nil {
		return false
	}
	d := strings.ToLower(*def)
	return strings.Contains(d, "nextval(") && strings.Contains(d, "_seq")
}

var castSuffix = regexp.MustCompile(`::[a-z_ ]+(\[\])?$`)

// NormalizeDefault canonicalises a default expression for comparison.
// Databases report defaults with casts, parentheses and quoting that the
// declaration does not carry.
func NormalizeDefault(def string) string {
	def = strings.ToLower(strings.TrimSpace(def))

	for {
		next := castSuffix.ReplaceAllString(def, "")
		if len(def) >= 2 && def[0] == '(' && def[len(def)-1] == ')' && balanced(def[1:len(def)-1]) {
			next = def[1 : len(def)-1]
		}
		if next == def {
			break
		}
		def = strings.TrimSpace(next)
	}

	def = strings.Trim(def, "'")

	switch def {
	case "current_timestamp", "current_timestamp()", "now()", "localtimestamp":
		return "now()"
	case "t":
		return "true"
	case "f":
		return "false"
	}

	return def
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

var spaces = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return spaces.ReplaceAllString(strings.TrimSpace(strings.ToLower(s)), " ")
}

// splitType splits "varchar(100)" into "varchar" and "(100)".
func splitType(native string) (string, string) {
	if i := strings.Index(native, "("); i >= 0 {
		return strings.TrimSpace(native[:i]), strings.ReplaceAll(native[i:], " ", "")
	}
	return native, ""
}

func lengthSuffix(col schema.ColumnDefinition) string {
	n := col.Length
	if n <= 0 {
		n = schema.DefaultStringLength
	}
	return fmt.Sprintf("(%d)", n)
}

func decimalSuffix(col schema.ColumnDefinition) string {
	switch {
	case col.Precision > 0 && col.Scale > 0:
		return fmt.Sprintf("(%d,%d)", col.Precision, col.Scale)
	case col.Precision > 0:
		return fmt.Sprintf("(%d)", col.Precision)
	default:
		return ""
	}
}

// writeConstraints appends the constraint clauses shared by every dialect.
func writeConstraints(b *strings.Builder, col schema.ColumnDefinition, inlinePrimary bool) {
	if !col.Nullable || col.Primary {
		b.WriteString(" NOT NULL")
	}

	if col.Default != nil && !col.AutoIncrement {
		b.WriteString(" DEFAULT ")
		b.WriteString(*col.Default)
	}

	if inlinePrimary {
		b.WriteString(" PRIMARY KEY")
	}

	if col.Unique && !col.Primary {
		b.WriteString(" UNIQUE")
	}
}
