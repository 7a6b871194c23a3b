package dialect

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// SQLite is the SQLite 3 dialect.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLite) Placeholder(int) string { return "?" }

// SupportsReturning is true from SQLite 3.35 on, which the bundled library
// satisfies.
func (SQLite) SupportsReturning() bool { return true }

func (SQLite) ColumnType(col schema.ColumnDefinition) string {
	switch col.Type {
	case schema.Boolean:
		return "BOOLEAN"
	case schema.SmallInt, schema.Integer, schema.BigInt:
		return "INTEGER"
	case schema.Float, schema.Double:
		return "REAL"
	case schema.Decimal:
		return "NUMERIC" + decimalSuffix(col)
	case schema.String:
		return "VARCHAR" + lengthSuffix(col)
	case schema.Text:
		return "TEXT"
	case schema.Timestamp:
		return "DATETIME"
	case schema.Date:
		return "DATE"
	case schema.Time:
		return "TIME"
	case schema.Bytes:
		return "BLOB"
	case schema.JSON:
		return "JSON"
	case schema.UUID:
		return "TEXT"
	default:
		return strings.ToUpper(string(col.Type))
	}
}

func (s SQLite) ColumnSQL(col schema.ColumnDefinition, inlinePrimary bool) string {
	var b strings.Builder
	b.WriteString(s.QuoteIdent(col.Name))
	b.WriteString(" ")
	b.WriteString(s.ColumnType(col))
	writeConstraints(&b, col, inlinePrimary)
	// AUTOINCREMENT is only valid on an INTEGER PRIMARY KEY column.
	if inlinePrimary && col.AutoIncrement {
		b.WriteString(" AUTOINCREMENT")
	}
	return b.String()
}

var sqliteAliases = map[string]string{
	"int":              "integer",
	"tinyint":          "integer",
	"smallint":         "integer",
	"mediumint":        "integer",
	"bigint":           "integer",
	"float":            "real",
	"double":           "real",
	"double precision": "real",
	"bool":             "boolean",
	"decimal":          "numeric",
	"timestamp":        "datetime",
}

// NormalizeType folds the declared type reported by PRAGMA table_info.
// SQLite keeps declared types verbatim, so only case and synonyms differ.
func (SQLite) NormalizeType(native string) string {
	base, suffix := splitType(collapse(native))
	if alias, ok := sqliteAliases[base]; ok {
		base = alias
	}
	return base + suffix
}

// AlterColumnSQL fails for any change: SQLite cannot alter a column in place.
func (s SQLite) AlterColumnSQL(table string, from schema.ColumnInfo, to schema.ColumnDefinition) ([]string, error) {
	if !CompareColumn(s, from, to).Any() {
		return nil, nil
	}
	return nil, fmt.Errorf("alter column %s.%s: %w", table, to.Name, ErrUnsupported)
}
