package dialect

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// MySQL is the MySQL / MariaDB dialect.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) SupportsReturning() bool { return false }

func (MySQL) ColumnType(col schema.ColumnDefinition) string {
	switch col.Type {
	case schema.Boolean:
		return "tinyint(1)"
	case schema.SmallInt:
		return "smallint"
	case schema.Integer:
		return "int"
	case schema.BigInt:
		return "bigint"
	case schema.Float:
		return "float"
	case schema.Double:
		return "double"
	case schema.Decimal:
		if s := decimalSuffix(col); s != "" {
			return "decimal" + s
		}
		return "decimal(10)"
	case schema.String:
		return "varchar" + lengthSuffix(col)
	case schema.Text:
		return "text"
	case schema.Timestamp:
		return "datetime(6)"
	case schema.Date:
		return "date"
	case schema.Time:
		return "time"
	case schema.Bytes:
		return "longblob"
	case schema.JSON:
		return "json"
	case schema.UUID:
		return "char(36)"
	default:
		return string(col.Type)
	}
}

func (m MySQL) ColumnSQL(col schema.ColumnDefinition, inlinePrimary bool) string {
	var b strings.Builder
	b.WriteString(m.QuoteIdent(col.Name))
	b.WriteString(" ")
	b.WriteString(m.ColumnType(col))
	if col.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	writeConstraints(&b, col, inlinePrimary)
	return b.String()
}

var mysqlAliases = map[string]string{
	"integer":           "int",
	"numeric":           "decimal",
	"double precision":  "double",
	"real":              "double",
	"character varying": "varchar",
}

// NormalizeType folds information_schema COLUMN_TYPE values. Integer display
// widths are dropped except for tinyint(1), which MySQL uses for booleans.
func (MySQL) NormalizeType(native string) string {
	native = strings.TrimSuffix(collapse(native), " unsigned")
	base, suffix := splitType(native)

	switch base {
	case "bool", "boolean":
		return "tinyint(1)"
	case "tinyint":
		if suffix == "(1)" {
			return "tinyint(1)"
		}
		return "tinyint"
	case "smallint", "mediumint", "int", "integer", "bigint":
		suffix = ""
	}

	if alias, ok := mysqlAliases[base]; ok {
		base = alias
	}
	if base == "decimal" && strings.HasSuffix(suffix, ",0)") {
		suffix = strings.TrimSuffix(suffix, ",0)") + ")"
	}
	return base + suffix
}

// AlterColumnSQL redefines the column with MODIFY COLUMN, which covers type,
// nullability and default in one statement.
func (m MySQL) AlterColumnSQL(table string, from schema.ColumnInfo, to schema.ColumnDefinition) ([]string, error) {
	if !CompareColumn(m, from, to).Any() {
		return nil, nil
	}
	return []string{
		fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", m.QuoteIdent(table), m.ColumnSQL(to, false)),
	}, nil
}
