package dialect

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// Postgres is the PostgreSQL dialect.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) SupportsReturning() bool { return true }

func (Postgres) ColumnType(col schema.ColumnDefinition) string {
	switch col.Type {
	case schema.Boolean:
		return "boolean"
	case schema.SmallInt:
		return "smallint"
	case schema.Integer:
		return "integer"
	case schema.BigInt:
		return "bigint"
	case schema.Float:
		return "real"
	case schema.Double:
		return "double precision"
	case schema.Decimal:
		return "numeric" + decimalSuffix(col)
	case schema.String:
		return "varchar" + lengthSuffix(col)
	case schema.Text:
		return "text"
	case schema.Timestamp:
		return "timestamptz"
	case schema.Date:
		return "date"
	case schema.Time:
		return "time"
	case schema.Bytes:
		return "bytea"
	case schema.JSON:
		return "jsonb"
	case schema.UUID:
		return "uuid"
	default:
		return string(col.Type)
	}
}

func (p Postgres) ColumnSQL(col schema.ColumnDefinition, inlinePrimary bool) string {
	var b strings.Builder
	b.WriteString(p.QuoteIdent(col.Name))
	b.WriteString(" ")
	b.WriteString(p.ColumnType(col))
	if col.AutoIncrement {
		b.WriteString(" GENERATED BY DEFAULT AS IDENTITY")
	}
	writeConstraints(&b, col, inlinePrimary)
	return b.String()
}

var postgresAliases = map[string]string{
	"int":                         "integer",
	"int4":                        "integer",
	"serial":                      "integer",
	"serial4":                     "integer",
	"int2":                        "smallint",
	"smallserial":                 "smallint",
	"int8":                        "bigint",
	"bigserial":                   "bigint",
	"float4":                      "real",
	"float8":                      "double precision",
	"bool":                        "boolean",
	"decimal":                     "numeric",
	"character varying":           "varchar",
	"character":                   "char",
	"timestamp with time zone":    "timestamptz",
	"timestamp without time zone": "timestamp",
	"time without time zone":      "time",
	"time with time zone":         "timetz",
}

// NormalizeType maps PostgreSQL type aliases and information_schema
// spellings to the short names used in DDL.
func (Postgres) NormalizeType(native string) string {
	base, suffix := splitType(collapse(native))
	if alias, ok := postgresAliases[base]; ok {
		base = alias
	}
	if base == "numeric" && strings.HasSuffix(suffix, ",0)") {
		suffix = strings.TrimSuffix(suffix, ",0)") + ")"
	}
	return base + suffix
}

func (p Postgres) AlterColumnSQL(table string, from schema.ColumnInfo, to schema.ColumnDefinition) ([]string, error) {
	change := CompareColumn(p, from, to)
	if !change.Any() {
		return nil, nil
	}

	prefix := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s", p.QuoteIdent(table), p.QuoteIdent(to.Name))
	var stmts []string

	if change.Type {
		fromType := p.NormalizeType(from.DataType)
		toType := p.NormalizeType(p.ColumnType(to))
		stmt := fmt.Sprintf("%s TYPE %s", prefix, p.ColumnType(to))
		if using := usingClause(p.QuoteIdent(to.Name), fromType, toType); using != "" {
			stmt += " " + using
		}
		stmts = append(stmts, stmt)
	}

	if change.Nullable {
		if to.Nullable {
			stmts = append(stmts, prefix+" DROP NOT NULL")
		} else {
			stmts = append(stmts, prefix+" SET NOT NULL")
		}
	}

	if change.Default {
		switch {
		case to.AutoIncrement:
			if from.Default != nil {
				stmts = append(stmts, prefix+" DROP DEFAULT")
			}
			stmts = append(stmts, prefix+" ADD GENERATED BY DEFAULT AS IDENTITY")
		case from.AutoIncrement:
			stmts = append(stmts, prefix+" DROP IDENTITY IF EXISTS")
			if to.Default != nil {
				stmts = append(stmts, prefix+" SET DEFAULT "+*to.Default)
			}
		case to.Default != nil:
			stmts = append(stmts, prefix+" SET DEFAULT "+*to.Default)
		default:
			stmts = append(stmts, prefix+" DROP DEFAULT")
		}
	}

	return stmts, nil
}

func isTextType(t string) bool {
	return t == "text" || strings.HasPrefix(t, "varchar") || strings.HasPrefix(t, "char")
}

// usingClause returns the USING expression for conversions PostgreSQL
// cannot cast implicitly, or "" when none is needed.
func usingClause(column, from, to string) string {
	switch {
	case from == to:
		return ""
	case isTextType(from) && (to == "jsonb" || to == "json"):
		return fmt.Sprintf("USING CASE WHEN %s IS NULL THEN NULL WHEN %s = '' THEN '{}'::%s ELSE %s::%s END",
			column, column, to, column, to)
	case isTextType(from) && (to == "integer" || to == "bigint" || to == "smallint"):
		return fmt.Sprintf("USING CASE WHEN %s ~ '^-?[0-9]+$' THEN %s::%s ELSE NULL END",
			column, column, to)
	case isTextType(from) && (strings.HasPrefix(to, "numeric") || to == "boolean" || to == "uuid"):
		return fmt.Sprintf("USING %s::%s", column, to)
	case (from == "integer" || from == "bigint") && to == "jsonb":
		return fmt.Sprintf("USING to_jsonb(%s)", column)
	default:
		return ""
	}
}
