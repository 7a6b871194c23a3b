package dialect

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/pebble-entities/pkg/schema"
)

// CreateTableSQL renders CREATE TABLE for a table definition.
func CreateTableSQL(d Dialect, table schema.TableDefinition) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", d.QuoteIdent(table.Name)))

	inline := len(table.PrimaryKey) == 1
	var defs []string
	for _, col := range table.Columns {
		defs = append(defs, "    "+d.ColumnSQL(col, inline && col.Primary))
	}

	if len(table.PrimaryKey) > 1 {
		defs = append(defs, fmt.Sprintf("    CONSTRAINT %s PRIMARY KEY (%s)",
			d.QuoteIdent(table.Name+"_pkey"), quoteList(d, table.PrimaryKey)))
	}

	for _, fk := range table.ForeignKeys {
		defs = append(defs, "    "+foreignKeySQL(d, fk))
	}

	sb.WriteString(strings.Join(defs, ",\n"))
	sb.WriteString("\n)")

	return sb.String()
}

func foreignKeySQL(d Dialect, fk schema.ForeignKeyDefinition) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.QuoteIdent(fk.Name),
		d.QuoteIdent(fk.Column),
		d.QuoteIdent(fk.ReferencedTable),
		d.QuoteIdent(fk.ReferencedColumn),
	))

	if fk.OnDelete != "" && fk.OnDelete != schema.NoAction {
		sb.WriteString(" ON DELETE ")
		sb.WriteString(string(fk.OnDelete))
	}

	if fk.OnUpdate != "" && fk.OnUpdate != schema.NoAction {
		sb.WriteString(" ON UPDATE ")
		sb.WriteString(string(fk.OnUpdate))
	}

	return sb.String()
}

// AddColumnSQL renders ALTER TABLE ... ADD COLUMN.
func AddColumnSQL(d Dialect, table string, col schema.ColumnDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(table), d.ColumnSQL(col, false))
}

// DropColumnSQL renders ALTER TABLE ... DROP COLUMN.
func DropColumnSQL(d Dialect, table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.QuoteIdent(table), d.QuoteIdent(column))
}

func quoteList(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
