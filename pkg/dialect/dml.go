package dialect

import (
	"errors"
	"fmt"
	"strings"
)

// Value pairs a column with the value bound to it.
type Value struct {
	Column string
	Value  any
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a single-table SELECT. Where terms are ANDed equality
// tests; a nil value is rendered as IS NULL.
type Query struct {
	Table   string
	Columns []string
	Where   []Value
	OrderBy []Order
	Limit   int
	Offset  int
}

// ErrNoConditions guards UPDATE and DELETE against touching every row.
var ErrNoConditions = errors.New("statement has no conditions")

// InsertSQL renders an INSERT. returning is ignored when the dialect has no
// RETURNING clause.
func InsertSQL(d Dialect, table string, values []Value, returning []string) (string, []any) {
	var sql strings.Builder
	args := make([]any, 0, len(values))

	sql.WriteString("INSERT INTO ")
	sql.WriteString(d.QuoteIdent(table))

	if len(values) == 0 {
		if d.Name() == "mysql" {
			sql.WriteString(" () VALUES ()")
		} else {
			sql.WriteString(" DEFAULT VALUES")
		}
	} else {
		columns := make([]string, len(values))
		placeholders := make([]string, len(values))
		for i, v := range values {
			columns[i] = d.QuoteIdent(v.Column)
			placeholders[i] = d.Placeholder(i + 1)
			args = append(args, v.Value)
		}

		sql.WriteString(" (")
		sql.WriteString(strings.Join(columns, ", "))
		sql.WriteString(") VALUES (")
		sql.WriteString(strings.Join(placeholders, ", "))
		sql.WriteString(")")
	}

	if len(returning) > 0 && d.SupportsReturning() {
		sql.WriteString(" RETURNING ")
		sql.WriteString(quoteList(d, returning))
	}

	return sql.String(), args
}

// UpdateSQL renders an UPDATE of the set columns on rows matching where.
func UpdateSQL(d Dialect, table string, set, where []Value) (string, []any, error) {
	if len(set) == 0 {
		return "", nil, fmt.Errorf("no columns to update")
	}
	if len(where) == 0 {
		return "", nil, fmt.Errorf("update %s: %w", table, ErrNoConditions)
	}

	var sql strings.Builder
	args := make([]any, 0, len(set)+len(where))

	sql.WriteString("UPDATE ")
	sql.WriteString(d.QuoteIdent(table))
	sql.WriteString(" SET ")

	parts := make([]string, len(set))
	for i, v := range set {
		args = append(args, v.Value)
		parts[i] = fmt.Sprintf("%s = %s", d.QuoteIdent(v.Column), d.Placeholder(len(args)))
	}
	sql.WriteString(strings.Join(parts, ", "))

	clause, args := whereClause(d, where, args)
	sql.WriteString(clause)

	return sql.String(), args, nil
}

// DeleteSQL renders a DELETE of the rows matching where.
func DeleteSQL(d Dialect, table string, where []Value) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, fmt.Errorf("delete from %s: %w", table, ErrNoConditions)
	}

	clause, args := whereClause(d, where, nil)
	return "DELETE FROM " + d.QuoteIdent(table) + clause, args, nil
}

// SelectSQL renders a SELECT.
func SelectSQL(d Dialect, q Query) (string, []any) {
	var sql strings.Builder

	sql.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		sql.WriteString("*")
	} else {
		sql.WriteString(quoteList(d, q.Columns))
	}

	sql.WriteString(" FROM ")
	sql.WriteString(d.QuoteIdent(q.Table))

	clause, args := whereClause(d, q.Where, nil)
	sql.WriteString(clause)

	if len(q.OrderBy) > 0 {
		parts := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = d.QuoteIdent(o.Column) + " " + dir
		}
		sql.WriteString(" ORDER BY ")
		sql.WriteString(strings.Join(parts, ", "))
	}

	switch {
	case q.Limit > 0:
		sql.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	case q.Offset > 0 && d.Name() == "sqlite":
		sql.WriteString(" LIMIT -1")
	case q.Offset > 0 && d.Name() == "mysql":
		sql.WriteString(" LIMIT 18446744073709551615")
	}

	if q.Offset > 0 {
		sql.WriteString(fmt.Sprintf(" OFFSET %d", q.Offset))
	}

	return sql.String(), args
}

// CountSQL renders SELECT COUNT(*) over the rows matching where.
func CountSQL(d Dialect, table string, where []Value) (string, []any) {
	clause, args := whereClause(d, where, nil)
	return "SELECT COUNT(*) FROM " + d.QuoteIdent(table) + clause, args
}

// whereClause appends the conditions to args, numbering placeholders after
// the arguments already bound.
func whereClause(d Dialect, where []Value, args []any) (string, []any) {
	if len(where) == 0 {
		return "", args
	}

	parts := make([]string, len(where))
	for i, v := range where {
		if v.Value == nil {
			parts[i] = d.QuoteIdent(v.Column) + " IS NULL"
			continue
		}
		args = append(args, v.Value)
		parts[i] = fmt.Sprintf("%s = %s", d.QuoteIdent(v.Column), d.Placeholder(len(args)))
	}

	return " WHERE " + strings.Join(parts, " AND "), args
}
