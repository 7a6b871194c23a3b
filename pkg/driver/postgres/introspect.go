package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/pebble-entities/pkg/driver"
)

// ListTables returns the base tables of the configured schema.
func (d *Driver) ListTables(ctx context.Context) ([]string, error) {
	pool, err := d.handle()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := pool.Query(ctx, query, d.config.Schema)
	if err != nil {
		return nil, &driver.QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

// LoadTable reads a table's columns from information_schema. It returns
// nil, nil when the table does not exist.
func (d *Driver) LoadTable(ctx context.Context, name string) (*driver.TableInfo, error) {
	pool, err := d.handle()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_name,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.is_nullable,
			c.column_default,
			c.is_identity,
			COALESCE((
				SELECT string_agg(tc.constraint_type, ',')
				FROM information_schema.key_column_usage kcu
				JOIN information_schema.table_constraints tc
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
				WHERE kcu.table_schema = c.table_schema
					AND kcu.table_name = c.table_name
					AND kcu.column_name = c.column_name
					AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
			), '') AS key_types
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := pool.Query(ctx, query, d.config.Schema, name)
	if err != nil {
		return nil, &driver.QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	table := &driver.TableInfo{Name: name}
	for rows.Next() {
		var col driver.ColumnInfo
		var dataType, udtName, isNullable, isIdentity, keyTypes string
		var maxLength, precision, scale *int32

		err := rows.Scan(
			&col.Name,
			&dataType,
			&udtName,
			&maxLength,
			&precision,
			&scale,
			&isNullable,
			&col.Default,
			&isIdentity,
			&keyTypes,
		)
		if err != nil {
			return nil, err
		}

		col.DataType = buildSQLType(dataType, udtName, maxLength, precision, scale)
		col.Nullable = isNullable == "YES"
		col.AutoIncrement = isIdentity == "YES" ||
			(col.Default != nil && strings.Contains(*col.Default, "nextval"))
		col.Primary = strings.Contains(keyTypes, "PRIMARY KEY")
		col.Unique = strings.Contains(keyTypes, "UNIQUE")

		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(table.Columns) == 0 {
		return nil, nil
	}
	return table, nil
}

// buildSQLType folds information_schema columns into one native type name.
func buildSQLType(dataType, udtName string, maxLength, precision, scale *int32) string {
	switch dataType {
	case "character varying":
		if maxLength != nil {
			return fmt.Sprintf("varchar(%d)", *maxLength)
		}
		return "varchar"
	case "character":
		if maxLength != nil {
			return fmt.Sprintf("char(%d)", *maxLength)
		}
		return "char"
	case "numeric":
		if precision != nil && scale != nil {
			return fmt.Sprintf("numeric(%d,%d)", *precision, *scale)
		}
		return "numeric"
	case "ARRAY":
		if strings.HasPrefix(udtName, "_") {
			return udtName[1:] + "[]"
		}
		return udtName
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}
