// Package schema describes entities as relational tables: column types,
// column and entity metadata, naming strategies and declaration errors.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnType is a dialect-independent column type.
// Dialects map it to a native DDL type.
type ColumnType string

const (
	// Undefined means no explicit type was declared and it must be inferred.
	Undefined ColumnType = ""

	Boolean   ColumnType = "boolean"
	SmallInt  ColumnType = "smallint"
	Integer   ColumnType = "integer"
	BigInt    ColumnType = "bigint"
	Float     ColumnType = "float"
	Double    ColumnType = "double"
	Decimal   ColumnType = "decimal"
	String    ColumnType = "string"
	Text      ColumnType = "text"
	Timestamp ColumnType = "timestamp"
	Date      ColumnType = "date"
	Time      ColumnType = "time"
	Bytes     ColumnType = "bytes"
	JSON      ColumnType = "json"
	UUID      ColumnType = "uuid"
)

// DefaultStringLength is the varchar length used for String columns
// declared without a length.
const DefaultStringLength = 255

// columnTypeAliases maps SQL spellings to logical column types.
var columnTypeAliases = map[string]ColumnType{
	"boolean": Boolean,
	"bool":    Boolean,

	"smallint": SmallInt,
	"int2":     SmallInt,
	"tinyint":  SmallInt,
	"integer":  Integer,
	"int":      Integer,
	"int4":     Integer,
	"serial":   Integer,
	"bigint":   BigInt,
	"int8":     BigInt,

	"bigserial":        BigInt,
	"float":            Float,
	"real":             Float,
	"float4":           Float,
	"double":           Double,
	"double precision": Double,
	"float8":           Double,
	"decimal":          Decimal,
	"numeric":          Decimal,

	"string":            String,
	"varchar":           String,
	"character varying": String,
	"text":              Text,

	"timestamp":   Timestamp,
	"timestamptz": Timestamp,
	"datetime":    Timestamp,
	"date":        Date,
	"time":        Time,

	"bytes": Bytes,
	"bytea": Bytes,
	"blob":  Bytes,
	"json":  JSON,
	"jsonb": JSON,
	"uuid":  UUID,
}

// ParseColumnType resolves a type name or common SQL alias.
// Parameters such as "varchar(100)" are ignored; use ParseColumnSpec to keep them.
func ParseColumnType(name string) (ColumnType, error) {
	spec, err := ParseColumnSpec(name)
	if err != nil {
		return Undefined, err
	}
	return spec.Type, nil
}

// ColumnSpec is a column type together with its size parameters.
type ColumnSpec struct {
	Type      ColumnType
	Length    int
	Precision int
	Scale     int
}

// ParseColumnSpec parses strings like "varchar(100)" or "numeric(10,2)".
func ParseColumnSpec(s string) (ColumnSpec, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	var params string
	if idx := strings.Index(name, "("); idx != -1 {
		if !strings.HasSuffix(name, ")") {
			return ColumnSpec{}, fmt.Errorf("invalid column type %q", s)
		}
		params = name[idx+1 : len(name)-1]
		name = strings.TrimSpace(name[:idx])
	}

	ct, ok := columnTypeAliases[name]
	if !ok {
		return ColumnSpec{}, fmt.Errorf("unknown column type %q", s)
	}

	spec := ColumnSpec{Type: ct}
	if params == "" {
		return spec, nil
	}

	parts := strings.Split(params, ",")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return ColumnSpec{}, fmt.Errorf("invalid column type parameter %q in %q", p, s)
		}
		nums = append(nums, n)
	}

	switch ct {
	case String:
		spec.Length = nums[0]
	case Decimal:
		spec.Precision = nums[0]
		if len(nums) > 1 {
			spec.Scale = nums[1]
		}
	default:
		return ColumnSpec{}, fmt.Errorf("column type %q does not take parameters", s)
	}
	return spec, nil
}

// IsInteger reports whether values of the type are whole numbers.
func (t ColumnType) IsInteger() bool {
	return t == SmallInt || t == Integer || t == BigInt
}

// IsValid reports whether t is a known, defined column type.
func (t ColumnType) IsValid() bool {
	switch t {
	case Boolean, SmallInt, Integer, BigInt, Float, Double, Decimal,
		String, Text, Timestamp, Date, Time, Bytes, JSON, UUID:
		return true
	}
	return false
}

func (t ColumnType) String() string {
	if t == Undefined {
		return "undefined"
	}
	return string(t)
}
