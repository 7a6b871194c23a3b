package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONColumn is implemented by values stored in JSON columns.
// The type mapper infers JSON for any field implementing it.
type JSONColumn interface {
	driver.Valuer
	jsonColumn()
}

// JSONMap stores a free-form object in a JSON column.
//
//	type Post struct {
//	    ID   int            `po:"id,primaryKey,autoIncrement"`
//	    Meta schema.JSONMap `po:"meta,nullable"`
//	}
type JSONMap map[string]any

func (JSONMap) jsonColumn() {}

// Value implements driver.Valuer.
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner.
func (j *JSONMap) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
		return nil
	case map[string]any:
		// pgx decodes json columns itself
		*j = v
		return nil
	default:
		raw, err := jsonBytes(src)
		if err != nil {
			return fmt.Errorf("scan JSONMap: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("scan JSONMap: %w", err)
		}
		*j = m
		return nil
	}
}

// JSONValue stores a typed value in a JSON column.
type JSONValue[T any] struct {
	Data T
}

func (JSONValue[T]) jsonColumn() {}

// Value implements driver.Valuer.
func (j JSONValue[T]) Value() (driver.Value, error) {
	return json.Marshal(j.Data)
}

// Scan implements sql.Scanner.
func (j *JSONValue[T]) Scan(src any) error {
	if src == nil {
		var zero T
		j.Data = zero
		return nil
	}
	raw, err := jsonBytes(src)
	if err != nil {
		// already decoded by the driver; round-trip into T
		if raw, err = json.Marshal(src); err != nil {
			return fmt.Errorf("scan JSONValue: %w", err)
		}
	}
	return json.Unmarshal(raw, &j.Data)
}

// MarshalJSON implements json.Marshaler.
func (j JSONValue[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Data)
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONValue[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.Data)
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported source type %T", src)
	}
}
