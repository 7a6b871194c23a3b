package schema

import (
	"database/sql"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TypeMapper maps Go types to column types for columns declared
// without an explicit type.
type TypeMapper struct {
	mu       sync.RWMutex
	mappings map[reflect.Type]ColumnType
}

// NewTypeMapper creates a TypeMapper seeded with the default mappings.
func NewTypeMapper() *TypeMapper {
	tm := &TypeMapper{mappings: make(map[reflect.Type]ColumnType, len(defaultMappings))}
	for t, ct := range defaultMappings {
		tm.mappings[t] = ct
	}
	return tm
}

// NewTypeMapperFrom creates a TypeMapper holding exactly the given mappings.
func NewTypeMapperFrom(mappings map[reflect.Type]ColumnType) *TypeMapper {
	tm := &TypeMapper{mappings: make(map[reflect.Type]ColumnType, len(mappings))}
	for t, ct := range mappings {
		tm.mappings[t] = ct
	}
	return tm
}

// RegisterType adds or replaces the mapping for goType.
func (tm *TypeMapper) RegisterType(goType reflect.Type, ct ColumnType) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.mappings[goType] = ct
}

// Resolve returns the column type for goType. Pointer types resolve to
// their element type. The boolean is false when no mapping exists.
func (tm *TypeMapper) Resolve(goType reflect.Type) (ColumnType, bool) {
	if goType == nil {
		return Undefined, false
	}

	tm.mu.RLock()
	defer tm.mu.RUnlock()

	for {
		if ct, ok := tm.mappings[goType]; ok {
			return ct, true
		}
		if goType.Kind() != reflect.Pointer {
			break
		}
		goType = goType.Elem()
	}

	if goType.Implements(jsonColumnType) || reflect.PointerTo(goType).Implements(jsonColumnType) {
		return JSON, true
	}

	// Named types with a basic underlying kind (type Status string).
	if goType.PkgPath() != "" {
		if ct, ok := kindMappings[goType.Kind()]; ok {
			return ct, true
		}
	}
	return Undefined, false
}

var jsonColumnType = reflect.TypeFor[JSONColumn]()

var kindMappings = map[reflect.Kind]ColumnType{
	reflect.Bool:    Boolean,
	reflect.Int8:    SmallInt,
	reflect.Int16:   SmallInt,
	reflect.Int32:   Integer,
	reflect.Int:     Integer,
	reflect.Int64:   BigInt,
	reflect.Uint8:   SmallInt,
	reflect.Uint16:  Integer,
	reflect.Uint32:  BigInt,
	reflect.Uint:    BigInt,
	reflect.Uint64:  BigInt,
	reflect.Float32: Float,
	reflect.Float64: Double,
	reflect.String:  String,
}

var defaultMappings = map[reflect.Type]ColumnType{
	reflect.TypeFor[bool]():    Boolean,
	reflect.TypeFor[int8]():    SmallInt,
	reflect.TypeFor[int16]():   SmallInt,
	reflect.TypeFor[int32]():   Integer,
	reflect.TypeFor[int]():     Integer,
	reflect.TypeFor[int64]():   BigInt,
	reflect.TypeFor[uint8]():   SmallInt,
	reflect.TypeFor[uint16]():  Integer,
	reflect.TypeFor[uint32]():  BigInt,
	reflect.TypeFor[uint]():    BigInt,
	reflect.TypeFor[uint64]():  BigInt,
	reflect.TypeFor[float32](): Float,
	reflect.TypeFor[float64](): Double,
	reflect.TypeFor[string]():  String,
	reflect.TypeFor[[]byte]():  Bytes,

	reflect.TypeFor[time.Time]():       Timestamp,
	reflect.TypeFor[uuid.UUID]():       UUID,
	reflect.TypeFor[json.RawMessage](): JSON,

	reflect.TypeFor[sql.NullString]():  String,
	reflect.TypeFor[sql.NullInt16]():   SmallInt,
	reflect.TypeFor[sql.NullInt32]():   Integer,
	reflect.TypeFor[sql.NullInt64]():   BigInt,
	reflect.TypeFor[sql.NullFloat64](): Double,
	reflect.TypeFor[sql.NullBool]():    Boolean,
	reflect.TypeFor[sql.NullTime]():    Timestamp,
	reflect.TypeFor[uuid.NullUUID]():   UUID,
}

// DefaultTypeMapper is the mapper used when none is configured.
var DefaultTypeMapper = NewTypeMapper()
