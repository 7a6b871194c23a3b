package orm

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

var (
	scannerType = reflect.TypeFor[sql.Scanner]()
	valuerType  = reflect.TypeFor[driver.Valuer]()
	timeType    = reflect.TypeFor[time.Time]()
)

// timeLayouts are tried when a driver returns a timestamp as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// fieldValue returns the value bound for a struct field. Nil pointers become
// NULL; other pointers are dereferenced unless they implement driver.Valuer.
func fieldValue(field reflect.Value) any {
	for field.Kind() == reflect.Pointer {
		if field.IsNil() {
			return nil
		}
		if field.Type().Implements(valuerType) {
			return field.Interface()
		}
		field = field.Elem()
	}
	return field.Interface()
}

// assign stores a driver value into a struct field.
func assign(field reflect.Value, src any) error {
	if src == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	if field.CanAddr() && field.Addr().Type().Implements(scannerType) {
		return field.Addr().Interface().(sql.Scanner).Scan(src)
	}

	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		if err := assign(elem.Elem(), src); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(field.Type()) {
		field.Set(sv)
		return nil
	}

	switch {
	case field.Type() == timeType:
		return assignTime(field, src)
	case field.Kind() == reflect.String:
		switch v := src.(type) {
		case []byte:
			field.SetString(string(v))
			return nil
		case fmt.Stringer:
			field.SetString(v.String())
			return nil
		}
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Uint8:
		if s, ok := src.(string); ok {
			field.SetBytes([]byte(s))
			return nil
		}
	case field.Kind() == reflect.Bool:
		return assignBool(field, sv)
	case isNumeric(field.Kind()):
		return assignNumber(field, sv)
	}

	return fmt.Errorf("cannot assign %T to %s", src, field.Type())
}

func assignTime(field reflect.Value, src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot assign %T to time.Time", src)
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			field.Set(reflect.ValueOf(t))
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as time", s)
}

// assignBool accepts the 0/1 integers used by sqlite and mysql.
func assignBool(field reflect.Value, sv reflect.Value) error {
	switch {
	case isInt(sv.Kind()):
		field.SetBool(sv.Int() != 0)
	case isUint(sv.Kind()):
		field.SetBool(sv.Uint() != 0)
	case sv.Kind() == reflect.String:
		b, err := strconv.ParseBool(sv.String())
		if err != nil {
			return fmt.Errorf("cannot assign %q to bool: %w", sv.String(), err)
		}
		field.SetBool(b)
	case sv.Kind() == reflect.Slice && sv.Type().Elem().Kind() == reflect.Uint8:
		return assignBool(field, reflect.ValueOf(string(sv.Bytes())))
	default:
		return fmt.Errorf("cannot assign %s to bool", sv.Type())
	}
	return nil
}

// assignNumber converts between numeric kinds and parses numbers sent as
// text, such as mysql decimals.
func assignNumber(field reflect.Value, sv reflect.Value) error {
	if isNumeric(sv.Kind()) {
		converted := sv.Convert(field.Type())
		if !sameNumber(converted, sv) {
			return fmt.Errorf("value %v overflows %s", sv.Interface(), field.Type())
		}
		field.Set(converted)
		return nil
	}

	var s string
	switch {
	case sv.Kind() == reflect.String:
		s = sv.String()
	case sv.Kind() == reflect.Slice && sv.Type().Elem().Kind() == reflect.Uint8:
		s = string(sv.Bytes())
	default:
		return fmt.Errorf("cannot assign %s to %s", sv.Type(), field.Type())
	}

	switch {
	case isInt(field.Kind()):
		n, err := strconv.ParseInt(s, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot assign %q to %s: %w", s, field.Type(), err)
		}
		field.SetInt(n)
	case isUint(field.Kind()):
		n, err := strconv.ParseUint(s, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot assign %q to %s: %w", s, field.Type(), err)
		}
		field.SetUint(n)
	default:
		n, err := strconv.ParseFloat(s, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot assign %q to %s: %w", s, field.Type(), err)
		}
		field.SetFloat(n)
	}
	return nil
}

// sameNumber reports whether a conversion kept the value.
func sameNumber(converted, original reflect.Value) bool {
	switch {
	case isInt(original.Kind()) && isInt(converted.Kind()):
		return converted.Int() == original.Int()
	case isUint(original.Kind()) && isUint(converted.Kind()):
		return converted.Uint() == original.Uint()
	case isInt(original.Kind()) && isUint(converted.Kind()):
		return original.Int() >= 0 && converted.Uint() == uint64(original.Int())
	case isUint(original.Kind()) && isInt(converted.Kind()):
		return converted.Int() >= 0 && uint64(converted.Int()) == original.Uint()
	}
	return true
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isNumeric(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || k == reflect.Float32 || k == reflect.Float64
}
