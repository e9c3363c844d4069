package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type identifies one of the declared field types supported by task schemas.
type Type int

const (
	// TypeAny accepts and returns any value unchanged.
	TypeAny Type = iota
	// TypeString is a text value.
	TypeString
	// TypeInteger is a whole number.
	TypeInteger
	// TypeNumber is a floating point number.
	TypeNumber
	// TypeBoolean is a true/false value.
	TypeBoolean
	// TypeArray is an ordered list of values.
	TypeArray
	// TypeObject is a string-keyed map of values.
	TypeObject
)

// String returns the schema name of the type.
func (t Type) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return "unknown"
	}
}

// ParseType resolves a schema type name into its Type descriptor. Intended to
// be called once at task registration time, not per call.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "any":
		return TypeAny, nil
	case "string", "str":
		return TypeString, nil
	case "integer", "int":
		return TypeInteger, nil
	case "number", "float":
		return TypeNumber, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "array", "list":
		return TypeArray, nil
	case "object", "map", "dict":
		return TypeObject, nil
	default:
		return TypeAny, fmt.Errorf("unknown type name %q", name)
	}
}

// Error describes a failed coercion, naming the offending value and the
// target type.
type Error struct {
	Value any
	Type  Type
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("cannot coerce %v (%T) to %s", e.Value, e.Value, e.Type)
}

// Coerce converts value into the declared type, or fails with an *Error for
// unsupported conversions. Coercion is idempotent: applying Coerce to its own
// result yields the same value.
func Coerce(value any, t Type) (any, error) {
	switch t {
	case TypeAny:
		return value, nil
	case TypeString:
		return coerceString(value)
	case TypeInteger:
		return coerceInteger(value)
	case TypeNumber:
		return coerceNumber(value)
	case TypeBoolean:
		return coerceBoolean(value)
	case TypeArray:
		if v, ok := value.([]any); ok {
			return v, nil
		}
		return nil, &Error{Value: value, Type: t}
	case TypeObject:
		if v, ok := value.(map[string]any); ok {
			return v, nil
		}
		return nil, &Error{Value: value, Type: t}
	default:
		return nil, &Error{Value: value, Type: t}
	}
}

func coerceString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return nil, &Error{Value: value, Type: TypeString}
	}
}

func coerceInteger(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float32:
		if float32(int(v)) == v {
			return int(v), nil
		}
	case float64:
		if math.Trunc(v) == v && !math.IsInf(v, 0) {
			return int(v), nil
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, nil
		}
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return nil, &Error{Value: value, Type: TypeInteger}
}

func coerceNumber(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, nil
		}
	}
	return nil, &Error{Value: value, Type: TypeNumber}
}

// coerceBoolean accepts bools, 0/1 numerics and an unambiguous set of string
// spellings. Anything else ("maybe", 2, ...) fails.
func coerceBoolean(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1", "on":
			return true, nil
		case "false", "no", "0", "off":
			return false, nil
		}
	}
	return nil, &Error{Value: value, Type: TypeBoolean}
}
