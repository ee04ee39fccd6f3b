package record

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Type is the closed set of value kinds a schema entry can declare.
type Type int

const (
	// TypeInvalid is the zero value and never valid on a built entry.
	TypeInvalid Type = iota
	TypeRecord
	TypeArray
	TypeString
	TypeBytes
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeBoolean
	TypeDatetime
)

var typeNames = [...]string{
	TypeInvalid:  "INVALID",
	TypeRecord:   "RECORD",
	TypeArray:    "ARRAY",
	TypeString:   "STRING",
	TypeBytes:    "BYTES",
	TypeInt:      "INT",
	TypeLong:     "LONG",
	TypeFloat:    "FLOAT",
	TypeDouble:   "DOUBLE",
	TypeBoolean:  "BOOLEAN",
	TypeDatetime: "DATETIME",
}

// Types lists every valid type in declaration order.
var Types = []Type{
	TypeRecord, TypeArray, TypeString, TypeBytes, TypeInt,
	TypeLong, TypeFloat, TypeDouble, TypeBoolean, TypeDatetime,
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// Valid reports whether t is one of the declared types.
func (t Type) Valid() bool {
	return t > TypeInvalid && t <= TypeDatetime
}

// IsNested reports whether entries of this type carry an element schema.
func (t Type) IsNested() bool {
	return t == TypeRecord || t == TypeArray
}

// ParseType resolves a type name, ignoring case.
func ParseType(name string) (Type, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, t := range Types {
		if typeNames[t] == upper {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("unknown type %q", name)
}

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot encode %s", t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsCompatible reports whether value may be stored under an entry of type t.
//
// Nil, including typed nil pointers and slices, is compatible with every
// type. Otherwise the Go type must match exactly:
//
//	RECORD    *Record
//	ARRAY     any slice other than []byte
//	STRING    string
//	BYTES     []byte or [N]byte
//	INT       int32
//	LONG      int64
//	FLOAT     float32
//	DOUBLE    float64
//	BOOLEAN   bool
//	DATETIME  int64 epoch millis, time.Time, *time.Time
func (t Type) IsCompatible(value any) bool {
	if isNil(value) {
		return true
	}
	switch t {
	case TypeRecord:
		_, ok := value.(*Record)
		return ok
	case TypeArray:
		rt := reflect.TypeOf(value)
		return rt.Kind() == reflect.Slice && rt.Elem().Kind() != reflect.Uint8
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBytes:
		if _, ok := value.([]byte); ok {
			return true
		}
		rt := reflect.TypeOf(value)
		return rt.Kind() == reflect.Array && rt.Elem().Kind() == reflect.Uint8
	case TypeInt:
		_, ok := value.(int32)
		return ok
	case TypeLong:
		_, ok := value.(int64)
		return ok
	case TypeFloat:
		_, ok := value.(float32)
		return ok
	case TypeDouble:
		_, ok := value.(float64)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeDatetime:
		switch value.(type) {
		case int64, time.Time, *time.Time:
			return true
		}
		return false
	default:
		return false
	}
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
