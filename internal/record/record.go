package record

import (
	"fmt"
	"slices"
	"time"
)

// Record is an immutable set of values conforming to a Schema.
//
// Values are stored normalized: DATETIME as int64 epoch milliseconds,
// BYTES as []byte, ARRAY as []any. Absent and nil values are the same
// thing; neither is stored.
type Record struct {
	schema *Schema
	values map[string]any
}

// Schema returns the schema the record was built against.
func (r *Record) Schema() *Schema { return r.schema }

// Get returns a copy of the value under name. Names that are not exact
// matches are retried in sanitized form.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	if !ok {
		v, ok = r.values[Sanitize(name)]
	}
	return cloneValue(v), ok
}

// Values returns a copy of the value map.
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the mutable stored forms, byte slices and arrays.
// Nested records are immutable and shared.
func cloneValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return slices.Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}

func (r *Record) GetString(name string) (string, bool)   { return getAs[string](r, name) }
func (r *Record) GetInt(name string) (int32, bool)       { return getAs[int32](r, name) }
func (r *Record) GetLong(name string) (int64, bool)      { return getAs[int64](r, name) }
func (r *Record) GetFloat(name string) (float32, bool)   { return getAs[float32](r, name) }
func (r *Record) GetDouble(name string) (float64, bool)  { return getAs[float64](r, name) }
func (r *Record) GetBoolean(name string) (bool, bool)    { return getAs[bool](r, name) }
func (r *Record) GetBytes(name string) ([]byte, bool)    { return getAs[[]byte](r, name) }
func (r *Record) GetRecord(name string) (*Record, bool)  { return getAs[*Record](r, name) }
func (r *Record) GetArray(name string) ([]any, bool)     { return getAs[[]any](r, name) }
func (r *Record) GetTimestamp(name string) (int64, bool) { return getAs[int64](r, name) }

// GetDateTime returns a DATETIME value as a UTC time.
func (r *Record) GetDateTime(name string) (time.Time, bool) {
	ms, ok := getAs[int64](r, name)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// ArrayOf returns an ARRAY value with every element asserted to T.
// It reports false when any non-nil element has another type.
func ArrayOf[T any](r *Record, name string) ([]T, bool) {
	values, ok := r.GetArray(name)
	if !ok {
		return nil, false
	}
	out := make([]T, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		t, ok := v.(T)
		if !ok {
			return nil, false
		}
		out[i] = t
	}
	return out, true
}

func getAs[T any](r *Record, name string) (T, bool) {
	var zero T
	v, ok := r.Get(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// WithNewSchema returns a strict builder for schema, seeded with every
// value whose entry name exists in both schemas. Values are not coerced;
// Build rejects retained values that no longer fit their entry.
func (r *Record) WithNewSchema(schema *Schema) *RecordBuilder {
	if schema == nil {
		return NewRecordBuilder(nil).fail(newError(CodeInvalidEntry, "", "nil schema"))
	}
	b := NewRecordBuilder(schema)
	for _, e := range schema.entries {
		if v, ok := r.values[e.name]; ok {
			b.values[e.name] = v
		}
	}
	return b
}

// ToBuilder returns a strict builder for the record's own schema, seeded
// with all of its values.
func (r *Record) ToBuilder() *RecordBuilder {
	return r.WithNewSchema(r.schema)
}

// String renders the record as a JSON object in positional order.
func (r *Record) String() string {
	data, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Record(<%v>)", err)
	}
	return string(data)
}
