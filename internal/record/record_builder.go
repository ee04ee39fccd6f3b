package record

import (
	"maps"
	"reflect"
	"slices"
	"time"
)

// RecordBuilder assembles a Record.
//
// A builder created with a schema is strict: names must exist, setters
// must match the declared type and nil is only accepted on nullable
// entries. A builder created without a schema infers one: every setter
// declares a nullable entry of the setter's type, appended in call order.
//
// As with SchemaBuilder, the first failure is latched and returned by
// Build. Builders are not safe for concurrent use.
type RecordBuilder struct {
	schema  *Schema // nil when inferring
	entries []*Entry
	index   map[string]int
	values  map[string]any
	changed bool
	err     error
}

// NewRecordBuilder returns a strict builder for schema, or an inferring
// builder when schema is nil.
func NewRecordBuilder(schema *Schema) *RecordBuilder {
	b := &RecordBuilder{
		schema: schema,
		values: make(map[string]any),
	}
	if schema != nil {
		b.entries = slices.Clone(schema.entries)
		b.index = maps.Clone(schema.index)
	} else {
		b.index = make(map[string]int)
	}
	return b
}

// NewInferredRecordBuilder returns a builder that infers its schema.
func NewInferredRecordBuilder() *RecordBuilder {
	return NewRecordBuilder(nil)
}

// Inferred reports whether the builder grows its own schema.
func (b *RecordBuilder) Inferred() bool { return b.schema == nil }

func (b *RecordBuilder) WithString(name string, value string) *RecordBuilder {
	return b.set(name, TypeString, value)
}

func (b *RecordBuilder) WithInt(name string, value int32) *RecordBuilder {
	return b.set(name, TypeInt, value)
}

func (b *RecordBuilder) WithLong(name string, value int64) *RecordBuilder {
	return b.set(name, TypeLong, value)
}

func (b *RecordBuilder) WithFloat(name string, value float32) *RecordBuilder {
	return b.set(name, TypeFloat, value)
}

func (b *RecordBuilder) WithDouble(name string, value float64) *RecordBuilder {
	return b.set(name, TypeDouble, value)
}

func (b *RecordBuilder) WithBoolean(name string, value bool) *RecordBuilder {
	return b.set(name, TypeBoolean, value)
}

// WithBytes stores value as is; a nil slice counts as null.
func (b *RecordBuilder) WithBytes(name string, value []byte) *RecordBuilder {
	return b.set(name, TypeBytes, value)
}

// WithDateTime stores value as epoch milliseconds.
func (b *RecordBuilder) WithDateTime(name string, value time.Time) *RecordBuilder {
	return b.set(name, TypeDatetime, value)
}

// WithTimestamp stores epoch milliseconds under a DATETIME entry.
func (b *RecordBuilder) WithTimestamp(name string, epochMillis int64) *RecordBuilder {
	return b.set(name, TypeDatetime, epochMillis)
}

// emptyRecordSchema shapes an inferred RECORD entry first seen with a nil
// value.
var emptyRecordSchema = NewSchemaBuilder(TypeRecord).MustBuild()

// WithRecord stores a nested record. When inferring, the entry's element
// schema is the nested record's schema.
func (b *RecordBuilder) WithRecord(name string, value *Record) *RecordBuilder {
	if b.err != nil {
		return b
	}
	if b.schema == nil {
		elem := emptyRecordSchema
		if value != nil {
			elem = value.schema
		} else if existing, ok := b.lookup(name); ok && existing.typ == TypeRecord {
			elem = existing.elementSchema
		}
		e, err := NewEntryBuilder().
			WithName(name).
			WithType(TypeRecord).
			WithNullable(true).
			WithElementSchema(elem).
			Build()
		if err != nil {
			return b.fail(err)
		}
		return b.declare(e).store(e, value)
	}
	return b.set(name, TypeRecord, value)
}

// WithArray stores values, any slice, under entry. Elements are checked
// against the type of the entry's element schema. When inferring, entry
// is declared as given.
func (b *RecordBuilder) WithArray(entry *Entry, values any) *RecordBuilder {
	if b.err != nil {
		return b
	}
	if entry == nil {
		return b.fail(newError(CodeInvalidEntry, "", "nil entry"))
	}
	if entry.typ != TypeArray {
		return b.fail(newError(CodeTypeMismatch, entry.name, "array setter used on %s entry", entry.typ))
	}
	return b.With(entry, values)
}

// With stores value under entry after checking it against the entry's
// declared type. In strict mode the schema's own definition of the entry
// name is used; when inferring, entry is declared as given.
func (b *RecordBuilder) With(entry *Entry, value any) *RecordBuilder {
	if b.err != nil {
		return b
	}
	if entry == nil {
		return b.fail(newError(CodeInvalidEntry, "", "nil entry"))
	}
	if b.schema == nil {
		return b.declare(entry).store(entry, value)
	}
	e, ok := b.lookup(entry.name)
	if !ok {
		return b.fail(newError(CodeUnknownEntry, entry.name, "no entry %q in schema", entry.name))
	}
	return b.store(e, value)
}

// WithNull clears the value of a nullable entry.
func (b *RecordBuilder) WithNull(name string) *RecordBuilder {
	if b.err != nil {
		return b
	}
	e, ok := b.lookup(name)
	if !ok {
		return b.fail(newError(CodeUnknownEntry, name, "no entry %q", name))
	}
	return b.store(e, nil)
}

// RemoveEntry drops entry and its value from the record being built.
func (b *RecordBuilder) RemoveEntry(entry *Entry) *RecordBuilder {
	if b.err != nil {
		return b
	}
	if entry == nil {
		return b.fail(newError(CodeInvalidEntry, "", "nil entry"))
	}
	i, ok := b.index[entry.name]
	if !ok {
		return b.fail(newError(CodeUnknownEntry, entry.name, "no entry %q", entry.name))
	}
	b.entries = slices.Delete(b.entries, i, i+1)
	delete(b.values, entry.name)
	b.reindex()
	b.changed = true
	return b
}

// UpdateEntryByName replaces the entry called oldName with entry, in
// place. A value stored under oldName moves to the new entry and must be
// compatible with its type.
func (b *RecordBuilder) UpdateEntryByName(oldName string, entry *Entry) *RecordBuilder {
	if b.err != nil {
		return b
	}
	if entry == nil {
		return b.fail(newError(CodeInvalidEntry, "", "nil entry"))
	}
	i, ok := b.index[oldName]
	if !ok {
		return b.fail(newError(CodeUnknownEntry, oldName, "no entry %q", oldName))
	}
	if j, clash := b.index[entry.name]; clash && j != i {
		return b.fail(newError(CodeDuplicateEntryName, entry.name, "entry %q already exists", entry.name))
	}

	value, hasValue := b.values[oldName]
	if hasValue {
		normalized, err := normalize(entry.name, entry.typ, entry.elementSchema, value)
		if err != nil {
			return b.fail(err)
		}
		value = normalized
	}

	b.entries[i] = entry
	delete(b.values, oldName)
	if hasValue {
		b.values[entry.name] = value
	}
	b.reindex()
	b.changed = true
	return b
}

// CurrentEntries returns the entries of the record being built, in
// positional order.
func (b *RecordBuilder) CurrentEntries() []*Entry {
	return slices.Clone(b.entries)
}

// Value returns the value currently stored under name.
func (b *RecordBuilder) Value(name string) (any, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Err returns the latched error, if any.
func (b *RecordBuilder) Err() error { return b.err }

// Build checks every entry and returns the record. Non-nullable entries
// must have a value; seeded values must still fit their entry.
func (b *RecordBuilder) Build() (*Record, error) {
	if b.err != nil {
		return nil, b.err
	}

	values := make(map[string]any, len(b.values))
	for _, e := range b.entries {
		v, ok := b.values[e.name]
		if !ok {
			if !e.nullable {
				return nil, newError(CodeMissingRequiredValue, e.name, "no value for non-nullable entry %q", e.name)
			}
			continue
		}
		normalized, err := normalize(e.name, e.typ, e.elementSchema, v)
		if err != nil {
			return nil, err
		}
		values[e.name] = normalized
	}

	schema := b.schema
	if schema == nil || b.changed {
		sb := NewSchemaBuilder(TypeRecord)
		if b.schema != nil {
			sb.WithProps(b.schema.props)
		}
		for _, e := range b.entries {
			sb.WithEntry(e)
		}
		s, err := sb.Build()
		if err != nil {
			return nil, err
		}
		schema = s
	}

	return &Record{schema: schema, values: values}, nil
}

// MustBuild is like Build but panics on error.
// Use only in tests or when inputs are known to be valid.
func (b *RecordBuilder) MustBuild() *Record {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}

func (b *RecordBuilder) set(name string, t Type, value any) *RecordBuilder {
	if b.err != nil {
		return b
	}
	if b.schema == nil {
		e, err := NewEntryBuilder().WithName(name).WithType(t).WithNullable(true).Build()
		if err != nil {
			return b.fail(err)
		}
		return b.declare(e).store(e, value)
	}
	e, ok := b.lookup(name)
	if !ok {
		return b.fail(newError(CodeUnknownEntry, name, "no entry %q in schema", name))
	}
	if e.typ != t {
		return b.fail(newError(CodeTypeMismatch, e.name, "%s setter used on %s entry", t, e.typ))
	}
	return b.store(e, value)
}

// declare adds e to an inferred schema. An entry of the same name is
// replaced in place when its definition differs.
func (b *RecordBuilder) declare(e *Entry) *RecordBuilder {
	if i, ok := b.index[e.name]; ok {
		if !b.entries[i].Equal(e) {
			b.entries[i] = e
		}
		return b
	}
	b.index[e.name] = len(b.entries)
	b.entries = append(b.entries, e)
	return b
}

func (b *RecordBuilder) store(e *Entry, value any) *RecordBuilder {
	if b.err != nil {
		return b
	}
	if isNil(value) {
		if !e.nullable {
			return b.fail(newError(CodeNonNullableViolation, e.name, "entry %q is not nullable", e.name))
		}
		delete(b.values, e.name)
		return b
	}
	normalized, err := normalize(e.name, e.typ, e.elementSchema, value)
	if err != nil {
		return b.fail(err)
	}
	b.values[e.name] = normalized
	return b
}

func (b *RecordBuilder) lookup(name string) (*Entry, bool) {
	if i, ok := b.index[name]; ok {
		return b.entries[i], true
	}
	if i, ok := b.index[Sanitize(name)]; ok {
		return b.entries[i], true
	}
	return nil, false
}

func (b *RecordBuilder) reindex() {
	b.index = make(map[string]int, len(b.entries))
	for i, e := range b.entries {
		b.index[e.name] = i
	}
}

func (b *RecordBuilder) fail(err error) *RecordBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// normalize checks value against t and converts it to its stored form.
// Nil values pass through unchanged.
func normalize(name string, t Type, elem *Schema, value any) (any, error) {
	if isNil(value) {
		return nil, nil
	}
	if !t.IsCompatible(value) {
		return nil, newError(CodeTypeMismatch, name, "%T is not compatible with %s", value, t)
	}
	switch t {
	case TypeDatetime:
		switch v := value.(type) {
		case time.Time:
			return v.UnixMilli(), nil
		case *time.Time:
			return v.UnixMilli(), nil
		}
		return value, nil
	case TypeBytes:
		if v, ok := value.([]byte); ok {
			return slices.Clone(v), nil
		}
		rv := reflect.ValueOf(value)
		out := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(out), rv)
		return out, nil
	case TypeArray:
		return normalizeArray(name, elem, value)
	}
	return value, nil
}

func normalizeArray(name string, elem *Schema, value any) ([]any, error) {
	if elem == nil {
		return nil, newError(CodeInvalidEntry, name, "array entry has no element schema")
	}
	rv := reflect.ValueOf(value)
	out := make([]any, rv.Len())
	for i := range out {
		item := rv.Index(i).Interface()
		normalized, err := normalize(name, elem.typ, elem.elementSchema, item)
		if err != nil {
			return nil, err
		}
		out[i] = normalized
	}
	return out, nil
}
