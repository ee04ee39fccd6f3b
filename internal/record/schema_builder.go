package record

import (
	"slices"
)

// SchemaBuilder assembles a Schema.
//
// The first failing call is latched: Err reports it, every later call is a
// no-op and Build returns it.
type SchemaBuilder struct {
	typ           Type
	elementSchema *Schema
	entries       []*Entry
	props         Props
	err           error
}

// NewSchemaBuilder returns an empty builder for a schema of type t.
func NewSchemaBuilder(t Type) *SchemaBuilder {
	return &SchemaBuilder{typ: t}
}

func (b *SchemaBuilder) WithType(t Type) *SchemaBuilder {
	if b.err == nil {
		b.typ = t
	}
	return b
}

func (b *SchemaBuilder) WithElementSchema(schema *Schema) *SchemaBuilder {
	if b.err == nil {
		b.elementSchema = schema
	}
	return b
}

// WithEntry appends e at the end of the positional order.
func (b *SchemaBuilder) WithEntry(e *Entry) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if e == nil {
		b.err = newError(CodeInvalidEntry, "", "nil entry")
		return b
	}
	b.entries = append(b.entries, e)
	return b
}

// WithEntryBefore inserts e immediately before the entry named anchor.
func (b *SchemaBuilder) WithEntryBefore(anchor string, e *Entry) *SchemaBuilder {
	return b.insert(anchor, e, 0)
}

// WithEntryAfter inserts e immediately after the entry named anchor.
func (b *SchemaBuilder) WithEntryAfter(anchor string, e *Entry) *SchemaBuilder {
	return b.insert(anchor, e, 1)
}

func (b *SchemaBuilder) insert(anchor string, e *Entry, offset int) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if e == nil {
		b.err = newError(CodeInvalidEntry, "", "nil entry")
		return b
	}
	i := b.position(anchor)
	if i < 0 {
		b.err = newError(CodeAnchorNotFound, anchor, "anchor %q not found", anchor)
		return b
	}
	b.entries = slices.Insert(b.entries, i+offset, e)
	return b
}

// Remove deletes the entry called name.
func (b *SchemaBuilder) Remove(name string) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	i := b.position(name)
	if i < 0 {
		b.err = newError(CodeEntryNotFound, name, "entry %q not found", name)
		return b
	}
	b.entries = slices.Delete(b.entries, i, i+1)
	return b
}

// WithProp sets one schema property, overwriting any previous value.
func (b *SchemaBuilder) WithProp(key, value string) *SchemaBuilder {
	if b.err == nil {
		b.props = b.props.With(key, value)
	}
	return b
}

// WithProps merges props key by key.
func (b *SchemaBuilder) WithProps(props Props) *SchemaBuilder {
	if b.err == nil {
		b.props = b.props.Merge(props)
	}
	return b
}

// Err returns the latched error, if any.
func (b *SchemaBuilder) Err() error { return b.err }

func (b *SchemaBuilder) position(name string) int {
	return slices.IndexFunc(b.entries, func(e *Entry) bool { return e.name == name })
}

// Build returns the schema, or the first error met while building it.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.typ.Valid() {
		return nil, newError(CodeInvalidEntry, "", "invalid schema type %s", b.typ)
	}
	index := make(map[string]int, len(b.entries))
	for i, e := range b.entries {
		if _, dup := index[e.name]; dup {
			return nil, newError(CodeDuplicateEntryName, e.name, "entry %q declared twice", e.name)
		}
		index[e.name] = i
	}
	return &Schema{
		typ:           b.typ,
		entries:       slices.Clone(b.entries),
		index:         index,
		elementSchema: b.elementSchema,
		props:         b.props,
	}, nil
}

// MustBuild is like Build but panics on error.
// Use only in tests or when inputs are known to be valid.
func (b *SchemaBuilder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
