package record

import (
	"github.com/tidwall/gjson"
)

// Entry describes one field of a schema.
type Entry struct {
	name          string
	rawName       string
	typ           Type
	nullable      bool
	metadata      bool
	defaultValue  any
	elementSchema *Schema
	comment       string
	props         Props
}

// Name is the sanitized identifier, unique within a schema.
func (e *Entry) Name() string { return e.name }

// RawName is the label the name was derived from, empty when the label
// was already a valid identifier.
func (e *Entry) RawName() string { return e.rawName }

// OriginalFieldName returns RawName when set, Name otherwise.
func (e *Entry) OriginalFieldName() string {
	if e.rawName != "" {
		return e.rawName
	}
	return e.name
}

func (e *Entry) Type() Type             { return e.typ }
func (e *Entry) Nullable() bool         { return e.nullable }
func (e *Entry) Metadata() bool         { return e.metadata }
func (e *Entry) DefaultValue() any      { return e.defaultValue }
func (e *Entry) ElementSchema() *Schema { return e.elementSchema }
func (e *Entry) Comment() string        { return e.comment }
func (e *Entry) Props() Props           { return e.props }

// Prop returns a single property.
func (e *Entry) Prop(key string) (string, bool) { return e.props.Get(key) }

// JSONProp returns a property parsed as JSON.
func (e *Entry) JSONProp(key string) (gjson.Result, bool) { return e.props.JSON(key) }

// Equal compares name, raw name, type, nullability, metadata flag, comment
// and element schema. Default values and props do not take part.
func (e *Entry) Equal(other *Entry) bool {
	if e == other {
		return true
	}
	if e == nil || other == nil {
		return false
	}
	return e.name == other.name &&
		e.rawName == other.rawName &&
		e.typ == other.typ &&
		e.nullable == other.nullable &&
		e.metadata == other.metadata &&
		e.comment == other.comment &&
		e.elementSchema.Equal(other.elementSchema)
}

// ToBuilder returns a builder seeded with every attribute of e.
func (e *Entry) ToBuilder() *EntryBuilder {
	return &EntryBuilder{
		name:          e.name,
		rawName:       e.rawName,
		typ:           e.typ,
		nullable:      e.nullable,
		metadata:      e.metadata,
		defaultValue:  e.defaultValue,
		elementSchema: e.elementSchema,
		comment:       e.comment,
		props:         e.props,
	}
}

// EntryBuilder assembles an Entry.
type EntryBuilder struct {
	name          string
	rawName       string
	rawNameSet    bool
	typ           Type
	nullable      bool
	metadata      bool
	defaultValue  any
	elementSchema *Schema
	comment       string
	props         Props
}

// NewEntryBuilder returns an empty builder. Entries are non-nullable data
// entries unless configured otherwise.
func NewEntryBuilder() *EntryBuilder {
	return &EntryBuilder{}
}

// WithName sanitizes name. Unless WithRawName was called, the raw name
// follows the new name: name itself when sanitizing changed it, empty
// otherwise.
func (b *EntryBuilder) WithName(name string) *EntryBuilder {
	b.name = Sanitize(name)
	if !b.rawNameSet {
		b.rawName = ""
		if b.name != name {
			b.rawName = name
		}
	}
	return b
}

func (b *EntryBuilder) WithRawName(rawName string) *EntryBuilder {
	b.rawName = rawName
	b.rawNameSet = true
	return b
}

func (b *EntryBuilder) WithType(t Type) *EntryBuilder {
	b.typ = t
	return b
}

func (b *EntryBuilder) WithNullable(nullable bool) *EntryBuilder {
	b.nullable = nullable
	return b
}

func (b *EntryBuilder) WithMetadata(metadata bool) *EntryBuilder {
	b.metadata = metadata
	return b
}

func (b *EntryBuilder) WithDefaultValue(value any) *EntryBuilder {
	b.defaultValue = value
	return b
}

func (b *EntryBuilder) WithElementSchema(schema *Schema) *EntryBuilder {
	b.elementSchema = schema
	return b
}

func (b *EntryBuilder) WithComment(comment string) *EntryBuilder {
	b.comment = comment
	return b
}

// WithProp sets one property, overwriting any previous value.
func (b *EntryBuilder) WithProp(key, value string) *EntryBuilder {
	b.props = b.props.With(key, value)
	return b
}

// WithProps merges props key by key.
func (b *EntryBuilder) WithProps(props Props) *EntryBuilder {
	b.props = b.props.Merge(props)
	return b
}

// Build validates and returns the entry.
func (b *EntryBuilder) Build() (*Entry, error) {
	if b.name == "" {
		return nil, newError(CodeInvalidEntry, b.rawName, "entry name is required")
	}
	if !b.typ.Valid() {
		return nil, newError(CodeInvalidEntry, b.name, "invalid type %s", b.typ)
	}
	if b.typ.IsNested() && b.elementSchema == nil {
		return nil, newError(CodeInvalidEntry, b.name, "%s entry requires an element schema", b.typ)
	}
	if !b.typ.IsNested() && b.elementSchema != nil {
		return nil, newError(CodeInvalidEntry, b.name, "%s entry cannot have an element schema", b.typ)
	}
	def, err := b.normalizedDefault()
	if err != nil {
		return nil, err
	}
	return &Entry{
		name:          b.name,
		rawName:       b.rawName,
		typ:           b.typ,
		nullable:      b.nullable,
		metadata:      b.metadata,
		defaultValue:  def,
		elementSchema: b.elementSchema,
		comment:       b.comment,
		props:         b.props,
	}, nil
}

// normalizedDefault stores a fitting default in the same form record
// values take, so it survives the schema JSON encoding. A default that
// does not fit the type is kept as given for compiler.Validate to report.
// Record-shaped defaults have no JSON form and are rejected.
func (b *EntryBuilder) normalizedDefault() (any, error) {
	def := b.defaultValue
	if isNil(def) {
		return nil, nil
	}
	if b.typ == TypeRecord || (b.typ == TypeArray && b.elementSchema.typ == TypeRecord) {
		return nil, newError(CodeInvalidEntry, b.name, "%s entry cannot have a default value", b.typ)
	}
	if !b.typ.IsCompatible(def) {
		return def, nil
	}
	if n, err := normalize(b.name, b.typ, b.elementSchema, def); err == nil {
		return n, nil
	}
	return def, nil
}

// MustBuild is like Build but panics on error.
// Use only in tests or when inputs are known to be valid.
func (b *EntryBuilder) MustBuild() *Entry {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}
