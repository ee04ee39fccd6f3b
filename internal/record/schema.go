package record

import (
	"slices"

	"github.com/tidwall/gjson"
)

// Schema is an immutable description of a record's shape.
//
// Entries keep one positional order shared by data and metadata entries.
// Entries and Metadata are filtered views over that order.
type Schema struct {
	typ           Type
	entries       []*Entry
	index         map[string]int
	elementSchema *Schema
	props         Props
}

func (s *Schema) Type() Type             { return s.typ }
func (s *Schema) ElementSchema() *Schema { return s.elementSchema }
func (s *Schema) Props() Props           { return s.props }

// Prop returns a single schema property.
func (s *Schema) Prop(key string) (string, bool) { return s.props.Get(key) }

// JSONProp returns a schema property parsed as JSON.
func (s *Schema) JSONProp(key string) (gjson.Result, bool) { return s.props.JSON(key) }

// Entries returns the data entries in positional order.
func (s *Schema) Entries() []*Entry {
	return s.filter(false)
}

// Metadata returns the metadata entries in positional order.
func (s *Schema) Metadata() []*Entry {
	return s.filter(true)
}

// AllEntries returns every entry in positional order.
func (s *Schema) AllEntries() []*Entry {
	return slices.Clone(s.entries)
}

// Len returns the number of entries, metadata included.
func (s *Schema) Len() int { return len(s.entries) }

// Entry looks up an entry by its exact name.
func (s *Schema) Entry(name string) (*Entry, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.entries[i], true
}

func (s *Schema) filter(metadata bool) []*Entry {
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.metadata == metadata {
			out = append(out, e)
		}
	}
	return out
}

// ToBuilder returns a builder seeded with a copy of the positional order
// and the props. Entries themselves are shared.
func (s *Schema) ToBuilder() *SchemaBuilder {
	return &SchemaBuilder{
		typ:           s.typ,
		elementSchema: s.elementSchema,
		entries:       slices.Clone(s.entries),
		props:         s.props,
	}
}

// Equal reports structural equality: type, element schema, props and the
// set of entries. Positional order does not take part.
func (s *Schema) Equal(other *Schema) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	if s.typ != other.typ || len(s.entries) != len(other.entries) {
		return false
	}
	if !s.props.Equal(other.props) || !s.elementSchema.Equal(other.elementSchema) {
		return false
	}
	for _, e := range s.entries {
		oe, ok := other.Entry(e.name)
		if !ok || !e.Equal(oe) {
			return false
		}
	}
	return true
}
