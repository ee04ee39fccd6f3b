package record

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// DomainSchema prefixes schema fingerprints. The version suffix leaves
// room for a future encoding change.
const DomainSchema = "recordkit/schema/v1"

// DateTimeLayout is the rendering of DATETIME values in record JSON.
const DateTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint identifies the schema's JSON encoding. Two schemas with the
// same entries in a different order have different fingerprints.
func (s *Schema) Fingerprint() (string, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainSchema, data), nil
}

// MustFingerprint is like Fingerprint but panics on error.
func (s *Schema) MustFingerprint() string {
	fp, err := s.Fingerprint()
	if err != nil {
		panic(err)
	}
	return fp
}

type schemaJSON struct {
	Type          Type         `json:"type"`
	Entries       []*entryJSON `json:"entries,omitempty"`
	ElementSchema *schemaJSON  `json:"elementSchema,omitempty"`
	Props         *Props       `json:"props,omitempty"`
}

type entryJSON struct {
	Name          string      `json:"name"`
	RawName       string      `json:"rawName,omitempty"`
	Type          Type        `json:"type"`
	Nullable      bool        `json:"nullable"`
	Metadata      bool        `json:"metadata"`
	DefaultValue  any         `json:"defaultValue,omitempty"`
	Comment       string      `json:"comment,omitempty"`
	ElementSchema *schemaJSON `json:"elementSchema,omitempty"`
	Props         *Props      `json:"props,omitempty"`
}

func toSchemaJSON(s *Schema) *schemaJSON {
	if s == nil {
		return nil
	}
	out := &schemaJSON{
		Type:          s.typ,
		ElementSchema: toSchemaJSON(s.elementSchema),
		Props:         propsPtr(s.props),
	}
	for _, e := range s.entries {
		out.Entries = append(out.Entries, &entryJSON{
			Name:          e.name,
			RawName:       e.rawName,
			Type:          e.typ,
			Nullable:      e.nullable,
			Metadata:      e.metadata,
			DefaultValue:  e.defaultValue,
			Comment:       e.comment,
			ElementSchema: toSchemaJSON(e.elementSchema),
			Props:         propsPtr(e.props),
		})
	}
	return out
}

func propsPtr(p Props) *Props {
	if p.Len() == 0 {
		return nil
	}
	return &p
}

// MarshalJSON encodes the schema with entries in positional order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(toSchemaJSON(s))
}

// UnmarshalJSON replaces s with the decoded schema. It exists for
// decoding schemas embedded in larger documents; prefer ParseSchemaJSON.
func (s *Schema) UnmarshalJSON(data []byte) error {
	parsed, err := ParseSchemaJSON(data)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// ParseSchemaJSON decodes the encoding produced by Schema.MarshalJSON.
// Default values are converted to the Go type of their entry.
func ParseSchemaJSON(data []byte) (*Schema, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parse schema: invalid JSON")
	}
	return parseSchema(gjson.ParseBytes(data))
}

func parseSchema(r gjson.Result) (*Schema, error) {
	t, err := ParseType(r.Get("type").String())
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	b := NewSchemaBuilder(t).WithProps(propsFromJSON(r.Get("props")))
	if es := r.Get("elementSchema"); es.Exists() {
		elem, err := parseSchema(es)
		if err != nil {
			return nil, err
		}
		b.WithElementSchema(elem)
	}

	var entryErr error
	r.Get("entries").ForEach(func(_, er gjson.Result) bool {
		e, err := parseEntry(er)
		if err != nil {
			entryErr = err
			return false
		}
		b.WithEntry(e)
		return true
	})
	if entryErr != nil {
		return nil, entryErr
	}
	return b.Build()
}

func parseEntry(r gjson.Result) (*Entry, error) {
	t, err := ParseType(r.Get("type").String())
	if err != nil {
		return nil, fmt.Errorf("parse entry %q: %w", r.Get("name").String(), err)
	}
	b := NewEntryBuilder().
		WithRawName(r.Get("rawName").String()).
		WithName(r.Get("name").String()).
		WithType(t).
		WithNullable(r.Get("nullable").Bool()).
		WithMetadata(r.Get("metadata").Bool()).
		WithComment(r.Get("comment").String()).
		WithProps(propsFromJSON(r.Get("props")))
	var elem *Schema
	if es := r.Get("elementSchema"); es.Exists() {
		elem, err = parseSchema(es)
		if err != nil {
			return nil, err
		}
		b.WithElementSchema(elem)
	}
	if dv := r.Get("defaultValue"); dv.Exists() {
		def, err := defaultFromJSON(t, elem, dv)
		if err != nil {
			return nil, fmt.Errorf("parse entry %q: %w", r.Get("name").String(), err)
		}
		b.WithDefaultValue(def)
	}
	return b.Build()
}

// defaultFromJSON converts a default back to the stored form of t. A
// value of the wrong JSON kind is returned as decoded.
func defaultFromJSON(t Type, elem *Schema, r gjson.Result) (any, error) {
	switch {
	case t == TypeBytes && r.Type == gjson.String:
		data, err := base64.StdEncoding.DecodeString(r.String())
		if err != nil {
			return nil, fmt.Errorf("bytes default: %w", err)
		}
		return data, nil
	case t == TypeArray && elem != nil && r.IsArray():
		out := []any{}
		var itemErr error
		r.ForEach(func(_, item gjson.Result) bool {
			if item.Type == gjson.Null {
				out = append(out, nil)
				return true
			}
			v, err := defaultFromJSON(elem.typ, elem.elementSchema, item)
			if err != nil {
				itemErr = err
				return false
			}
			out = append(out, v)
			return true
		})
		return out, itemErr
	}
	if !jsonKindFits(t, r) {
		return r.Value(), nil
	}
	switch t {
	case TypeString:
		return r.String(), nil
	case TypeInt:
		return int32(r.Int()), nil
	case TypeLong, TypeDatetime:
		return r.Int(), nil
	case TypeFloat:
		return float32(r.Float()), nil
	case TypeDouble:
		return r.Float(), nil
	case TypeBoolean:
		return r.Bool(), nil
	}
	return r.Value(), nil
}

// jsonKindFits reports whether r has the JSON kind t is encoded with.
func jsonKindFits(t Type, r gjson.Result) bool {
	switch t {
	case TypeString:
		return r.Type == gjson.String
	case TypeInt, TypeLong, TypeDatetime, TypeFloat, TypeDouble:
		return r.Type == gjson.Number
	case TypeBoolean:
		return r.Type == gjson.True || r.Type == gjson.False
	}
	return false
}

// MarshalJSON renders the record as an object in positional order. Null
// values are omitted, nested records become objects, DATETIME values use
// DateTimeLayout in UTC and BYTES are base64.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Record) writeJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	first := true
	for _, e := range r.schema.entries {
		v, ok := r.values[e.name]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(e.name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := writeValueJSON(buf, e.typ, e.elementSchema, v); err != nil {
			return fmt.Errorf("entry %q: %w", e.name, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeValueJSON(buf *bytes.Buffer, t Type, elem *Schema, v any) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}
	switch t {
	case TypeRecord:
		return v.(*Record).writeJSON(buf)
	case TypeArray:
		buf.WriteByte('[')
		for i, item := range v.([]any) {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValueJSON(buf, elem.typ, elem.elementSchema, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case TypeDatetime:
		v = time.UnixMilli(v.(int64)).UTC().Format(DateTimeLayout)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}
