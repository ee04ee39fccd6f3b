package record

import (
	"bytes"
	"iter"
	"slices"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Props is an insertion-ordered string map attached to schemas and
// entries. The zero value is empty and ready to use. Props values are
// immutable; With returns a copy.
type Props struct {
	keys   []string
	values map[string]string
}

// PropsOf builds Props from alternating key/value pairs.
// A trailing key without a value is ignored.
func PropsOf(kv ...string) Props {
	var p Props
	for i := 0; i+1 < len(kv); i += 2 {
		p = p.With(kv[i], kv[i+1])
	}
	return p
}

// Get returns the value stored under key.
func (p Props) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Len returns the number of keys.
func (p Props) Len() int { return len(p.keys) }

// Keys returns the keys in insertion order.
func (p Props) Keys() []string { return slices.Clone(p.keys) }

// All iterates over key/value pairs in insertion order.
func (p Props) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range p.keys {
			if !yield(k, p.values[k]) {
				return
			}
		}
	}
}

// With returns a copy with key set to value. An existing key keeps its
// position.
func (p Props) With(key, value string) Props {
	out := Props{
		keys:   slices.Clone(p.keys),
		values: make(map[string]string, len(p.values)+1),
	}
	for k, v := range p.values {
		out.values[k] = v
	}
	if _, ok := out.values[key]; !ok {
		out.keys = append(out.keys, key)
	}
	out.values[key] = value
	return out
}

// Merge returns a copy with every pair of other applied in order.
func (p Props) Merge(other Props) Props {
	out := p
	for k, v := range other.All() {
		out = out.With(k, v)
	}
	return out
}

// Equal compares keys and values, ignoring order.
func (p Props) Equal(other Props) bool {
	if len(p.values) != len(other.values) {
		return false
	}
	for k, v := range p.values {
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// JSON returns the value under key parsed as JSON. Values that are not
// valid JSON are returned as a JSON string.
func (p Props) JSON(key string) (gjson.Result, bool) {
	v, ok := p.values[key]
	if !ok {
		return gjson.Result{}, false
	}
	if gjson.Valid(v) {
		return gjson.Parse(v), true
	}
	quoted, err := json.Marshal(v)
	if err != nil {
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(quoted), true
}

// MarshalJSON encodes the props as an object in insertion order.
func (p Props) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// propsFromJSON reads an object of string values, keeping document order.
// Non-string values are stored as their raw JSON text.
func propsFromJSON(r gjson.Result) Props {
	var p Props
	r.ForEach(func(k, v gjson.Result) bool {
		if v.Type == gjson.String {
			p = p.With(k.String(), v.String())
		} else {
			p = p.With(k.String(), v.Raw)
		}
		return true
	})
	return p
}
