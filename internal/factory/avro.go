package factory

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/linkedin/goavro/v2"

	"github.com/roach88/recordkit/internal/record"
)

// PropAvroName overrides the Avro name of a RECORD schema.
// PropAvroNamespace sets the namespace of the top-level Avro record.
const (
	PropAvroName      = "avro.name"
	PropAvroNamespace = "avro.namespace"
)

const defaultAvroName = "Record"

const timestampMillis = "timestamp-millis"

// avroBackend writes Avro object container files. Codecs are cached by
// Avro schema text.
type avroBackend struct {
	codecs *lru.Cache[string, *goavro.Codec]
}

func newAvroBackend(size int) (*avroBackend, error) {
	if size <= 0 {
		size = DefaultCodecCacheSize
	}
	cache, err := lru.New[string, *goavro.Codec](size)
	if err != nil {
		return nil, fmt.Errorf("avro: codec cache: %w", err)
	}
	return &avroBackend{codecs: cache}, nil
}

func (a *avroBackend) Name() BackendKind { return BackendAvro }

func (a *avroBackend) Check(s *record.Schema) error {
	_, err := a.codec(s)
	return err
}

func (a *avroBackend) codec(s *record.Schema) (*goavro.Codec, error) {
	if err := checkTopLevel(BackendAvro, s); err != nil {
		return nil, err
	}
	// Keyed by the rendered Avro schema, not the record fingerprint: equal
	// schemas can still name their nested records differently.
	schemaJSON, err := AvroSchema(s)
	if err != nil {
		return nil, err
	}
	if c, ok := a.codecs.Get(schemaJSON); ok {
		return c, nil
	}
	c, err := goavro.NewCodec(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("avro: %w: %v", ErrUnsupported, err)
	}
	a.codecs.Add(schemaJSON, c)
	return c, nil
}

func (a *avroBackend) Encode(w io.Writer, s *record.Schema, records []*record.Record) error {
	codec, err := a.codec(s)
	if err != nil {
		return err
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{W: w, Codec: codec})
	if err != nil {
		return fmt.Errorf("avro: open container: %w", err)
	}
	names := newAvroNames(s)
	batch := make([]any, 0, len(records))
	for i, r := range records {
		native, err := names.recordNative(s, r)
		if err != nil {
			return fmt.Errorf("avro: record %d: %w", i, err)
		}
		batch = append(batch, native)
	}
	if err := ocf.Append(batch); err != nil {
		return fmt.Errorf("avro: append: %w", err)
	}
	return nil
}

func (a *avroBackend) Decode(r io.Reader, s *record.Schema) ([]*record.Record, error) {
	if err := checkTopLevel(BackendAvro, s); err != nil {
		return nil, err
	}
	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, fmt.Errorf("avro: open container: %w", err)
	}
	var out []*record.Record
	for ocf.Scan() {
		datum, err := ocf.Read()
		if err != nil {
			return nil, fmt.Errorf("avro: read: %w", err)
		}
		rec, err := recordFromNative(s, datum)
		if err != nil {
			return nil, fmt.Errorf("avro: record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
	if err := ocf.Err(); err != nil {
		return nil, fmt.Errorf("avro: read: %w", err)
	}
	return out, nil
}

// AvroSchema renders s as an Avro schema. Nullable entries become
// ["null", T] unions defaulting to null, DATETIME becomes a
// timestamp-millis long and nested records are named after their path.
func AvroSchema(s *record.Schema) (string, error) {
	if err := checkTopLevel(BackendAvro, s); err != nil {
		return "", err
	}
	data, err := json.Marshal(newAvroNames(s).schema)
	if err != nil {
		return "", fmt.Errorf("avro: %w", err)
	}
	return string(data), nil
}

// avroNames assigns a unique Avro name to every RECORD schema reachable
// from the top-level one. The same *Schema always gets the same name.
type avroNames struct {
	namespace string
	byShape   map[*record.Schema]string
	used      map[string]bool
	schema    map[string]any
}

func newAvroNames(s *record.Schema) *avroNames {
	top := defaultAvroName
	if n, ok := s.Prop(PropAvroName); ok && n != "" {
		top = record.Sanitize(n)
	}
	ns, _ := s.Prop(PropAvroNamespace)
	n := &avroNames{
		namespace: ns,
		byShape:   map[*record.Schema]string{s: top},
		used:      map[string]bool{top: true},
	}
	n.schema = n.recordSchema(s, top)
	if ns != "" {
		n.schema["namespace"] = ns
	}
	return n
}

func (n *avroNames) nameFor(shape *record.Schema, path string) string {
	if name, ok := n.byShape[shape]; ok {
		return name
	}
	name := path
	if custom, ok := shape.Prop(PropAvroName); ok && custom != "" {
		name = record.Sanitize(custom)
	}
	base := name
	for i := 2; n.used[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	n.used[name] = true
	n.byShape[shape] = name
	return name
}

// fullName is the name goavro uses for a named type inside a union.
func (n *avroNames) fullName(name string) string {
	if n.namespace == "" {
		return name
	}
	return n.namespace + "." + name
}

func (n *avroNames) recordSchema(s *record.Schema, name string) map[string]any {
	fields := make([]any, 0, s.Len())
	for _, e := range s.AllEntries() {
		f := map[string]any{"name": e.Name()}
		t := n.typeSchema(e.Type(), e.ElementSchema(), name+"_"+e.Name())
		if e.Nullable() {
			f["type"] = []any{"null", t}
			f["default"] = nil
		} else {
			f["type"] = t
			if def, ok := avroDefault(e); ok {
				f["default"] = def
			}
		}
		if c := e.Comment(); c != "" {
			f["doc"] = c
		}
		fields = append(fields, f)
	}
	return map[string]any{
		"type":   "record",
		"name":   name,
		"fields": fields,
	}
}

// typeSchema returns the Avro schema of a value of type t. A named record
// is defined on first use and referenced by name afterwards.
func (n *avroNames) typeSchema(t record.Type, shape *record.Schema, path string) any {
	switch t {
	case record.TypeRecord:
		if name, ok := n.byShape[shape]; ok {
			return n.fullName(name)
		}
		return n.recordSchema(shape, n.nameFor(shape, path))
	case record.TypeArray:
		return map[string]any{
			"type":  "array",
			"items": n.typeSchema(shape.Type(), itemShape(shape), path+"_item"),
		}
	case record.TypeDatetime:
		return map[string]any{"type": "long", "logicalType": timestampMillis}
	default:
		return avroPrimitive(t)
	}
}

func avroPrimitive(t record.Type) string {
	switch t {
	case record.TypeString:
		return "string"
	case record.TypeBytes:
		return "bytes"
	case record.TypeInt:
		return "int"
	case record.TypeLong:
		return "long"
	case record.TypeFloat:
		return "float"
	case record.TypeDouble:
		return "double"
	case record.TypeBoolean:
		return "boolean"
	}
	return "null"
}

// avroDefault returns the JSON default of a non-nullable scalar entry.
func avroDefault(e *record.Entry) (any, bool) {
	def := e.DefaultValue()
	if def == nil || !e.Type().IsCompatible(def) {
		return nil, false
	}
	switch e.Type() {
	case record.TypeString, record.TypeInt, record.TypeLong, record.TypeFloat,
		record.TypeDouble, record.TypeBoolean:
		return def, true
	case record.TypeDatetime:
		if ms, ok := def.(int64); ok {
			return ms, true
		}
	}
	return nil, false
}

// unionBranch is the goavro union key of a non-null value of type t.
func (n *avroNames) unionBranch(t record.Type, shape *record.Schema) string {
	switch t {
	case record.TypeRecord:
		return n.fullName(n.byShape[shape])
	case record.TypeArray:
		return "array"
	case record.TypeDatetime:
		return "long." + timestampMillis
	default:
		return avroPrimitive(t)
	}
}

func (n *avroNames) recordNative(s *record.Schema, r *record.Record) (map[string]any, error) {
	out := make(map[string]any, s.Len())
	for _, e := range s.AllEntries() {
		v, ok := r.Get(e.Name())
		if !ok || v == nil {
			if !e.Nullable() {
				return nil, fmt.Errorf("entry %q: missing value", e.Name())
			}
			out[e.Name()] = nil
			continue
		}
		native, err := n.valueNative(e.Type(), e.ElementSchema(), v)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Name(), err)
		}
		if e.Nullable() {
			native = goavro.Union(n.unionBranch(e.Type(), e.ElementSchema()), native)
		}
		out[e.Name()] = native
	}
	return out, nil
}

func (n *avroNames) valueNative(t record.Type, shape *record.Schema, v any) (any, error) {
	switch t {
	case record.TypeDatetime:
		ms, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("datetime stored as %T", v)
		}
		return time.UnixMilli(ms).UTC(), nil
	case record.TypeRecord:
		nested, ok := v.(*record.Record)
		if !ok {
			return nil, fmt.Errorf("record stored as %T", v)
		}
		return n.recordNative(shape, nested)
	case record.TypeArray:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("array stored as %T", v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			if item == nil {
				return nil, fmt.Errorf("item %d: null array items are not supported", i)
			}
			native, err := n.valueNative(shape.Type(), itemShape(shape), item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = native
		}
		return out, nil
	}
	return v, nil
}

// recordFromNative converts a goavro native record back into a Record.
func recordFromNative(s *record.Schema, datum any) (*record.Record, error) {
	m, ok := datum.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected record, got %T", datum)
	}
	b := record.NewRecordBuilder(s)
	for _, e := range s.AllEntries() {
		raw, ok := m[e.Name()]
		if !ok || raw == nil {
			continue
		}
		if e.Nullable() {
			raw = unwrapUnion(raw)
		}
		v, err := valueFromNative(e.Type(), e.ElementSchema(), raw)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Name(), err)
		}
		b.With(e, v)
	}
	return b.Build()
}

func unwrapUnion(v any) any {
	if m, ok := v.(map[string]any); ok && len(m) == 1 {
		for _, inner := range m {
			return inner
		}
	}
	return v
}

func valueFromNative(t record.Type, shape *record.Schema, v any) (any, error) {
	switch t {
	case record.TypeRecord:
		return recordFromNative(shape, v)
	case record.TypeArray:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			converted, err := valueFromNative(shape.Type(), itemShape(shape), item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = converted
		}
		return out, nil
	}
	return v, nil
}
