package factory

import (
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/roach88/recordkit/internal/record"
)

// Field metadata keys written next to entry props.
const (
	MetaRawName  = "recordkit.raw_name"
	MetaComment  = "recordkit.comment"
	MetaMetadata = "recordkit.metadata"
)

// arrowBackend writes one Arrow IPC stream per Encode holding a single
// record batch.
type arrowBackend struct{}

func (arrowBackend) Name() BackendKind { return BackendArrow }

func (arrowBackend) Check(s *record.Schema) error {
	_, err := ArrowSchema(s)
	return err
}

func (arrowBackend) Encode(w io.Writer, s *record.Schema, records []*record.Record) error {
	schema, err := ArrowSchema(s)
	if err != nil {
		return err
	}

	bld := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bld.Release()

	entries := s.AllEntries()
	for i, r := range records {
		for j, e := range entries {
			v, _ := r.Get(e.Name())
			if err := appendArrow(bld.Field(j), e.Type(), e.ElementSchema(), v); err != nil {
				return fmt.Errorf("arrow: record %d entry %q: %w", i, e.Name(), err)
			}
		}
	}

	batch := bld.NewRecord()
	defer batch.Release()

	wr := ipc.NewWriter(w, ipc.WithSchema(schema))
	if err := wr.Write(batch); err != nil {
		wr.Close()
		return fmt.Errorf("arrow: write: %w", err)
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("arrow: close: %w", err)
	}
	return nil
}

// ArrowSchema maps s to an Arrow schema. Schema props become schema
// metadata; entry props, raw name, comment and the metadata flag become
// field metadata.
func ArrowSchema(s *record.Schema) (*arrow.Schema, error) {
	if err := checkTopLevel(BackendArrow, s); err != nil {
		return nil, err
	}
	fields, err := arrowFields(s)
	if err != nil {
		return nil, err
	}
	md := propsMetadata(s.Props(), nil, nil)
	return arrow.NewSchema(fields, &md), nil
}

func arrowFields(s *record.Schema) ([]arrow.Field, error) {
	fields := make([]arrow.Field, 0, s.Len())
	for _, e := range s.AllEntries() {
		dt, err := arrowType(e.Type(), e.ElementSchema())
		if err != nil {
			return nil, fmt.Errorf("arrow: entry %q: %w", e.Name(), err)
		}
		var keys, vals []string
		if raw := e.RawName(); raw != "" {
			keys, vals = append(keys, MetaRawName), append(vals, raw)
		}
		if c := e.Comment(); c != "" {
			keys, vals = append(keys, MetaComment), append(vals, c)
		}
		if e.Metadata() {
			keys, vals = append(keys, MetaMetadata), append(vals, strconv.FormatBool(true))
		}
		fields = append(fields, arrow.Field{
			Name:     e.Name(),
			Type:     dt,
			Nullable: e.Nullable(),
			Metadata: propsMetadata(e.Props(), keys, vals),
		})
	}
	return fields, nil
}

func propsMetadata(p record.Props, keys, vals []string) arrow.Metadata {
	for k, v := range p.All() {
		keys = append(keys, k)
		vals = append(vals, v)
	}
	return arrow.NewMetadata(keys, vals)
}

func arrowType(t record.Type, shape *record.Schema) (arrow.DataType, error) {
	switch t {
	case record.TypeString:
		return arrow.BinaryTypes.String, nil
	case record.TypeBytes:
		return arrow.BinaryTypes.Binary, nil
	case record.TypeInt:
		return arrow.PrimitiveTypes.Int32, nil
	case record.TypeLong:
		return arrow.PrimitiveTypes.Int64, nil
	case record.TypeFloat:
		return arrow.PrimitiveTypes.Float32, nil
	case record.TypeDouble:
		return arrow.PrimitiveTypes.Float64, nil
	case record.TypeBoolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case record.TypeDatetime:
		return arrow.FixedWidthTypes.Timestamp_ms, nil
	case record.TypeRecord:
		if shape == nil {
			return nil, fmt.Errorf("%w: RECORD without element schema", ErrUnsupported)
		}
		fields, err := arrowFields(shape)
		if err != nil {
			return nil, err
		}
		return arrow.StructOf(fields...), nil
	case record.TypeArray:
		if shape == nil {
			return nil, fmt.Errorf("%w: ARRAY without element schema", ErrUnsupported)
		}
		item, err := arrowType(shape.Type(), itemShape(shape))
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(item), nil
	}
	return nil, fmt.Errorf("%w: type %s", ErrUnsupported, t)
}

func appendArrow(b array.Builder, t record.Type, shape *record.Schema, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch bt := b.(type) {
	case *array.StringBuilder:
		return appendAs(t, v, bt.Append)
	case *array.BinaryBuilder:
		return appendAs(t, v, bt.Append)
	case *array.Int32Builder:
		return appendAs(t, v, bt.Append)
	case *array.Int64Builder:
		return appendAs(t, v, bt.Append)
	case *array.Float32Builder:
		return appendAs(t, v, bt.Append)
	case *array.Float64Builder:
		return appendAs(t, v, bt.Append)
	case *array.BooleanBuilder:
		return appendAs(t, v, bt.Append)
	case *array.TimestampBuilder:
		return appendAs(t, v, func(ms int64) { bt.Append(arrow.Timestamp(ms)) })
	case *array.StructBuilder:
		nested, ok := v.(*record.Record)
		if !ok {
			return storedAs(t, v)
		}
		bt.Append(true)
		for i, e := range shape.AllEntries() {
			fv, _ := nested.Get(e.Name())
			if err := appendArrow(bt.FieldBuilder(i), e.Type(), e.ElementSchema(), fv); err != nil {
				return fmt.Errorf("entry %q: %w", e.Name(), err)
			}
		}
	case *array.ListBuilder:
		items, ok := v.([]any)
		if !ok {
			return storedAs(t, v)
		}
		bt.Append(true)
		vb := bt.ValueBuilder()
		for i, item := range items {
			if err := appendArrow(vb, shape.Type(), itemShape(shape), item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("%w: builder %T for %s", ErrUnsupported, b, t)
	}
	return nil
}

// appendAs appends v when it holds the stored form T; records built
// against another schema can hold anything.
func appendAs[T any](t record.Type, v any, add func(T)) error {
	x, ok := v.(T)
	if !ok {
		return storedAs(t, v)
	}
	add(x)
	return nil
}

func storedAs(t record.Type, v any) error {
	return &record.Error{
		Code:    record.CodeTypeMismatch,
		Message: fmt.Sprintf("%T stored where %s is declared", v, t),
	}
}
