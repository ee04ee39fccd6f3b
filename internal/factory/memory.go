package factory

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/roach88/recordkit/internal/record"
)

// maxLineSize bounds one JSON line read by the memory backend.
const maxLineSize = 16 << 20

// memoryBackend stores records as JSON lines, using Record.MarshalJSON.
type memoryBackend struct{}

func (memoryBackend) Name() BackendKind { return BackendMemory }

func (memoryBackend) Check(s *record.Schema) error {
	return checkTopLevel(BackendMemory, s)
}

func (m memoryBackend) Encode(w io.Writer, s *record.Schema, records []*record.Record) error {
	if err := m.Check(s); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	for i, r := range records {
		data, err := r.MarshalJSON()
		if err != nil {
			return fmt.Errorf("memory: record %d: %w", i, err)
		}
		bw.Write(data)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func (m memoryBackend) Decode(r io.Reader, s *record.Schema) ([]*record.Record, error) {
	if err := m.Check(s); err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var out []*record.Record
	line := 0
	for sc.Scan() {
		line++
		text := sc.Bytes()
		if len(text) == 0 {
			continue
		}
		if !gjson.ValidBytes(text) {
			return nil, fmt.Errorf("memory: line %d: invalid JSON", line)
		}
		rec, err := recordFromJSON(s, gjson.ParseBytes(text))
		if err != nil {
			return nil, fmt.Errorf("memory: line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("memory: read: %w", err)
	}
	return out, nil
}

func recordFromJSON(s *record.Schema, obj gjson.Result) (*record.Record, error) {
	if !obj.IsObject() {
		return nil, jsonMismatch(record.TypeRecord, obj)
	}
	b := record.NewRecordBuilder(s)
	for _, e := range s.AllEntries() {
		field := obj.Get(gjson.Escape(e.Name()))
		if !field.Exists() || field.Type == gjson.Null {
			continue
		}
		v, err := valueFromJSON(e.Type(), e.ElementSchema(), field)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Name(), err)
		}
		b.With(e, v)
	}
	return b.Build()
}

func valueFromJSON(t record.Type, shape *record.Schema, r gjson.Result) (any, error) {
	if r.Type == gjson.Null {
		return nil, nil
	}
	switch t {
	case record.TypeString:
		if r.Type != gjson.String {
			return nil, jsonMismatch(t, r)
		}
		return r.String(), nil
	case record.TypeBytes:
		if r.Type != gjson.String {
			return nil, jsonMismatch(t, r)
		}
		return base64.StdEncoding.DecodeString(r.String())
	case record.TypeInt:
		if r.Type != gjson.Number {
			return nil, jsonMismatch(t, r)
		}
		i, err := strconv.ParseInt(r.Raw, 10, 32)
		if err != nil {
			return nil, jsonOutOfRange(t, r)
		}
		return int32(i), nil
	case record.TypeLong:
		if r.Type != gjson.Number {
			return nil, jsonMismatch(t, r)
		}
		i, err := strconv.ParseInt(r.Raw, 10, 64)
		if err != nil {
			return nil, jsonOutOfRange(t, r)
		}
		return i, nil
	case record.TypeFloat:
		if r.Type != gjson.Number {
			return nil, jsonMismatch(t, r)
		}
		f, err := strconv.ParseFloat(r.Raw, 32)
		if err != nil {
			return nil, jsonOutOfRange(t, r)
		}
		return float32(f), nil
	case record.TypeDouble:
		if r.Type != gjson.Number {
			return nil, jsonMismatch(t, r)
		}
		return r.Float(), nil
	case record.TypeBoolean:
		if r.Type != gjson.True && r.Type != gjson.False {
			return nil, jsonMismatch(t, r)
		}
		return r.Bool(), nil
	case record.TypeDatetime:
		if r.Type != gjson.String {
			return nil, jsonMismatch(t, r)
		}
		ts, err := time.Parse(record.DateTimeLayout, r.String())
		if err != nil {
			return nil, err
		}
		return ts, nil
	case record.TypeRecord:
		return recordFromJSON(shape, r)
	case record.TypeArray:
		if !r.IsArray() {
			return nil, jsonMismatch(t, r)
		}
		items := r.Array()
		out := make([]any, len(items))
		for i, item := range items {
			v, err := valueFromJSON(shape.Type(), itemShape(shape), item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type %s", t)
}

func jsonMismatch(t record.Type, r gjson.Result) error {
	return &record.Error{
		Code:    record.CodeTypeMismatch,
		Message: fmt.Sprintf("JSON %s %s is not a %s value", strings.ToLower(r.Type.String()), r.Raw, t),
	}
}

func jsonOutOfRange(t record.Type, r gjson.Result) error {
	return &record.Error{
		Code:    record.CodeTypeMismatch,
		Message: fmt.Sprintf("%s does not fit %s", r.Raw, t),
	}
}
