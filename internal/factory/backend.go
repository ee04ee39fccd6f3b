package factory

import (
	"errors"
	"fmt"
	"io"

	"github.com/roach88/recordkit/internal/record"
)

// ErrUnsupported is returned when a backend cannot express a schema or
// does not implement an operation.
var ErrUnsupported = errors.New("unsupported by backend")

// Backend writes records of one schema to a byte stream.
type Backend interface {
	Name() BackendKind

	// Check reports whether the backend can express s.
	Check(s *record.Schema) error

	// Encode writes records, all built against s, to w.
	Encode(w io.Writer, s *record.Schema, records []*record.Record) error
}

// Decoder is implemented by backends that can read back what they encode.
type Decoder interface {
	Decode(r io.Reader, s *record.Schema) ([]*record.Record, error)
}

func newBackend(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case BackendMemory:
		return memoryBackend{}, nil
	case BackendAvro:
		return newAvroBackend(cfg.CodecCacheSize)
	case BackendArrow:
		return arrowBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// checkTopLevel rejects what no backend encodes: a nil or non-RECORD
// top-level schema.
func checkTopLevel(name BackendKind, s *record.Schema) error {
	if s == nil {
		return fmt.Errorf("%s: %w: nil schema", name, ErrUnsupported)
	}
	if s.Type() != record.TypeRecord {
		return fmt.Errorf("%s: %w: top-level schema must be RECORD, got %s", name, ErrUnsupported, s.Type())
	}
	return nil
}

// itemShape returns the shape an array item of elem is decoded against:
// the element schema itself for records, its own element schema otherwise.
func itemShape(elem *record.Schema) *record.Schema {
	if elem.Type() == record.TypeRecord {
		return elem
	}
	return elem.ElementSchema()
}
