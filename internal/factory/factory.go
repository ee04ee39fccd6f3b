package factory

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/recordkit/internal/record"
	"github.com/roach88/recordkit/internal/remote"
)

// ServiceName is the name a Factory is exported under in a remote.Registry.
const ServiceName = "record-builder-factory"

// Factory creates builders and moves records through its backend.
//
// Thread-safety: Factory is safe for concurrent use. The builders it
// returns are not.
type Factory struct {
	cfg      Config
	backend  Backend
	logger   *slog.Logger
	registry *remote.Registry
	handle   remote.Handle
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// WithRegistry exports the factory into r instead of a private registry.
func WithRegistry(r *remote.Registry) Option {
	return func(f *Factory) { f.registry = r }
}

// New validates cfg, creates its backend and exports the factory under
// cfg.Plugin.
func New(cfg Config, opts ...Option) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new factory: %w", err)
	}
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("new factory: %w", err)
	}

	f := &Factory{cfg: cfg, backend: backend}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.registry == nil {
		f.registry = remote.NewRegistry()
	}
	f.handle = f.registry.Export(cfg.Plugin, ServiceName, f)

	f.logger.Info("factory ready",
		"plugin", cfg.Plugin,
		"backend", string(cfg.Backend),
		"handle", f.handle.ID)
	return f, nil
}

// FromHandle resolves a factory exported into r.
func FromHandle(r *remote.Registry, h remote.Handle) (*Factory, error) {
	f, err := remote.Resolve[*Factory](r, h)
	if err != nil {
		return nil, fmt.Errorf("resolve factory: %w", err)
	}
	return f, nil
}

// Config returns the configuration the factory was created with.
func (f *Factory) Config() Config { return f.cfg }

// Backend returns the configured backend.
func (f *Factory) Backend() Backend { return f.backend }

// Logger returns the logger the factory reports to.
func (f *Factory) Logger() *slog.Logger { return f.logger }

// Handle identifies the factory in its registry.
func (f *Factory) Handle() remote.Handle { return f.handle }

// Close removes the factory from its registry.
func (f *Factory) Close() {
	f.registry.Remove(f.handle)
}

func (f *Factory) NewSchemaBuilder(t record.Type) *record.SchemaBuilder {
	return record.NewSchemaBuilder(t)
}

// NewSchemaBuilderFrom returns a builder seeded with a copy of s, for
// appending to an existing schema.
func (f *Factory) NewSchemaBuilderFrom(s *record.Schema) *record.SchemaBuilder {
	return s.ToBuilder()
}

func (f *Factory) NewEntryBuilder() *record.EntryBuilder {
	return record.NewEntryBuilder()
}

// NewRecordBuilder returns a strict builder for s, or an inferring one
// when s is nil.
func (f *Factory) NewRecordBuilder(s *record.Schema) *record.RecordBuilder {
	if s == nil {
		return record.NewInferredRecordBuilder()
	}
	return record.NewRecordBuilder(s)
}

// NewRecordBuilderFrom returns a builder for s seeded with every value of
// r whose entry name also exists in s.
func (f *Factory) NewRecordBuilderFrom(s *record.Schema, r *record.Record) *record.RecordBuilder {
	return r.WithNewSchema(s)
}

// Check reports whether the backend can express s.
func (f *Factory) Check(s *record.Schema) error {
	return f.backend.Check(s)
}

// Encode writes records to w through the backend.
func (f *Factory) Encode(w io.Writer, s *record.Schema, records []*record.Record) error {
	if err := f.backend.Encode(w, s, records); err != nil {
		return err
	}
	f.logger.Debug("records encoded",
		"backend", string(f.cfg.Backend),
		"count", len(records))
	return nil
}

// Decode reads records written by Encode. Backends that cannot read back
// return ErrUnsupported.
func (f *Factory) Decode(r io.Reader, s *record.Schema) ([]*record.Record, error) {
	dec, ok := f.backend.(Decoder)
	if !ok {
		return nil, fmt.Errorf("%s: %w: decode", f.cfg.Backend, ErrUnsupported)
	}
	records, err := dec.Decode(r, s)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("records decoded",
		"backend", string(f.cfg.Backend),
		"count", len(records))
	return records, nil
}
