// Package remote replaces cross-boundary object references with handles.
//
// A service that must travel to another component (a builder factory, a
// codec) is exported into a Registry and represented by a Handle carrying
// only its identity. The receiving side resolves the handle against its
// own registry instead of deserializing the service itself.
package remote

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Handle identifies an exported service. Handles are plain values and
// encode to JSON.
type Handle struct {
	ID      string `json:"id"`
	Plugin  string `json:"plugin"`
	Service string `json:"service"`
}

func (h Handle) String() string {
	return fmt.Sprintf("%s/%s#%s", h.Plugin, h.Service, h.ID)
}

// Errors returned by Resolve.
var (
	ErrUnknownHandle = errors.New("unknown handle")
	ErrStaleHandle   = errors.New("stale handle")
	ErrWrongType     = errors.New("handle resolves to another type")
)

// IDGenerator produces handle IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs, for tests.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
// Panics once all IDs have been consumed.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

type key struct {
	plugin  string
	service string
}

type exported struct {
	id      string
	service any
}

// Registry maps (plugin, service) names to the live service exported under
// them. Re-exporting a name issues a new ID, so handles taken before the
// re-export become stale.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	services map[key]exported
	ids      IDGenerator
}

// NewRegistry returns an empty registry issuing UUIDv7 IDs.
func NewRegistry() *Registry {
	return NewRegistryWithGenerator(UUIDv7Generator{})
}

// NewRegistryWithGenerator returns an empty registry using gen for IDs.
func NewRegistryWithGenerator(gen IDGenerator) *Registry {
	return &Registry{services: make(map[key]exported), ids: gen}
}

// Export registers service under plugin/name and returns its handle.
func (r *Registry) Export(plugin, name string, service any) Handle {
	id := r.ids.Generate()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[key{plugin, name}] = exported{id: id, service: service}
	return Handle{ID: id, Plugin: plugin, Service: name}
}

// Remove drops the service behind h. Removing an unknown or stale handle
// is a no-op.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{h.Plugin, h.Service}
	if e, ok := r.services[k]; ok && e.id == h.ID {
		delete(r.services, k)
	}
}

// Resolve returns the service behind h.
func (r *Registry) Resolve(h Handle) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.services[key{h.Plugin, h.Service}]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	if e.id != h.ID {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return e.service, nil
}

// Len returns the number of exported services.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}

// Resolve returns the service behind h asserted to T.
func Resolve[T any](r *Registry, h Handle) (T, error) {
	var zero T
	v, err := r.Resolve(h)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrWrongType, h, v)
	}
	return t, nil
}
