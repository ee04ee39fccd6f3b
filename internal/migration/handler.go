package migration

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
)

// Handler migrates a configuration written at incomingVersion to the
// current version.
type Handler interface {
	Migrate(incomingVersion int, data map[string]string) (map[string]string, error)
}

// listenerSet is embedded by handlers that accept listeners.
type listenerSet struct {
	mu        sync.Mutex
	listeners []Listener
}

// RegisterListener adds l; it receives every later operation.
func (s *listenerSet) RegisterListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slog.Debug("registering migration listener", "listener", fmt.Sprintf("%T", l))
	s.listeners = append(s.listeners, l)
}

// UnregisterListener removes l. Listeners are matched with ==, so
// register pointers; a listener whose type is not comparable cannot be
// removed and is left in place.
func (s *listenerSet) UnregisterListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slog.Debug("unregistering migration listener", "listener", fmt.Sprintf("%T", l))
	s.listeners = slices.DeleteFunc(s.listeners, func(x Listener) bool { return sameListener(x, l) })
}

func sameListener(a, b Listener) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || (ta != nil && !ta.Comparable()) {
		return false
	}
	return a == b
}

func (s *listenerSet) snapshot() []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.listeners)
}

// Func adapts a function working on a Config into a Handler.
type Func struct {
	listenerSet
	fn     func(c *Config, incomingVersion int) error
	logger *slog.Logger
}

// NewFunc returns a Handler running fn on a copy of the incoming data.
func NewFunc(fn func(c *Config, incomingVersion int) error) *Func {
	return &Func{fn: fn, logger: slog.Default()}
}

// Migrate implements Handler.
func (f *Func) Migrate(incomingVersion int, data map[string]string) (map[string]string, error) {
	c := newConfig(data, f.snapshot(), f.logger)
	if err := f.fn(c, incomingVersion); err != nil {
		return nil, fmt.Errorf("migrate from version %d: %w", incomingVersion, err)
	}
	return c.values, nil
}
