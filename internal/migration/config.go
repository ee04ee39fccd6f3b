package migration

import (
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// Listener observes successful operations. cfg is the live configuration
// after the change and must not be modified.
type Listener interface {
	OnAddKey(cfg map[string]string, key, value string)
	OnRenameKey(cfg map[string]string, oldKey, newKey string)
	OnRemoveKey(cfg map[string]string, key string)
	OnChangeValue(cfg map[string]string, key, oldValue, newValue string)
	OnSplitProperty(cfg map[string]string, oldKey string, newKeys []string)
	OnMergeProperties(cfg map[string]string, oldKeys []string, newKey string)
}

// SplitFunc splits value into at most n parts.
type SplitFunc func(value string, n int) []string

// MergeFunc joins values, given in key order, into one.
type MergeFunc func(values []string) string

// SplitOn splits on sep, leaving any remainder in the last part.
func SplitOn(sep string) SplitFunc {
	return func(value string, n int) []string {
		return strings.SplitN(value, sep, n)
	}
}

// JoinWith joins values with sep.
func JoinWith(sep string) MergeFunc {
	return func(values []string) string {
		return strings.Join(values, sep)
	}
}

// Config is a configuration being migrated. It is not safe for concurrent
// use.
type Config struct {
	values    map[string]string
	listeners []Listener
	logger    *slog.Logger
}

func newConfig(data map[string]string, listeners []Listener, logger *slog.Logger) *Config {
	values := maps.Clone(data)
	if values == nil {
		values = make(map[string]string)
	}
	return &Config{values: values, listeners: listeners, logger: logger}
}

// Get returns the current value of key.
func (c *Config) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is present.
func (c *Config) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Values returns a copy of the configuration.
func (c *Config) Values() map[string]string {
	return maps.Clone(c.values)
}

func (c *Config) require(key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return "", keyNotFound(key)
	}
	return v, nil
}

// AddKey sets a key that must not exist yet.
func (c *Config) AddKey(key, value string) error {
	if c.Has(key) {
		return keyExists(key)
	}
	c.values[key] = value
	c.logger.Debug("migration add key", "key", key)
	c.notify(func(l Listener) { l.OnAddKey(c.values, key, value) })
	return nil
}

// RenameKey moves the value of oldKey to newKey, overwriting newKey.
func (c *Config) RenameKey(oldKey, newKey string) error {
	v, err := c.require(oldKey)
	if err != nil {
		return err
	}
	delete(c.values, oldKey)
	c.values[newKey] = v
	c.logger.Debug("migration rename key", "from", oldKey, "to", newKey)
	c.notify(func(l Listener) { l.OnRenameKey(c.values, oldKey, newKey) })
	return nil
}

// RemoveKey deletes key.
func (c *Config) RemoveKey(key string) error {
	if _, err := c.require(key); err != nil {
		return err
	}
	delete(c.values, key)
	c.logger.Debug("migration remove key", "key", key)
	c.notify(func(l Listener) { l.OnRemoveKey(c.values, key) })
	return nil
}

// ChangeValue replaces the value of key.
func (c *Config) ChangeValue(key, newValue string) error {
	old, err := c.require(key)
	if err != nil {
		return err
	}
	c.values[key] = newValue
	c.logger.Debug("migration change value", "key", key)
	c.notify(func(l Listener) { l.OnChangeValue(c.values, key, old, newValue) })
	return nil
}

// ChangeValueIf replaces the value of key when cond accepts the current
// value.
func (c *Config) ChangeValueIf(key, newValue string, cond func(string) bool) error {
	old, err := c.require(key)
	if err != nil {
		return err
	}
	if !cond(old) {
		return nil
	}
	return c.ChangeValue(key, newValue)
}

// UpdateValue replaces the value of key with updater(current).
func (c *Config) UpdateValue(key string, updater func(string) string) error {
	old, err := c.require(key)
	if err != nil {
		return err
	}
	return c.ChangeValue(key, updater(old))
}

// UpdateValueIf is UpdateValue guarded by cond.
func (c *Config) UpdateValueIf(key string, updater func(string) string, cond func(string) bool) error {
	old, err := c.require(key)
	if err != nil {
		return err
	}
	if !cond(old) {
		return nil
	}
	return c.ChangeValue(key, updater(old))
}

// SplitProperty distributes the value of oldKey over newKeys. Keys left
// without a part get an empty value. oldKey is removed unless it is one of
// newKeys.
func (c *Config) SplitProperty(oldKey string, newKeys []string, split SplitFunc) error {
	v, err := c.require(oldKey)
	if err != nil {
		return err
	}
	parts := split(v, len(newKeys))
	if !slices.Contains(newKeys, oldKey) {
		delete(c.values, oldKey)
	}
	for i, k := range newKeys {
		if i < len(parts) {
			c.values[k] = parts[i]
		} else {
			c.values[k] = ""
		}
	}
	c.logger.Debug("migration split property", "key", oldKey, "into", newKeys)
	c.notify(func(l Listener) { l.OnSplitProperty(c.values, oldKey, newKeys) })
	return nil
}

// MergeProperties joins the values of oldKeys into newKey. Every old key
// must exist; they are removed before newKey is written.
func (c *Config) MergeProperties(oldKeys []string, newKey string, merge MergeFunc) error {
	values := make([]string, 0, len(oldKeys))
	for _, k := range oldKeys {
		v, err := c.require(k)
		if err != nil {
			return err
		}
		values = append(values, v)
	}
	for _, k := range oldKeys {
		delete(c.values, k)
	}
	c.values[newKey] = merge(values)
	c.logger.Debug("migration merge properties", "keys", oldKeys, "into", newKey)
	c.notify(func(l Listener) { l.OnMergeProperties(c.values, oldKeys, newKey) })
	return nil
}

func (c *Config) notify(fn func(Listener)) {
	for _, l := range c.listeners {
		fn(l)
	}
}
