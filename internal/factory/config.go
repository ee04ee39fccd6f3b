package factory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// BackendKind selects the storage backend of a Factory.
type BackendKind string

const (
	BackendMemory BackendKind = "memory"
	BackendAvro   BackendKind = "avro"
	BackendArrow  BackendKind = "arrow"
)

// BackendKinds lists every supported backend.
var BackendKinds = []BackendKind{BackendMemory, BackendAvro, BackendArrow}

// DefaultCodecCacheSize bounds the avro codec cache when Config leaves it unset.
const DefaultCodecCacheSize = 64

// Config parameterizes a Factory.
type Config struct {
	Backend        BackendKind `yaml:"backend"`
	Plugin         string      `yaml:"plugin"`
	CodecCacheSize int         `yaml:"codec_cache_size"`
}

// DefaultConfig returns the memory backend under plugin "default".
func DefaultConfig() Config {
	return Config{
		Backend:        BackendMemory,
		Plugin:         "default",
		CodecCacheSize: DefaultCodecCacheSize,
	}
}

// Validate checks the backend name and cache size.
func (c Config) Validate() error {
	known := false
	for _, k := range BackendKinds {
		if c.Backend == k {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown backend %q (valid: memory, avro, arrow)", c.Backend)
	}
	if c.Plugin == "" {
		return fmt.Errorf("plugin is required")
	}
	if c.CodecCacheSize < 0 {
		return fmt.Errorf("codec_cache_size must not be negative, got %d", c.CodecCacheSize)
	}
	return nil
}

// LoadConfig reads a YAML factory configuration.
// Fields missing from the file keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML factory configuration. Unknown fields are
// rejected and an empty document yields DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
