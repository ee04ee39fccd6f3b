package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Config
		wantErr string
	}{
		{
			name:  "empty document",
			input: "",
			want:  DefaultConfig(),
		},
		{
			name:  "full",
			input: "backend: avro\nplugin: crm\ncodec_cache_size: 8\n",
			want:  Config{Backend: BackendAvro, Plugin: "crm", CodecCacheSize: 8},
		},
		{
			name:  "partial keeps defaults",
			input: "backend: arrow\n",
			want:  Config{Backend: BackendArrow, Plugin: "default", CodecCacheSize: DefaultCodecCacheSize},
		},
		{
			name:    "unknown field",
			input:   "backend: memory\nbakend: avro\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "unknown backend",
			input:   "backend: parquet\n",
			wantErr: "unknown backend",
		},
		{
			name:    "negative cache",
			input:   "codec_cache_size: -1\n",
			wantErr: "codec_cache_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "factory.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: avro\nplugin: erp\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, BackendAvro, cfg.Backend)
	assert.Equal(t, "erp", cfg.Plugin)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
