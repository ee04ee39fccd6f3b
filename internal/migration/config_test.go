package migration

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingListener captures every notification as a short string.
type recordingListener struct {
	events []string
}

func (l *recordingListener) OnAddKey(_ map[string]string, key, value string) {
	l.events = append(l.events, "add "+key+"="+value)
}

func (l *recordingListener) OnRenameKey(_ map[string]string, oldKey, newKey string) {
	l.events = append(l.events, "rename "+oldKey+"->"+newKey)
}

func (l *recordingListener) OnRemoveKey(_ map[string]string, key string) {
	l.events = append(l.events, "remove "+key)
}

func (l *recordingListener) OnChangeValue(_ map[string]string, key, oldValue, newValue string) {
	l.events = append(l.events, "change "+key+" "+oldValue+"->"+newValue)
}

func (l *recordingListener) OnSplitProperty(_ map[string]string, oldKey string, newKeys []string) {
	l.events = append(l.events, "split "+oldKey+"->"+strings.Join(newKeys, ","))
}

func (l *recordingListener) OnMergeProperties(_ map[string]string, oldKeys []string, newKey string) {
	l.events = append(l.events, "merge "+strings.Join(oldKeys, ",")+"->"+newKey)
}

func testConfig(data map[string]string, listeners ...Listener) *Config {
	return newConfig(data, listeners, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestConfig_Operations(t *testing.T) {
	l := &recordingListener{}
	c := testConfig(map[string]string{
		"host":     "localhost",
		"port":     "5432",
		"mode":     "legacy",
		"fullname": "Ada Lovelace",
		"user":     "ada",
		"domain":   "example.org",
	}, l)

	require.NoError(t, c.AddKey("timeout", "30"))
	require.NoError(t, c.RenameKey("host", "server"))
	require.NoError(t, c.RemoveKey("port"))
	require.NoError(t, c.ChangeValue("mode", "modern"))
	require.NoError(t, c.ChangeValueIf("mode", "never", func(v string) bool { return v == "legacy" }))
	require.NoError(t, c.UpdateValue("timeout", func(v string) string { return v + "s" }))
	require.NoError(t, c.UpdateValueIf("server", strings.ToUpper, func(v string) bool { return v == "localhost" }))
	require.NoError(t, c.SplitProperty("fullname", []string{"first", "last"}, SplitOn(" ")))
	require.NoError(t, c.MergeProperties([]string{"user", "domain"}, "email", JoinWith("@")))

	assert.Equal(t, map[string]string{
		"server":  "LOCALHOST",
		"mode":    "modern",
		"timeout": "30s",
		"first":   "Ada",
		"last":    "Lovelace",
		"email":   "ada@example.org",
	}, c.Values())

	assert.Equal(t, []string{
		"add timeout=30",
		"rename host->server",
		"remove port",
		"change mode legacy->modern",
		"change timeout 30->30s",
		"change server localhost->LOCALHOST",
		"split fullname->first,last",
		"merge user,domain->email",
	}, l.events)
}

func TestConfig_MissingKeys(t *testing.T) {
	c := testConfig(map[string]string{"a": "1"})

	tests := []struct {
		name string
		op   func() error
	}{
		{"rename", func() error { return c.RenameKey("missing", "x") }},
		{"remove", func() error { return c.RemoveKey("missing") }},
		{"change", func() error { return c.ChangeValue("missing", "x") }},
		{"change if", func() error { return c.ChangeValueIf("missing", "x", func(string) bool { return true }) }},
		{"update", func() error { return c.UpdateValue("missing", strings.ToUpper) }},
		{"split", func() error { return c.SplitProperty("missing", []string{"x"}, SplitOn(",")) }},
		{"merge", func() error { return c.MergeProperties([]string{"a", "missing"}, "x", JoinWith(",")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			require.Error(t, err)
			assert.True(t, IsKeyNotFound(err))
			assert.Contains(t, err.Error(), "Key missing does not exist")
		})
	}

	// failed merge leaves the configuration untouched
	assert.Equal(t, map[string]string{"a": "1"}, c.Values())
}

func TestConfig_AddExistingKey(t *testing.T) {
	c := testConfig(map[string]string{"a": "1"})
	err := c.AddKey("a", "2")
	require.Error(t, err)
	assert.True(t, IsKeyExists(err))
	v, _ := c.Get("a")
	assert.Equal(t, "1", v)
}

func TestConfig_SplitShortValue(t *testing.T) {
	c := testConfig(map[string]string{"range": "10"})
	require.NoError(t, c.SplitProperty("range", []string{"min", "max"}, SplitOn("-")))
	assert.Equal(t, map[string]string{"min": "10", "max": ""}, c.Values())
}

func TestConfig_SplitKeepsOldKeyWhenReused(t *testing.T) {
	c := testConfig(map[string]string{"path": "a/b"})
	require.NoError(t, c.SplitProperty("path", []string{"path", "file"}, SplitOn("/")))
	assert.Equal(t, map[string]string{"path": "a", "file": "b"}, c.Values())
}

func TestFunc_Migrate(t *testing.T) {
	h := NewFunc(func(c *Config, incomingVersion int) error {
		if incomingVersion < 2 {
			if err := c.RenameKey("login", "username"); err != nil {
				return err
			}
		}
		return c.AddKey("version", "2")
	})
	l := &recordingListener{}
	h.RegisterListener(l)

	in := map[string]string{"login": "ada"}
	out, err := h.Migrate(1, in)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"username": "ada", "version": "2"}, out)
	assert.Equal(t, map[string]string{"login": "ada"}, in, "input must not be modified")
	assert.Len(t, l.events, 2)

	h.UnregisterListener(l)
	_, err = h.Migrate(2, map[string]string{})
	require.NoError(t, err)
	assert.Len(t, l.events, 2)

	_, err = h.Migrate(1, map[string]string{})
	require.Error(t, err)
	assert.True(t, IsKeyNotFound(err))
	assert.Contains(t, err.Error(), "migrate from version 1")
}

// taggedListener is a value listener that cannot be compared with ==.
type taggedListener struct {
	*recordingListener
	tags []string
}

func TestFunc_UnregisterValueListener(t *testing.T) {
	h := NewFunc(func(c *Config, _ int) error {
		return c.AddKey("version", "2")
	})
	tagged := taggedListener{recordingListener: &recordingListener{}, tags: []string{"audit"}}
	l := &recordingListener{}
	h.RegisterListener(tagged)
	h.RegisterListener(l)

	require.NotPanics(t, func() {
		h.UnregisterListener(tagged)
		h.UnregisterListener(l)
	})

	_, err := h.Migrate(1, map[string]string{})
	require.NoError(t, err)
	assert.Empty(t, l.events)
	assert.Equal(t, []string{"add version=2"}, tagged.events, "non-comparable listeners stay registered")
}
