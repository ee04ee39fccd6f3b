package factory

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordkit/internal/record"
	"github.com/roach88/recordkit/internal/remote"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFactory(t *testing.T, backend BackendKind) *Factory {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Backend = backend
	f, err := New(cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	return f
}

func addressSchema() *record.Schema {
	return record.NewSchemaBuilder(record.TypeRecord).
		WithEntry(record.NewEntryBuilder().WithName("city").WithType(record.TypeString).MustBuild()).
		WithEntry(record.NewEntryBuilder().WithName("zip").WithType(record.TypeInt).WithNullable(true).MustBuild()).
		MustBuild()
}

func customerSchema(withUpdated bool) *record.Schema {
	nullable := func(name string, t record.Type) *record.EntryBuilder {
		return record.NewEntryBuilder().WithName(name).WithType(t).WithNullable(true)
	}
	b := record.NewSchemaBuilder(record.TypeRecord).
		WithProp("namespace", "crm").
		WithEntry(record.NewEntryBuilder().WithName("id").WithType(record.TypeLong).WithComment("primary key").MustBuild()).
		WithEntry(nullable("Full Name", record.TypeString).WithProp("size", "64").MustBuild()).
		WithEntry(nullable("score", record.TypeInt).MustBuild()).
		WithEntry(nullable("address", record.TypeRecord).WithElementSchema(addressSchema()).MustBuild()).
		WithEntry(nullable("tags", record.TypeArray).
			WithElementSchema(record.NewSchemaBuilder(record.TypeString).MustBuild()).
			MustBuild()).
		WithEntry(record.NewEntryBuilder().WithName("active").WithType(record.TypeBoolean).MustBuild()).
		WithEntry(nullable("ratio", record.TypeDouble).MustBuild()).
		WithEntry(nullable("payload", record.TypeBytes).MustBuild())
	if withUpdated {
		b.WithEntry(nullable("updated", record.TypeDatetime).MustBuild())
	}
	return b.MustBuild()
}

func customerRecords(t *testing.T, s *record.Schema) []*record.Record {
	t.Helper()
	addrEntry, ok := s.Entry("address")
	require.True(t, ok)
	addr := record.NewRecordBuilder(addrEntry.ElementSchema()).
		WithString("city", "Nantes").
		WithInt("zip", 44000).
		MustBuild()
	tags, _ := s.Entry("tags")

	first := record.NewRecordBuilder(s).
		WithLong("id", 1).
		WithString("Full Name", "Ada").
		WithInt("score", 7).
		WithRecord("address", addr).
		WithArray(tags, []string{"a", "b"}).
		WithBoolean("active", true).
		WithDouble("ratio", 0.5).
		WithBytes("payload", []byte("hi"))
	if _, ok := s.Entry("updated"); ok {
		first.WithDateTime("updated", time.Date(2024, 5, 17, 8, 30, 15, 123e6, time.UTC))
	}
	second := record.NewRecordBuilder(s).
		WithLong("id", 2).
		WithBoolean("active", false)

	return []*record.Record{first.MustBuild(), second.MustBuild()}
}

func renderAll(records []*record.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.String()
	}
	return out
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Backend: "parquet", Plugin: "p"})
	assert.Error(t, err)

	_, err = New(Config{Backend: BackendMemory})
	assert.Error(t, err)
}

func TestFactory_Builders(t *testing.T) {
	f := newTestFactory(t, BackendMemory)
	s := customerSchema(false)

	extended := f.NewSchemaBuilderFrom(s).
		WithEntry(f.NewEntryBuilder().WithName("email").WithType(record.TypeString).WithNullable(true).MustBuild()).
		MustBuild()
	assert.Equal(t, s.Len()+1, extended.Len())
	assert.Equal(t, s.Len(), len(s.AllEntries()), "source schema must not change")

	original := customerRecords(t, s)[0]
	moved, err := f.NewRecordBuilderFrom(extended, original).
		WithString("email", "ada@example.org").
		Build()
	require.NoError(t, err)
	assert.Same(t, extended, moved.Schema())
	id, _ := moved.GetLong("id")
	assert.Equal(t, int64(1), id)

	inferred, err := f.NewRecordBuilder(nil).WithString("x", "y").Build()
	require.NoError(t, err)
	assert.Equal(t, 1, inferred.Schema().Len())

	strict := f.NewRecordBuilder(s)
	assert.False(t, strict.Inferred())

	assert.Equal(t, record.TypeArray, f.NewSchemaBuilder(record.TypeArray).
		WithElementSchema(record.NewSchemaBuilder(record.TypeLong).MustBuild()).
		MustBuild().Type())
}

func TestFactory_Handle(t *testing.T) {
	reg := remote.NewRegistryWithGenerator(remote.NewFixedGenerator("h-1", "h-2"))
	cfg := DefaultConfig()
	cfg.Plugin = "crm"

	f, err := New(cfg, WithLogger(quietLogger()), WithRegistry(reg))
	require.NoError(t, err)
	assert.Equal(t, remote.Handle{ID: "h-1", Plugin: "crm", Service: ServiceName}, f.Handle())

	got, err := FromHandle(reg, f.Handle())
	require.NoError(t, err)
	assert.Same(t, f, got)

	f.Close()
	_, err = FromHandle(reg, f.Handle())
	assert.ErrorIs(t, err, remote.ErrUnknownHandle)
}

func TestMemoryBackend_Golden(t *testing.T) {
	f := newTestFactory(t, BackendMemory)
	s := customerSchema(true)

	var buf bytes.Buffer
	require.NoError(t, f.Encode(&buf, s, customerRecords(t, s)))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "memory_jsonl", buf.Bytes())
}

func TestMemoryBackend_RoundTrip(t *testing.T) {
	f := newTestFactory(t, BackendMemory)
	s := customerSchema(true)
	records := customerRecords(t, s)

	var buf bytes.Buffer
	require.NoError(t, f.Encode(&buf, s, records))

	decoded, err := f.Decode(&buf, s)
	require.NoError(t, err)
	assert.Equal(t, renderAll(records), renderAll(decoded))

	updated, ok := decoded[0].GetDateTime("updated")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 17, 8, 30, 15, 123e6, time.UTC), updated)
}

func TestMemoryBackend_DecodeErrors(t *testing.T) {
	f := newTestFactory(t, BackendMemory)
	s := customerSchema(false)

	tests := []struct {
		name  string
		input string
		code  record.Code
	}{
		{"invalid json", "{nope\n", ""},
		{"not an object", "[1,2]\n", ""},
		{"missing required", `{"Full_Name":"Ada"}` + "\n", record.CodeMissingRequiredValue},
		{"array expected", `{"id":1,"active":true,"tags":"a"}` + "\n", record.CodeTypeMismatch},
		{"int out of range", `{"id":1,"active":true,"score":5000000000}` + "\n", record.CodeTypeMismatch},
		{"int from string", `{"id":1,"active":true,"score":"abc"}` + "\n", record.CodeTypeMismatch},
		{"int from fraction", `{"id":1,"active":true,"score":1.5}` + "\n", record.CodeTypeMismatch},
		{"long from string", `{"id":"1","active":true}` + "\n", record.CodeTypeMismatch},
		{"boolean from string", `{"id":1,"active":"yes"}` + "\n", record.CodeTypeMismatch},
		{"boolean from number", `{"id":1,"active":1}` + "\n", record.CodeTypeMismatch},
		{"string from number", `{"id":1,"active":true,"Full_Name":7}` + "\n", record.CodeTypeMismatch},
		{"double from bool", `{"id":1,"active":true,"ratio":true}` + "\n", record.CodeTypeMismatch},
		{"record from string", `{"id":1,"active":true,"address":"Nantes"}` + "\n", record.CodeTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Decode(bytes.NewBufferString(tt.input), s)
			require.Error(t, err)
			if tt.code != "" {
				code, ok := record.CodeOf(err)
				require.True(t, ok)
				assert.Equal(t, tt.code, code)
			}
		})
	}
}

func TestAvroBackend_RoundTrip(t *testing.T) {
	f := newTestFactory(t, BackendAvro)
	s := customerSchema(false)
	records := customerRecords(t, s)

	require.NoError(t, f.Check(s))

	var buf bytes.Buffer
	require.NoError(t, f.Encode(&buf, s, records))

	decoded, err := f.Decode(&buf, s)
	require.NoError(t, err)
	assert.Equal(t, renderAll(records), renderAll(decoded))
}

func TestArrowBackend_DecodeUnsupported(t *testing.T) {
	f := newTestFactory(t, BackendArrow)
	_, err := f.Decode(&bytes.Buffer{}, customerSchema(false))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestCheck_TopLevelMustBeRecord(t *testing.T) {
	arraySchema := record.NewSchemaBuilder(record.TypeArray).
		WithElementSchema(record.NewSchemaBuilder(record.TypeString).MustBuild()).
		MustBuild()

	for _, kind := range BackendKinds {
		t.Run(string(kind), func(t *testing.T) {
			f := newTestFactory(t, kind)
			assert.ErrorIs(t, f.Check(arraySchema), ErrUnsupported)
			assert.ErrorIs(t, f.Check(nil), ErrUnsupported)
			assert.NoError(t, f.Check(customerSchema(true)))
		})
	}
}
