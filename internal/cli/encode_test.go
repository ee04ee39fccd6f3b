package cli

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordkit/internal/factory"
	"github.com/roach88/recordkit/internal/record"
)

const customerLines = `{"id":1,"Full_Name":"Ada","active":true,"address":{"city":"Nantes","zip":44000},"tags":["a","b"]}
{"id":2,"score":0.5,"active":false}
`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func fixtureSchema(t *testing.T, subject string) *record.Schema {
	t.Helper()
	result, errs := LoadSchemas(fixtureSpecs, LoadModeFailFast)
	require.Empty(t, errs)
	s, ok := result.Lookup(subject)
	require.True(t, ok)
	return s
}

func TestEncodeAvro(t *testing.T) {
	input := writeInput(t, customerLines)
	output := filepath.Join(t.TempDir(), "customers.avro")

	out, _, err := execute(NewEncodeCommand(&RootOptions{Format: "json"}),
		fixtureSpecs, "Customer", "--input", input, "--backend", "avro", "-o", output)
	require.NoError(t, err)

	var result EncodeResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 2, result.Records)
	assert.Equal(t, "avro", result.Backend)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, result.Bytes, len(data))

	cfg := factory.DefaultConfig()
	cfg.Backend = factory.BackendAvro
	f, err := factory.New(cfg, factory.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer f.Close()

	records, err := f.Decode(bytes.NewReader(data), fixtureSchema(t, "Customer"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	name, ok := records[0].GetString("Full_Name")
	require.True(t, ok)
	assert.Equal(t, "Ada", name)
	score, ok := records[1].GetDouble("score")
	require.True(t, ok)
	assert.Equal(t, 0.5, score)
}

func TestEncodeArrow(t *testing.T) {
	input := writeInput(t, customerLines)
	output := filepath.Join(t.TempDir(), "customers.arrow")

	out, _, err := execute(NewEncodeCommand(&RootOptions{Format: "text"}),
		fixtureSpecs, "Customer", "--input", input, "--backend", "arrow", "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Encoded 2 record(s) of Customer with arrow")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()

	rdr, err := ipc.NewReader(f)
	require.NoError(t, err)
	defer rdr.Release()
	require.True(t, rdr.Next())
	assert.EqualValues(t, 2, rdr.Record().NumRows())
	assert.EqualValues(t, 6, rdr.Record().NumCols())
}

func TestEncodeRejectsBadRecords(t *testing.T) {
	input := writeInput(t, `{"Full_Name":"no id","active":true}`+"\n")
	output := filepath.Join(t.TempDir(), "out.avro")

	out, _, err := execute(NewEncodeCommand(&RootOptions{Format: "text"}),
		fixtureSpecs, "Customer", "--input", input, "--backend", "avro", "-o", output)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeBadInput)

	code, ok := record.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, record.CodeMissingRequiredValue, code)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr), "nothing is written on failure")
}

func TestEncodeUnknownSubject(t *testing.T) {
	input := writeInput(t, customerLines)

	out, _, err := execute(NewEncodeCommand(&RootOptions{Format: "text"}),
		fixtureSpecs, "Order", "--input", input, "-o", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.Contains(t, out, `schema "Order" not declared`)
}

func TestEncodeMissingInput(t *testing.T) {
	_, _, err := execute(NewEncodeCommand(&RootOptions{Format: "text"}),
		fixtureSpecs, "Customer", "--input", filepath.Join(t.TempDir(), "none.jsonl"), "-o", filepath.Join(t.TempDir(), "x"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestEncodeRejectsWrongJSONKinds(t *testing.T) {
	for _, line := range []string{
		`{"id":"1","active":true}`,
		`{"id":1,"active":"yes"}`,
		`{"id":5000000000000000000000,"active":true}`,
	} {
		t.Run(line, func(t *testing.T) {
			input := writeInput(t, line+"\n")
			out, _, err := execute(NewEncodeCommand(&RootOptions{Format: "text"}),
				fixtureSpecs, "Customer", "--input", input, "--backend", "avro", "-o", filepath.Join(t.TempDir(), "out.avro"))
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, "TYPE_MISMATCH")

			code, ok := record.CodeOf(err)
			require.True(t, ok)
			assert.Equal(t, record.CodeTypeMismatch, code)
		})
	}
}
