package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	out, _, err := execute(NewSanitizeCommand(&RootOptions{Format: "text"}), "Full Name", "123HelloWorld", "$oid")
	require.NoError(t, err)
	assert.Equal(t, "Full_Name\n_23HelloWorld\noid\n", out)
}

func TestSanitizeVerbose(t *testing.T) {
	out, _, err := execute(NewSanitizeCommand(&RootOptions{Format: "text", Verbose: true}), "é1")
	require.NoError(t, err)
	assert.Equal(t, "\"é1\" -> \"_1\"\n", out)
}

func TestSanitizeJSON(t *testing.T) {
	out, _, err := execute(NewSanitizeCommand(&RootOptions{Format: "json"}), "already_valid", "Hello-World$")
	require.NoError(t, err)

	var results []SanitizedName
	resp := decodeResponse(t, out, &results)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []SanitizedName{
		{Raw: "already_valid", Sanitized: "already_valid", Changed: false},
		{Raw: "Hello-World$", Sanitized: "Hello_World_", Changed: true},
	}, results)
}

func TestSanitizeRequiresName(t *testing.T) {
	_, _, err := execute(NewSanitizeCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
}
