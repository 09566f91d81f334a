package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidPatch(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), pulsePatch)
	require.NoError(t, err)
	assert.Equal(t, "✓ Patch is valid\n", out)
}

func TestValidateValidPatchJSON(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), "fixture:grid9")
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateInvalidPatch(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), badRefPatch)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 4 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E106")
}

func TestValidateInvalidPatchJSON(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), badRefPatch)
	require.Error(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 4)
	require.NotNil(t, resp.Error)
	assert.Equal(t, result.Errors[0].Code, resp.Error.Code)
}

func TestValidateMissingPatch(t *testing.T) {
	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "nope.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E101]")
}

func TestValidateSchemaError(t *testing.T) {
	_, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "../loader/testdata/bad_schema.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
