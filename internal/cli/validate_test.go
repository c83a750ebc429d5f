package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/requerio/internal/manifest"
)

func manifestPath(name string) string {
	return filepath.Join("testdata", "manifests", name)
}

func executeValidate(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidManifest(t *testing.T) {
	out, err := executeValidate(t, "text", manifestPath("page.cue"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ list page: 3 organisms, 2 layout entries, 3 actions")
	assert.Contains(t, out, "✓ All manifests valid")
}

func TestValidateValidManifestJSON(t *testing.T) {
	out, err := executeValidate(t, "json", manifestPath("page.cue"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Manifests, 1)
	assert.Equal(t, ManifestSummary{
		Path:      manifestPath("page.cue"),
		Name:      "list page",
		Organisms: 3,
		Layout:    2,
		Actions:   3,
	}, resp.Data.Manifests[0])
}

func TestValidateNonExistentManifest(t *testing.T) {
	out, err := executeValidate(t, "text", "/nonexistent/page.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, out, "not found")
}

func TestValidateRequiresArgument(t *testing.T) {
	_, err := executeValidate(t, "text")
	assert.Error(t, err)
}

func TestValidateInvalidManifests(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		code     string
		field    string
		hasLine  bool
	}{
		{"undeclared organism", "undeclared.cue", ErrCodeActions, "actions.organism", true},
		{"script syntax error", "bad_script.cue", ErrCodeReducer, "reducer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeValidate(t, "json", manifestPath(tt.manifest))
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp struct {
				Status string           `json:"status"`
				Data   ValidationResult `json:"data"`
				Error  *CLIError        `json:"error"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.False(t, resp.Data.Valid)
			require.Len(t, resp.Data.Errors, 1)

			verr := resp.Data.Errors[0]
			assert.Equal(t, tt.code, verr.Code)
			assert.Equal(t, tt.field, verr.Field)
			if tt.hasLine {
				assert.Positive(t, verr.Line)
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestValidateCollectsErrorsAcrossManifests(t *testing.T) {
	out, err := executeValidate(t, "text",
		manifestPath("page.cue"),
		manifestPath("undeclared.cue"),
		manifestPath("bad_script.cue"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, manifestPath("undeclared.cue")+":")
	assert.Contains(t, out, `E105: organism "#b" is not declared`)
	assert.Contains(t, out, "E104:")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"document":        ErrCodeDocument,
		"html":            ErrCodeDocument,
		"file":            ErrCodeDocument,
		"organisms":       ErrCodeOrganisms,
		"layout.metrics":  ErrCodeLayout,
		"reducer.timeout": ErrCodeReducer,
		"actions.args":    ErrCodeActions,
		"actions.member":  ErrCodeActions,
		"cue":             ErrCodeSchema,
		"something.else":  ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}

func TestConvertManifestError(t *testing.T) {
	plain := convertManifestError("p.cue", errors.New("boom"), ErrCodeLoadFailed)
	assert.Equal(t, ValidationError{Path: "p.cue", Code: ErrCodeLoadFailed, Message: "boom"}, plain)
	assert.Equal(t, "p.cue: E004: boom", plain.Error())

	wrapped := convertManifestError("p.cue", &manifest.CompileError{Field: "organisms", Message: "duplicate", Pos: token.NoPos}, ErrCodeLoadFailed)
	assert.Equal(t, ErrCodeOrganisms, wrapped.Code)
	assert.Equal(t, "organisms", wrapped.Field)
	assert.Zero(t, wrapped.Line)
}
