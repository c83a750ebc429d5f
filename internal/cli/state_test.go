package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/requerio/internal/journal"
)

type stateResponse struct {
	Status  string    `json:"status"`
	Session string    `json:"session"`
	Error   *CLIError `json:"error"`
	Data    struct {
		Manifest string                    `json:"manifest"`
		Session  string                    `json:"session"`
		Actions  int                       `json:"actions"`
		State    map[string]map[string]any `json:"state"`
	} `json:"data"`
}

func TestStateText(t *testing.T) {
	out, err := execute(t, NewStateCommand(&RootOptions{Format: "text"}), manifestPath("page.cue"))
	require.NoError(t, err)

	assert.Contains(t, out, "Manifest: "+manifestPath("page.cue"))
	assert.Contains(t, out, "Actions: 3")
	assert.NotContains(t, out, "Session:")
	assert.Contains(t, out, "\n.child\n")
	assert.Contains(t, out, "\nwindow\n")
	assert.Contains(t, out, `"innerWidth": 1024`)
}

func TestStateJSONWithSelector(t *testing.T) {
	out, err := execute(t, NewStateCommand(&RootOptions{Format: "json"}),
		manifestPath("page.cue"), "--selector", ".child")
	require.NoError(t, err)

	var resp stateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Actions)
	require.Len(t, resp.Data.State, 1)

	child := resp.Data.State[".child"]
	members, ok := child["members"].([]any)
	require.True(t, ok)
	require.Len(t, members, 2)
	assert.Equal(t, []any{"child", "seen"}, members[0].(map[string]any)["classList"])
	assert.Equal(t, []any{"child", "seen", "active"}, members[1].(map[string]any)["classList"])
}

func TestStateJournalsSession(t *testing.T) {
	db := recordSession(t, "demo")

	j, err := journal.Open(db)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.ReadSession(context.Background(), "demo")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 3)
	assert.Equal(t, "ADD_CLASS", entries[0].Type)
	assert.Equal(t, "TOGGLE_CLASS", entries[1].Type)
	assert.JSONEq(t, `1`, string(entries[1].Target))
	assert.Equal(t, "INNER_WIDTH", entries[2].Type)
	assert.JSONEq(t, `[1024]`, string(entries[2].Args))
}

func TestStateContinuesSession(t *testing.T) {
	db := recordSession(t, "demo")
	_, err := execute(t, NewStateCommand(&RootOptions{Format: "json"}),
		manifestPath("page.cue"), "--db", db, "--session", "demo")
	require.NoError(t, err)

	j, err := journal.Open(db)
	require.NoError(t, err)
	defer j.Close()

	sessions, err := j.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(1), sessions[0].FirstSeq)
	assert.Equal(t, int64(sessions[0].Actions), sessions[0].LastSeq, "seqs continue without gaps")
	assert.GreaterOrEqual(t, sessions[0].Actions, 6)
}

func TestStateGeneratesSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	out, err := execute(t, NewStateCommand(&RootOptions{Format: "json"}), manifestPath("page.cue"), "--db", db)
	require.NoError(t, err)

	var resp stateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Session, 36, "UUIDv7 session id")
	assert.Equal(t, resp.Session, resp.Data.Session)
}

func TestStateUsesSessionGenerator(t *testing.T) {
	opts := &StateOptions{
		RootOptions:      &RootOptions{Format: "json"},
		Database:         filepath.Join(t.TempDir(), "journal.db"),
		SessionGenerator: journal.NewFixedGenerator("fixed-1"),
	}
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	require.NoError(t, runState(opts, manifestPath("page.cue"), cmd))

	var resp stateResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "fixed-1", resp.Session)
}

func TestStateErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		code     string
	}{
		{"missing manifest", []string{"/nonexistent/page.cue"}, ExitCommandError, ErrCodeNotFound},
		{"invalid manifest", []string{manifestPath("undeclared.cue")}, ExitCommandError, ErrCodeActions},
		{"bad script", []string{manifestPath("bad_script.cue")}, ExitCommandError, ErrCodeBuildFailed},
		{"failing action", []string{manifestPath("failing_action.cue")}, ExitFailure, ErrCodeDispatch},
		{"unbound selector", []string{manifestPath("page.cue"), "--selector", "#nope"}, ExitCommandError, ErrCodeNotFound},
		{"session without db", []string{manifestPath("page.cue"), "--session", "s"}, ExitCommandError, ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewStateCommand(&RootOptions{Format: "json"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))

			var resp stateResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
