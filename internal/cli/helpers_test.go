package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// recordSession journals page.cue into a fresh database under session and
// returns the database path.
func recordSession(t *testing.T, session string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "journal.db")
	_, err := execute(t, NewStateCommand(&RootOptions{Format: "json"}),
		manifestPath("page.cue"), "--db", db, "--session", session)
	require.NoError(t, err)
	return db
}
