package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/requerio/internal/engine"
	"github.com/roach88/requerio/internal/ir"
	"github.com/roach88/requerio/internal/journal"
	"github.com/roach88/requerio/internal/manifest"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session  string   `json:"session"`
	Actions  int      `json:"actions"`
	Failures int      `json:"failures"`
	Intact   bool     `json:"intact"`
	Replayed bool     `json:"replayed"`
	Matches  bool     `json:"matches"`
	Problems []string `json:"problems,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []ReplaySessionResult `json:"sessions"`
	TotalSessions int                   `json:"total_sessions"`
	AllVerified   bool                  `json:"all_verified"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [manifest]",
		Short: "Verify journal integrity and replay sessions",
		Long: `Verify every journaled action of a session: its content-addressed id and
its state hash are recomputed from the stored columns.

Given the manifest a session was recorded from (with "requerio state"),
the manifest is also run again under the same session id and the new
journal is compared entry by entry with the stored one. Any difference
means the engine is not deterministic for that manifest, or that the
session holds more than one run.

Exit codes:
  0 - All sessions verified
  1 - Integrity or determinism verification failed
  2 - Command error (journal not found, etc.)

Examples:
  requerio replay --db ./requerio.db
  requerio replay --db ./requerio.db --session demo
  requerio replay ./page.cue --db ./requerio.db --session demo --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var manifestPath string
			if len(args) == 1 {
				manifestPath = args[0]
			}
			return runReplay(opts, manifestPath, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, manifestPath string, cmd *cobra.Command) error {
	ctx := context.Background()

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	var m *manifest.Manifest
	if manifestPath != "" {
		if _, err := os.Stat(manifestPath); err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: manifest not found: %s", ErrCodeNotFound, manifestPath))
		}
		if m, err = manifest.Load(manifestPath); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to load manifest", ErrCodeLoadFailed), err)
		}
	}

	var sessions []string
	if opts.Session != "" {
		sessions = []string{opts.Session}
	} else {
		all, err := j.Sessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		for _, s := range all {
			sessions = append(sessions, s.ID)
		}
	}

	if len(sessions) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{
				Sessions:    []ReplaySessionResult{},
				AllVerified: true,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in journal.")
		return nil
	}

	result := ReplayResult{
		Sessions:      make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions: len(sessions),
		AllVerified:   true,
	}
	for _, session := range sessions {
		sessionResult, err := verifySession(ctx, j, session, m)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", session), err)
		}
		result.Sessions = append(result.Sessions, sessionResult)
		if !sessionResult.Intact || (sessionResult.Replayed && !sessionResult.Matches) {
			result.AllVerified = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// verifySession checks the stored entries of one session and, when m is
// given, replays it.
func verifySession(ctx context.Context, j *journal.Journal, session string, m *manifest.Manifest) (ReplaySessionResult, error) {
	entries, err := j.ReadSession(ctx, session)
	if err != nil {
		return ReplaySessionResult{}, err
	}
	if len(entries) == 0 {
		return ReplaySessionResult{}, fmt.Errorf("%s: session not found", ErrCodeNotFound)
	}

	res := ReplaySessionResult{Session: session, Actions: len(entries), Intact: true}
	for _, e := range entries {
		if e.Error != "" {
			res.Failures++
		}
		if problem := checkEntry(e); problem != "" {
			res.Intact = false
			res.Problems = append(res.Problems, problem)
		}
	}

	if m == nil {
		return res, nil
	}
	replayed, err := replayManifest(ctx, m, session)
	if err != nil {
		return ReplaySessionResult{}, err
	}
	res.Replayed = true
	res.Matches = true
	if diff := compareEntries(entries, replayed); diff != "" {
		res.Matches = false
		res.Problems = append(res.Problems, diff)
	}
	return res, nil
}

// checkEntry recomputes an entry's id and state hash from its stored
// columns. It returns a description of the first mismatch, or "".
func checkEntry(e journal.Entry) string {
	args, err := ir.ParseJSON(e.Args)
	if err != nil {
		return fmt.Sprintf("seq %d: unreadable args: %v", e.Seq, err)
	}
	list, ok := args.(ir.Array)
	if !ok {
		return fmt.Sprintf("seq %d: args are not a list", e.Seq)
	}
	var target ir.Target
	if err := json.Unmarshal(e.Target, &target); err != nil {
		return fmt.Sprintf("seq %d: unreadable target: %v", e.Seq, err)
	}

	a := ir.Action{Type: e.Type, Selector: e.Selector, Args: []ir.Value(list), Target: target}
	id, err := ir.ActionID(e.Session, e.Seq, a)
	if err != nil {
		return fmt.Sprintf("seq %d: %v", e.Seq, err)
	}
	if id != e.ID {
		return fmt.Sprintf("seq %d: id mismatch: stored %s, computed %s", e.Seq, truncateID(e.ID), truncateID(id))
	}

	hash, err := ir.StateHashJSON(e.State)
	if err != nil {
		return fmt.Sprintf("seq %d: unreadable state: %v", e.Seq, err)
	}
	if hash != e.StateHash {
		return fmt.Sprintf("seq %d: state hash mismatch: stored %s, computed %s", e.Seq, truncateID(e.StateHash), truncateID(hash))
	}
	return ""
}

// replayManifest runs m the way the state command does, recording into an
// in-memory journal under session, and returns the new entries.
func replayManifest(ctx context.Context, m *manifest.Manifest, session string) ([]journal.Entry, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mem, err := journal.Open(":memory:")
	if err != nil {
		return nil, err
	}
	defer mem.Close()

	rec, err := journal.NewRecorder(ctx, mem, session, journal.NewClock(), logger)
	if err != nil {
		return nil, err
	}
	e, err := m.Build(logger, engine.WithMiddleware(rec.Middleware()))
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	// A failed action ends the recorded run too; the comparison shows it.
	if err := m.Apply(e); err == nil {
		if _, err := e.State(); err != nil {
			return nil, fmt.Errorf("failed to reconcile state: %w", err)
		}
	}
	return mem.ReadSession(ctx, session)
}

// compareEntries compares stored and replayed entries by id, state hash
// and error. It returns a description of the first difference, or "".
func compareEntries(stored, replayed []journal.Entry) string {
	for i := range min(len(stored), len(replayed)) {
		a, b := stored[i], replayed[i]
		switch {
		case a.ID != b.ID:
			return fmt.Sprintf("seq %d: replay dispatched %s %s, journal has %s %s", a.Seq, b.Type, b.Selector, a.Type, a.Selector)
		case a.StateHash != b.StateHash:
			return fmt.Sprintf("seq %d: %s %s produced a different state", a.Seq, a.Type, a.Selector)
		case a.Error != b.Error:
			return fmt.Sprintf("seq %d: %s %s error differs: journal %q, replay %q", a.Seq, a.Type, a.Selector, a.Error, b.Error)
		}
	}
	if len(stored) != len(replayed) {
		return fmt.Sprintf("journal has %d actions, replay produced %d", len(stored), len(replayed))
	}
	return ""
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllVerified {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeDeterminism,
			Message: "replay verification failed",
		}
		for _, s := range result.Sessions {
			if !s.Intact {
				response.Error.Code = ErrCodeIntegrity
				break
			}
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllVerified {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		ok := s.Intact && (!s.Replayed || s.Matches)
		status := "✓"
		if !ok {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Session: %s\n", status, s.Session)
		fmt.Fprintf(w, "  Actions: %d (%d failed)\n", s.Actions, s.Failures)
		if verbose {
			fmt.Fprintf(w, "  Intact: %v\n", s.Intact)
			fmt.Fprintf(w, "  Replayed: %v\n", s.Replayed)
		}
		for _, p := range s.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
		fmt.Fprintln(w)
	}

	if result.AllVerified {
		fmt.Fprintln(w, "✓ All sessions verified")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay verification failed")
	return NewExitError(ExitFailure, "replay verification failed")
}
