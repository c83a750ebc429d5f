package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/requerio/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // optional - list sessions when empty
	Selector string // optional - filter to one organism
	Type     string // optional - filter to one action type
}

// TraceEvent is one journal entry in the timeline.
type TraceEvent struct {
	Seq       int64           `json:"seq"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Selector  string          `json:"selector"`
	Method    string          `json:"method"`
	Args      json.RawMessage `json:"args"`
	Target    json.RawMessage `json:"target"`
	StateHash string          `json:"state_hash"`
	State     json.RawMessage `json:"state,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Failures    int            `json:"failures"`
	ByType      map[string]int `json:"by_type"`
	BySelector  map[string]int `json:"by_selector"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  string       `json:"session"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journaled actions of a session",
		Long: `Show the journal timeline of one session: every dispatch in seq order with
its arguments, member target and resulting state hash. Failed dispatches
are listed with their error.

Without --session, lists the sessions in the journal.

Examples:
  requerio trace --db ./requerio.db
  requerio trace --db ./requerio.db --session demo
  requerio trace --db ./requerio.db --session demo --selector .child
  requerio trace --db ./requerio.db --session demo --type ADD_CLASS --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to show (lists sessions when empty)")
	cmd.Flags().StringVar(&opts.Selector, "selector", "", "show only actions on this organism")
	cmd.Flags().StringVar(&opts.Type, "type", "", "show only actions of this type")

	return cmd
}

// openJournal opens an existing journal. journal.Open would create a
// missing file, which is never what a reading command wants.
func openJournal(path string) (*journal.Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: journal not found: %s", ErrCodeNotFound, path))
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to open journal", ErrCodeJournal), err)
	}
	return j, nil
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	if opts.Session == "" {
		sessions, err := j.Sessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		return outputSessions(cmd, opts.Format, sessions)
	}

	var entries []journal.Entry
	if opts.Selector != "" {
		entries, err = j.ReadSelector(ctx, opts.Session, opts.Selector)
	} else {
		entries, err = j.ReadSession(ctx, opts.Session)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	if len(entries) == 0 {
		if opts.Format == "json" {
			return outputTraceJSON(cmd, TraceResult{
				Session:  opts.Session,
				Timeline: []TraceEvent{},
				Stats:    TraceStats{ByType: map[string]int{}, BySelector: map[string]int{}},
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No actions found for session: %s\n", opts.Session)
		return nil
	}

	result := TraceResult{
		Session:  opts.Session,
		Timeline: buildTimeline(entries, opts.Type, opts.Verbose || opts.Format == "json"),
	}
	result.Stats = buildStats(result.Timeline)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTimeline converts journal entries to timeline events, keeping only
// typeFilter when it is set. States are carried only when withState is set.
func buildTimeline(entries []journal.Entry, typeFilter string, withState bool) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		if typeFilter != "" && e.Type != typeFilter {
			continue
		}
		event := TraceEvent{
			Seq:       e.Seq,
			ID:        e.ID,
			Type:      e.Type,
			Selector:  e.Selector,
			Method:    e.Method,
			Args:      e.Args,
			Target:    e.Target,
			StateHash: e.StateHash,
			Error:     e.Error,
		}
		if withState {
			event.State = e.State
		}
		timeline = append(timeline, event)
	}
	return timeline
}

func buildStats(timeline []TraceEvent) TraceStats {
	stats := TraceStats{
		TotalEvents: len(timeline),
		ByType:      map[string]int{},
		BySelector:  map[string]int{},
	}
	for _, event := range timeline {
		stats.ByType[event.Type]++
		stats.BySelector[event.Selector]++
		if event.Error != "" {
			stats.Failures++
		}
	}
	return stats
}

// outputSessions lists journal sessions.
func outputSessions(cmd *cobra.Command, format string, sessions []journal.Session) error {
	if format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: sessions})
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return nil
	}
	fmt.Fprintf(w, "Sessions: %d\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s  %d actions, %d failed, seq %d..%d\n", s.ID, s.Actions, s.Failures, s.FirstSeq, s.LastSeq)
	}
	return nil
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status:  "ok",
		Data:    result,
		Session: result.Session,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Session: %s\n", result.Session)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no actions)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Actions: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Failures:      %d\n", result.Stats.Failures)
	for _, sel := range sortedKeys(result.Stats.BySelector) {
		fmt.Fprintf(w, "  %s: %d\n", sel, result.Stats.BySelector[sel])
	}

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s %s %s", event.Seq, event.Type, event.Selector, event.Args)
	if len(event.Target) > 0 && string(event.Target) != "null" {
		fmt.Fprintf(w, " member=%s", event.Target)
	}
	fmt.Fprintln(w)
	if event.Error != "" {
		fmt.Fprintf(w, "       Error: %s\n", event.Error)
	}
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
		fmt.Fprintf(w, "       State: %s %s\n", truncateID(event.StateHash), event.State)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
