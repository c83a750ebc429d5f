package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/requerio/internal/harness"
	"github.com/roach88/requerio/internal/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Session  string

	// SessionGenerator allows overriding the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator journal.SessionGenerator
}

// RunResult is one scenario run with its trace and final state.
type RunResult struct {
	Scenario string               `json:"scenario"`
	Session  string               `json:"session"`
	Pass     bool                 `json:"pass"`
	Errors   []string             `json:"errors,omitempty"`
	Trace    []harness.TraceEvent `json:"trace"`
	State    map[string]any       `json:"state"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario and show its trace",
		Long: `Run a single YAML scenario and print its trace, its assertion results
and, with --verbose or --format json, the final reconciled state.

By default the run is recorded into an in-memory journal under the
scenario's session. With --db it is recorded into a SQLite journal instead;
a scenario without a session then gets a new UUIDv7 session id unless
--session is given.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (scenario not found, invalid scenario, etc.)

Examples:
  requerio run ./scenarios/toggle.yaml
  requerio run ./scenarios/toggle.yaml --db ./requerio.db
  requerio run ./scenarios/toggle.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "journal session id")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenario not found: %s", path), nil)
	}
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load scenario", err)
	}
	if opts.Session != "" {
		scenario.Session = opts.Session
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.Database != "" {
		j, err := journal.Open(opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		if scenario.Session == "" {
			gen := opts.SessionGenerator
			if gen == nil {
				gen = journal.UUIDv7Generator{}
			}
			scenario.Session = gen.Generate()
		}
		runOpts = append(runOpts, harness.WithJournal(j))
	}

	logger.Debug("running scenario", "name", scenario.Name, "path", path)
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBuildFailed, "failed to run scenario", err)
	}

	run := RunResult{
		Scenario: scenario.Name,
		Session:  result.Session,
		Pass:     result.Pass,
		Errors:   result.Errors,
		Trace:    result.Trace,
		State:    result.State,
	}
	if opts.Format == "json" {
		return outputRunJSON(cmd, run)
	}
	return outputRunText(cmd, run, opts.Verbose)
}

// outputRunJSON outputs the run result as JSON.
func outputRunJSON(cmd *cobra.Command, run RunResult) error {
	response := CLIResponse{
		Status:  "ok",
		Data:    run,
		Session: run.Session,
	}
	if !run.Pass {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("scenario %s failed", run.Scenario),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !run.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", run.Scenario))
	}
	return nil
}

// outputRunText outputs the run result as text.
func outputRunText(cmd *cobra.Command, run RunResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Scenario: %s\n", run.Scenario)
	fmt.Fprintf(w, "Session: %s\n", run.Session)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Trace (%d actions):\n", len(run.Trace))
	for _, event := range run.Trace {
		fmt.Fprintf(w, "  %s\n", event)
	}
	fmt.Fprintln(w)

	if verbose {
		data, err := json.MarshalIndent(run.State, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render state: %w", err)
		}
		fmt.Fprintln(w, "State:")
		fmt.Fprintln(w, string(data))
		fmt.Fprintln(w)
	}

	if run.Pass {
		fmt.Fprintf(w, "✓ %s\n", run.Scenario)
		return nil
	}

	fmt.Fprintf(w, "✗ %s\n", run.Scenario)
	for _, e := range run.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", run.Scenario))
}
