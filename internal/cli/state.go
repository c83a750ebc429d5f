package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/requerio/internal/engine"
	"github.com/roach88/requerio/internal/journal"
	"github.com/roach88/requerio/internal/manifest"
	"github.com/roach88/requerio/internal/metrics"
	"github.com/roach88/requerio/internal/reducer"
)

// StateOptions holds flags for the state command.
type StateOptions struct {
	*RootOptions
	Database    string
	Session     string
	Selector    string // optional - print one organism only
	MetricsAddr string

	// SessionGenerator allows overriding the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator journal.SessionGenerator
}

// StateResult is the reconciled state after a manifest ran.
type StateResult struct {
	Manifest string       `json:"manifest"`
	Session  string       `json:"session,omitempty"`
	Actions  int          `json:"actions"`
	State    reducer.Tree `json:"state"`
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state <manifest>",
		Short: "Build a manifest and print the reconciled state",
		Long: `Build the engine a manifest describes, run its initial actions and print
the reconciled state of every organism.

With --db every dispatch is journaled under a session (a new UUIDv7 unless
--session is given; an existing session is continued). With --metrics-addr
dispatch metrics stay available at /metrics until interrupted.

Examples:
  requerio state ./page.cue
  requerio state ./page.cue --selector .child --format json
  requerio state ./page.cue --db ./requerio.db --session demo
  requerio state ./page.cue --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "journal session id (requires --db)")
	cmd.Flags().StringVar(&opts.Selector, "selector", "", "print this organism only")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address after the run")

	return cmd
}

func runState(opts *StateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.Session != "" && opts.Database == "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--session requires --db", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("manifest not found: %s", path), nil)
	}

	logger.Debug("loading manifest", "path", path)
	m, err := manifest.Load(path)
	if err != nil {
		verr := convertManifestError(path, err, ErrCodeLoadFailed)
		return formatter.Fail(ExitCommandError, verr.Code, "failed to load manifest", verr)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reg := prometheus.NewRegistry()
	mws := []engine.Middleware{metrics.New(reg).Middleware()}

	result := StateResult{Manifest: path, Actions: len(m.Actions)}
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

		result.Session = opts.Session
		if result.Session == "" {
			gen := opts.SessionGenerator
			if gen == nil {
				gen = journal.UUIDv7Generator{}
			}
			result.Session = gen.Generate()
		}
		// A nil clock continues after the session's last recorded seq.
		rec, err := journal.NewRecorder(ctx, j, result.Session, nil, logger)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to create recorder", err)
		}
		mws = append([]engine.Middleware{rec.Middleware()}, mws...)
		logger.Info("journaling", "db", opts.Database, "session", result.Session)
	}

	e, err := m.Build(logger, engine.WithMiddleware(mws...))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBuildFailed, "failed to build engine", err)
	}
	if err := m.Apply(e); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDispatch, "manifest action failed", err)
	}

	tree, err := e.State()
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeDispatch, "failed to reconcile state", err)
	}
	if opts.Selector != "" {
		s, ok := tree[opts.Selector]
		if !ok {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("organism %q is not bound", opts.Selector), nil)
		}
		tree = reducer.Tree{opts.Selector: s}
	}
	result.State = tree

	if err := outputState(formatter, result); err != nil {
		return err
	}

	if opts.MetricsAddr == "" {
		return nil
	}
	return serveUntilSignal(ctx, opts.MetricsAddr, reg, logger, formatter)
}

// outputState prints the state as a CLIResponse or as indented JSON under
// a short header.
func outputState(formatter *OutputFormatter, result StateResult) error {
	if formatter.Format == "json" {
		return json.NewEncoder(formatter.Writer).Encode(CLIResponse{
			Status:  "ok",
			Data:    result,
			Session: result.Session,
		})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Manifest: %s\n", result.Manifest)
	if result.Session != "" {
		fmt.Fprintf(w, "Session: %s\n", result.Session)
	}
	fmt.Fprintf(w, "Actions: %d\n", result.Actions)

	selectors := make([]string, 0, len(result.State))
	for sel := range result.State {
		selectors = append(selectors, sel)
	}
	sort.Strings(selectors)
	for _, sel := range selectors {
		data, err := json.MarshalIndent(result.State[sel], "  ", "  ")
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", sel, err)
		}
		fmt.Fprintf(w, "\n%s\n  %s\n", sel, data)
	}
	return nil
}

// serveUntilSignal exposes reg on addr until SIGINT/SIGTERM or until ctx
// is cancelled.
func serveUntilSignal(parent context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger, formatter *OutputFormatter) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen for metrics", err)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	logger.Info("serving metrics", "addr", ln.Addr().String())
	fmt.Fprintf(formatter.GetErrWriter(), "Serving metrics on http://%s/metrics\n", ln.Addr())
	fmt.Fprintln(formatter.GetErrWriter(), "Press Ctrl-C to stop.")

	if err := metrics.Serve(ctx, ln, reg); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "metrics server error", err)
	}
	logger.Info("metrics server stopped")
	return nil
}
