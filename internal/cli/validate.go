package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/requerio/internal/manifest"
)

// ManifestSummary describes one valid manifest.
type ManifestSummary struct {
	Path      string `json:"path"`
	Name      string `json:"name,omitempty"`
	Organisms int    `json:"organisms"`
	Layout    int    `json:"layout"`
	Actions   int    `json:"actions"`
	Reducer   bool   `json:"reducer"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Manifests []ManifestSummary `json:"manifests,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Validate manifests without running them",
		Long: `Validate CUE manifests without building an engine.

Checks each manifest against the schema, reads the referenced document and
reducer files, compiles the reducer script and resolves the layout
selectors. A manifest may be a .cue file or a directory holding one CUE
package.

Exit codes:
  0 - All manifests valid
  1 - One or more manifests invalid
  2 - Command error (manifest not found, etc.)

Examples:
  requerio validate ./page.cue
  requerio validate ./pages/list ./pages/form.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("manifest not found: %s", path), nil)
		}
	}

	result := ValidationResult{Valid: true}
	for _, path := range paths {
		formatter.VerboseLog("Validating manifest: %s", path)
		summary, verr := ValidateManifest(path)
		if verr != nil {
			result.Valid = false
			result.Errors = append(result.Errors, *verr)
			continue
		}
		result.Manifests = append(result.Manifests, *summary)
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateManifest loads the manifest at path and checks everything Build
// would need: schema, files, reducer script and layout selectors.
func ValidateManifest(path string) (*ManifestSummary, *ValidationError) {
	m, err := manifest.Load(path)
	if err != nil {
		verr := convertManifestError(path, err, ErrCodeLoadFailed)
		return nil, &verr
	}

	if _, err := m.ScriptReducer(slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		verr := convertManifestError(path, err, ErrCodeReducer)
		verr.Field = "reducer"
		return nil, &verr
	}
	if _, err := m.StaticLayout(); err != nil {
		verr := convertManifestError(path, err, ErrCodeLayout)
		verr.Field = "layout"
		return nil, &verr
	}
	if _, err := m.Document(); err != nil {
		verr := convertManifestError(path, err, ErrCodeDocument)
		verr.Field = "document"
		return nil, &verr
	}

	return &ManifestSummary{
		Path:      path,
		Name:      m.Name,
		Organisms: len(m.Organisms),
		Layout:    len(m.Layout),
		Actions:   len(m.Actions),
		Reducer:   m.Reducer != nil,
	}, nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	for _, s := range result.Manifests {
		name := s.Name
		if name == "" {
			name = filepath.Base(s.Path)
		}
		fmt.Fprintf(formatter.Writer, "✓ %s: %d organisms, %d layout entries, %d actions\n",
			name, s.Organisms, s.Layout, s.Actions)
	}
	fmt.Fprintln(formatter.Writer, "✓ All manifests valid")
	return nil
}

// outputValidationErrors outputs every collected validation error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", err.Path, err.Line)
		} else {
			fmt.Fprintln(formatter.Writer, err.Path)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
