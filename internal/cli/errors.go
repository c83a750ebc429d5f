package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/requerio/internal/manifest"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No manifest or scenario files found
	ErrCodeLoadFailed  = "E004" // Manifest or scenario load failed
	ErrCodeNotFound    = "E005" // Path, session or organism not found
	ErrCodeBuildFailed = "E006" // Engine build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Manifest errors
	ErrCodeDocument  = "E101" // Missing or unreadable document
	ErrCodeOrganisms = "E102" // Bad organism list
	ErrCodeLayout    = "E103" // Bad layout entry
	ErrCodeReducer   = "E104" // Bad reducer script or timeout
	ErrCodeActions   = "E105" // Bad initial action
	ErrCodeSchema    = "E110" // CUE schema violation

	// Journal errors
	ErrCodeJournal  = "E201" // Journal could not be opened or read
	ErrCodeDispatch = "E202" // A dispatch failed

	// Outcome codes reported alongside exit code 1
	ErrCodeTestFailed  = "E_TEST_FAILED"
	ErrCodeDeterminism = "E_DETERMINISM"
	ErrCodeIntegrity   = "E_INTEGRITY"
)

// MapFieldToErrorCode maps a manifest error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "document", "html", "file":
		return ErrCodeDocument
	case "organisms":
		return ErrCodeOrganisms
	case "layout", "layout.metrics", "layout.rect":
		return ErrCodeLayout
	case "reducer", "reducer.timeout":
		return ErrCodeReducer
	case "actions", "actions.organism", "actions.args", "actions.member":
		return ErrCodeActions
	case "cue":
		return ErrCodeSchema
	default:
		return ErrCodeGeneric
	}
}

// ValidationError is one manifest problem with its source line.
type ValidationError struct {
	Path    string `json:"path"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", e.Path, e.Line, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
}

// convertManifestError converts a manifest error to a ValidationError with
// position info. Errors without a field fall back to fallback.
func convertManifestError(path string, err error, fallback string) ValidationError {
	var compileErr *manifest.CompileError
	if errors.As(err, &compileErr) {
		ve := ValidationError{
			Path:    path,
			Field:   compileErr.Field,
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
		}
		if compileErr.Pos.IsValid() {
			ve.Line = compileErr.Pos.Line()
		}
		return ve
	}
	return ValidationError{Path: path, Code: fallback, Message: err.Error()}
}
