package engine

import (
	"errors"
	"fmt"
)

// ErrNarrowingSpent is returned when a Narrowing is dispatched a second time.
var ErrNarrowingSpent = errors.New("narrowing already consumed by a dispatch")

// DispatchError represents a failed dispatch.
//
// Dispatch errors include:
//   - Reduction failure: a reducer (built-in or custom) rejected the action
//   - Not initialized: the engine has no store yet
//   - Narrowing spent: a filter result was dispatched twice
//   - Member out of range: a state read addressed a missing member
//
// The store keeps its previous state whenever a DispatchError is returned.
type DispatchError struct {
	// Code identifies the error category.
	Code DispatchErrorCode

	// Message is a human-readable description.
	Message string

	// Selector identifies the affected organism.
	Selector string

	// Method is the dispatched method name, if any.
	Method string

	// Err is the underlying cause.
	Err error
}

// DispatchErrorCode categorizes dispatch errors.
type DispatchErrorCode string

const (
	// ErrCodeReductionFailed indicates a reducer returned an error.
	ErrCodeReductionFailed DispatchErrorCode = "REDUCTION_FAILED"

	// ErrCodeNotInitialized indicates Init has not run.
	ErrCodeNotInitialized DispatchErrorCode = "NOT_INITIALIZED"

	// ErrCodeNarrowingSpent indicates a Narrowing was reused.
	ErrCodeNarrowingSpent DispatchErrorCode = "NARROWING_SPENT"

	// ErrCodeMemberOutOfRange indicates a member index past the live members.
	ErrCodeMemberOutOfRange DispatchErrorCode = "MEMBER_OUT_OF_RANGE"

	// ErrCodeInvalidArguments indicates arguments that cannot be normalized.
	ErrCodeInvalidArguments DispatchErrorCode = "INVALID_ARGUMENTS"

	// ErrCodeInvalidSelector indicates a filter selector that does not compile.
	ErrCodeInvalidSelector DispatchErrorCode = "INVALID_SELECTOR"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Selector != "" && e.Method != "" {
		return fmt.Sprintf("%s: %s (selector=%s, method=%s)", e.Code, msg, e.Selector, e.Method)
	}
	if e.Selector != "" {
		return fmt.Sprintf("%s: %s (selector=%s)", e.Code, msg, e.Selector)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code DispatchErrorCode) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsReductionError returns true if a reducer rejected the action.
// Uses errors.As to handle wrapped errors.
func IsReductionError(err error) bool {
	return hasCode(err, ErrCodeReductionFailed)
}

// IsNotInitialized returns true if the engine was used before Init.
func IsNotInitialized(err error) bool {
	return hasCode(err, ErrCodeNotInitialized)
}

// IsNarrowingSpent returns true if a Narrowing was dispatched twice.
func IsNarrowingSpent(err error) bool {
	return hasCode(err, ErrCodeNarrowingSpent)
}

// IsMemberOutOfRange returns true if a member index was out of range.
func IsMemberOutOfRange(err error) bool {
	return hasCode(err, ErrCodeMemberOutOfRange)
}
