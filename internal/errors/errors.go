package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// DetectionFailure indicates no language scored above the detection threshold
	DetectionFailure ErrorCode = "DETECTION_FAILURE"
	// ParseFailure indicates a single file could not be parsed
	ParseFailure ErrorCode = "PARSE_FAILURE"
	// StageTimeout indicates a stage exceeded its time budget
	StageTimeout ErrorCode = "STAGE_TIMEOUT"
	// StageFailure indicates a stage returned an error
	StageFailure ErrorCode = "STAGE_FAILURE"
	// CacheCorruption indicates a persisted cache entry failed to decode
	CacheCorruption ErrorCode = "CACHE_CORRUPTION"
	// InvalidOptions indicates the caller supplied unusable options
	InvalidOptions ErrorCode = "INVALID_OPTIONS"
	// StorageError indicates the sqlite store could not be opened or written
	StorageError ErrorCode = "STORAGE_ERROR"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// ChangeConfig suggests editing .codescope/config.*
	ChangeConfig FixActionType = "change-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Setting     string        `json:"setting,omitempty"`
	Description string        `json:"description,omitempty"`
}

// ScopeError is the error type returned across package boundaries.
type ScopeError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates a ScopeError with the default fixes for its code.
func New(code ErrorCode, message string, cause error) *ScopeError {
	return &ScopeError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *ScopeError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *ScopeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ScopeError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *ScopeError) WithDetails(details interface{}) *ScopeError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first ScopeError in err's chain, or
// InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var se *ScopeError
	if errors.As(err, &se) {
		return se.Code
	}
	return InternalError
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	var se *ScopeError
	for err != nil {
		if !errors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.cause
	}
	return false
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	StageTimeout: {
		{
			Type:        ChangeConfig,
			Setting:     "pipeline.stages.<id>.timeoutMs",
			Description: "Raise the stage timeout",
		},
		{
			Type:        RunCommand,
			Command:     "codescope analyze --exclude=<id>",
			Description: "Skip the slow stage",
		},
	},
	StageFailure: {
		{
			Type:        ChangeConfig,
			Setting:     "pipeline.stages.<id>.required=false",
			Description: "Mark the stage optional so the run degrades instead of failing",
		},
	},
	CacheCorruption: {
		{
			Type:        RunCommand,
			Command:     "codescope cache clear",
			Description: "Drop all persisted cache entries",
		},
	},
	StorageError: {
		{
			Type:        RunCommand,
			Command:     "codescope cache clear",
			Description: "Recreate the cache database",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
