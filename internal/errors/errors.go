package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// UnsupportedGeometry indicates a source geometry type the discretizer cannot split
	UnsupportedGeometry ErrorCode = "UNSUPPORTED_GEOMETRY"
	// InvalidConfig indicates a run configuration that failed validation
	InvalidConfig ErrorCode = "INVALID_CONFIG"
	// BandMismatch indicates per-band arrays of different lengths
	BandMismatch ErrorCode = "BAND_MISMATCH"
	// InvalidScene indicates a scene file that could not be turned into an oracle
	InvalidScene ErrorCode = "INVALID_SCENE"
	// RangeFailed indicates a receiver range aborted while computing
	RangeFailed ErrorCode = "RANGE_FAILED"
	// StorageFailed indicates the result store rejected a write or read
	StorageFailed ErrorCode = "STORAGE_FAILED"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditInput suggests editing an input file
	EditInput FixActionType = "edit-input"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Description string        `json:"description,omitempty"`
}

// PropagationError is an error with a stable code, message, and suggestions
type PropagationError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a PropagationError with the default fixes for its code
func New(code ErrorCode, message string, cause error) *PropagationError {
	return &PropagationError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause
func Newf(code ErrorCode, format string, args ...interface{}) *PropagationError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *PropagationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *PropagationError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *PropagationError) WithDetails(details interface{}) *PropagationError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first PropagationError in err's chain,
// or InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var pe *PropagationError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return InternalError
}

// IsCode reports whether err carries the given code anywhere in its chain,
// following every branch of joined errors.
func IsCode(err error, code ErrorCode) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *PropagationError:
		return e.Code == code || IsCode(e.cause, code)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if IsCode(inner, code) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return IsCode(e.Unwrap(), code)
	default:
		return false
	}
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	UnsupportedGeometry: {
		{
			Type:        EditInput,
			Description: "Use POINT, LINESTRING or MULTILINESTRING source geometries",
		},
	},
	InvalidConfig: {
		{
			Type:        RunCommand,
			Command:     "noiseprop config show",
			Description: "Inspect the effective configuration",
		},
	},
	BandMismatch: {
		{
			Type:        EditInput,
			Description: "Give every source spectrum and wall absorption one value per configured band",
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
