// Package errors defines the coded fatal-error taxonomy for the
// preprocessing pipeline. Row-level data-quality problems are counted in
// statistics and never surface here; these errors are the conditions that
// must abort a run with a non-zero exit.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a class of fatal pipeline failure.
type Code string

const (
	// CodeInputNotFound indicates the input dataset file does not exist.
	CodeInputNotFound Code = "INPUT_NOT_FOUND"
	// CodeInputUnreadable indicates the input file exists but could not be read.
	CodeInputUnreadable Code = "INPUT_UNREADABLE"
	// CodeNoUsableRows indicates parsing produced zero accepted rows.
	CodeNoUsableRows Code = "NO_USABLE_ROWS"
	// CodeZeroRevenue indicates aggregate revenue is exactly zero, which
	// means quantity or unit-price parsing went wrong at scale.
	CodeZeroRevenue Code = "ZERO_REVENUE"
	// CodeEmptyMatrix indicates a variant's filters eliminated all data.
	CodeEmptyMatrix Code = "EMPTY_MATRIX"
	// CodeVariantCount indicates the run wrote an unexpected number of artifacts.
	CodeVariantCount Code = "VARIANT_COUNT_MISMATCH"
	// CodeExportFailed indicates an artifact could not be written.
	CodeExportFailed Code = "EXPORT_FAILED"
)

// PipelineError is a fatal pipeline error with a stable code and optional
// structured details for triage.
type PipelineError struct {
	Code    Code
	Message string
	Details any
	Err     error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a PipelineError with the same code, so
// sentinel comparisons with errors.Is work regardless of message details.
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if !errors.As(target, &pe) {
		return false
	}
	return e.Code == pe.Code
}

// New creates a new PipelineError.
func New(code Code, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// NewWithDetails creates a new PipelineError with structured details.
func NewWithDetails(code Code, message string, details any) *PipelineError {
	return &PipelineError{Code: code, Message: message, Details: details}
}

// Wrap creates a new PipelineError wrapping a cause.
func Wrap(code Code, message string, err error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Err: err}
}

// Sentinel errors for errors.Is comparisons.
var (
	ErrInputNotFound = New(CodeInputNotFound, "input dataset not found")
	ErrNoUsableRows  = New(CodeNoUsableRows, "no usable rows after parsing")
	ErrZeroRevenue   = New(CodeZeroRevenue, "aggregate revenue is zero")
	ErrEmptyMatrix   = New(CodeEmptyMatrix, "retention matrix is empty")
	ErrVariantCount  = New(CodeVariantCount, "unexpected variant count")
)
