// Package errors provides structured error handling for the annotation
// pipeline.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, store)
//   - 3XX: Parse errors
//   - 4XX: Annotation errors
//   - 5XX: Internal errors
package errors

import (
	stderrors "errors"
	"fmt"
)

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig   Category = "CONFIG"
	CategoryIO       Category = "IO"
	CategoryParse    Category = "PARSE"
	CategoryAnnotate Category = "ANNOTATE"
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error, the run must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the run continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigFile    = "ERR_102_CONFIG_FILE"

	ErrCodeStoreOpen  = "ERR_201_STORE_OPEN"
	ErrCodeStoreIO    = "ERR_202_STORE_IO"
	ErrCodeFileAccess = "ERR_203_FILE_ACCESS"

	ErrCodeParseRecord = "ERR_301_PARSE_RECORD"

	ErrCodeAnnotate = "ERR_401_ANNOTATE"

	ErrCodeInternal = "ERR_501_INTERNAL"
)

// PipelineError is the structured error type for the pipeline. Severity
// drives the recovery decision: fatal errors abort the run, everything else
// is recovered at the layer that observed it.
type PipelineError struct {
	Code     string
	Message  string
	Category Category
	Severity Severity
	Cause    error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches PipelineErrors by code so errors.Is works across wrapping.
func (e *PipelineError) Is(target error) bool {
	if t, ok := target.(*PipelineError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a PipelineError; category and severity derive from the code.
func New(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a PipelineError with a formatted message.
func Newf(code string, format string, args ...any) *PipelineError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a PipelineError from an existing error, keeping it as cause.
func Wrap(code string, err error) *PipelineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StoreOpenError creates a fatal store-open error.
func StoreOpenError(message string, cause error) *PipelineError {
	return New(ErrCodeStoreOpen, message, cause)
}

// StoreIOError creates a fatal store read/write error.
func StoreIOError(message string, cause error) *PipelineError {
	return New(ErrCodeStoreIO, message, cause)
}

// ParseError creates a fatal record-parse error.
func ParseError(message string, cause error) *PipelineError {
	return New(ErrCodeParseRecord, message, cause)
}

// AnnotateError creates a recoverable per-item annotation error.
func AnnotateError(message string, cause error) *PipelineError {
	return New(ErrCodeAnnotate, message, cause)
}

// IsFatal reports whether an error must abort the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or empty string for foreign errors.
func GetCode(err error) string {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func categoryFromCode(code string) Category {
	switch {
	case len(code) > 4 && code[4] == '1':
		return CategoryConfig
	case len(code) > 4 && code[4] == '2':
		return CategoryIO
	case len(code) > 4 && code[4] == '3':
		return CategoryParse
	case len(code) > 4 && code[4] == '4':
		return CategoryAnnotate
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreOpen, ErrCodeStoreIO, ErrCodeParseRecord, ErrCodeConfigFile, ErrCodeInternal:
		return SeverityFatal
	case ErrCodeConfigInvalid:
		return SeverityWarning
	default:
		return SeverityError
	}
}
