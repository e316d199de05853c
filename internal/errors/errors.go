package errors

import (
	"errors"
	"fmt"

	"gosva/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetCode returns the outermost AppError code, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeComputationError = "COMPUTATION_ERROR"
	CodeDesignInvalid    = "DESIGN_INVALID"
	CodeBatchInvalid     = "BATCH_INVALID"
	CodeIOError          = "IO_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func Computation(message string, cause error) *AppError {
	return &AppError{Code: CodeComputationError, Message: message, Cause: cause}
}

func IOError(message string, cause error) *AppError {
	return &AppError{Code: CodeIOError, Message: message, Cause: cause}
}

// Classify wraps a numerical error with the code of its domain sentinel.
// Shape and input problems are INVALID_INPUT, rank and nesting problems
// DESIGN_INVALID, undersized batches BATCH_INVALID; anything else is a
// COMPUTATION_ERROR. An error that already carries a code keeps it.
func Classify(message string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return Wrap(err, message)
	}
	code := CodeComputationError
	switch {
	case errors.Is(err, core.ErrInvalidInput), core.IsDimensionError(err):
		code = CodeInvalidInput
	case core.IsRankError(err):
		code = CodeDesignInvalid
	case core.IsBatchError(err):
		code = CodeBatchInvalid
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// ExitCode maps an error code to a process exit status: 2 for problems
// with the caller's inputs, 1 otherwise.
func ExitCode(err error) int {
	switch GetCode(err) {
	case CodeInvalidInput, CodeConfigInvalid, CodeDesignInvalid, CodeBatchInvalid:
		return 2
	default:
		return 1
	}
}
