// Package errors provides structured error types for tabledit.
// Every error carries a category, a code, a message and a retryable flag so
// callers can tell user-input problems from wiring mistakes and collaborator failures.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by origin.
type ErrorCategory string

const (
	ErrCategoryParse      ErrorCategory = "PARSE"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategorySource     ErrorCategory = "SOURCE"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategorySession    ErrorCategory = "SESSION"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Parse codes
	CodeDateParse    = "DATE_PARSE"
	CodeNumberParse  = "NUMBER_PARSE"
	CodeBooleanParse = "BOOLEAN_PARSE"
	CodeClipboard    = "CLIPBOARD"
	CodeTypeMismatch = "TYPE_MISMATCH"

	// Validation codes
	CodeInvalidRows   = "INVALID_ROWS"
	CodeNothingToSave = "NOTHING_TO_SAVE"

	// Config codes
	CodeMissingSchema   = "MISSING_SCHEMA"
	CodeNoSchemas       = "NO_SCHEMAS"
	CodeDuplicateColumn = "DUPLICATE_COLUMN"
	CodeDuplicateRow    = "DUPLICATE_ROW"
	CodeGhostCollision  = "GHOST_COLLISION"
	CodeInvalidColumn   = "INVALID_COLUMN"
	CodeInvalidSchema   = "INVALID_SCHEMA"

	// Source codes
	CodeTableNotFound = "TABLE_NOT_FOUND"
	CodeSaveFailed    = "SAVE_FAILED"
	CodeLoadFailed    = "LOAD_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeCorrupt        = "CORRUPT"

	// Session codes
	CodeSessionNotFound = "SESSION_NOT_FOUND"
	CodeSessionLimit    = "SESSION_LIMIT"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// TableError is the structured error type used throughout tabledit.
type TableError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *TableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *TableError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *TableError) Is(target error) bool {
	var t *TableError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new TableError.
func New(category ErrorCategory, code, message string) *TableError {
	return &TableError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new TableError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *TableError {
	return &TableError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *TableError) WithDetails(details map[string]interface{}) *TableError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var te *TableError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a TableError.
func GetCategory(err error) ErrorCategory {
	var te *TableError
	if errors.As(err, &te) {
		return te.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a TableError.
func GetCode(err error) string {
	var te *TableError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// isRetryable marks collaborator I/O failures as retryable. The core never
// retries on its own; callers decide.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategorySource && code == CodeSaveFailed:
		return true
	case category == ErrCategorySource && code == CodeLoadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewParseError(code, message string) *TableError {
	return New(ErrCategoryParse, code, message)
}

func NewValidationError(code, message string) *TableError {
	return New(ErrCategoryValidation, code, message)
}

func NewConfigError(code, message string) *TableError {
	return New(ErrCategoryConfig, code, message)
}

func NewSourceError(code, message string, cause error) *TableError {
	return Wrap(ErrCategorySource, code, message, cause)
}

func NewStorageError(code, message string, cause error) *TableError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewSessionError(code, message string) *TableError {
	return New(ErrCategorySession, code, message)
}

func NewInternalError(message string, cause error) *TableError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

// IsParseError reports whether err is a parse/format error.
func IsParseError(err error) bool {
	return GetCategory(err) == ErrCategoryParse
}

// IsConfigError reports whether err indicates a wiring mistake.
func IsConfigError(err error) bool {
	return GetCategory(err) == ErrCategoryConfig
}
