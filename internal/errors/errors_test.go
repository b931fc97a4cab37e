package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestTableError_Error(t *testing.T) {
	err := New(ErrCategoryParse, CodeDateParse, "cannot parse date \"foo\"")
	expected := "[PARSE:DATE_PARSE] cannot parse date \"foo\""
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestTableError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := Wrap(ErrCategorySource, CodeSaveFailed, "save failed", cause)
	expected := "[SOURCE:SAVE_FAILED] save failed: database is locked"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestTableError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryStorage, CodeUploadFailed, "upload", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestTableError_Is(t *testing.T) {
	err1 := New(ErrCategoryConfig, CodeMissingSchema, "first")
	err2 := New(ErrCategoryConfig, CodeMissingSchema, "second")
	err3 := New(ErrCategoryConfig, CodeNoSchemas, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
	wrapped := fmt.Errorf("table: %w", err1)
	if !errors.Is(wrapped, err2) {
		t.Error("Is should see through fmt wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategorySource, CodeSaveFailed, true},
		{ErrCategorySource, CodeLoadFailed, true},
		{ErrCategorySource, CodeTableNotFound, false},
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryParse, CodeDateParse, false},
		{ErrCategoryValidation, CodeInvalidRows, false},
		{ErrCategoryConfig, CodeMissingSchema, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := NewParseError(CodeDateParse, "bad date")
	if GetCategory(err) != ErrCategoryParse {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryParse)
	}
	if GetCode(err) != CodeDateParse {
		t.Errorf("got %q, want %q", GetCode(err), CodeDateParse)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" || GetCode(fmt.Errorf("plain")) != "" {
		t.Error("non-TableError should return empty category and code")
	}
	if !IsParseError(err) || IsConfigError(err) {
		t.Error("IsParseError/IsConfigError mismatch")
	}
}

func TestWithDetails(t *testing.T) {
	err := NewValidationError(CodeInvalidRows, "2 rows invalid")
	detailed := err.WithDetails(map[string]interface{}{"rows": 2})

	if detailed.Details["rows"] != 2 {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	c := NewConfigError(CodeNoSchemas, "no schemas")
	if c.Category != ErrCategoryConfig || !IsConfigError(c) {
		t.Error("NewConfigError mismatch")
	}

	s := NewSourceError(CodeSaveFailed, "sqlite", cause)
	if s.Category != ErrCategorySource || !errors.Is(s, cause) || !s.Retryable {
		t.Error("NewSourceError mismatch")
	}

	st := NewStorageError(CodeObjectNotFound, "missing", cause)
	if st.Category != ErrCategoryStorage || st.Retryable {
		t.Error("NewStorageError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
