// internal/core/errors_test.go
package core

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_ErrorWithCause(t *testing.T) {
	err := Errorf(ErrInsufficientCapital, "need %d", 5)
	if err.Error() != "[INSUFFICIENT_CAPITAL] insufficient capital: need 5" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(ErrSessionNotFound, ErrSessionNotFound) {
		t.Error("same error should match")
	}
	wrapped := WrapError(ErrInsufficientPosition, errors.New("sell 200, hold 100"))
	if !errors.Is(wrapped, ErrInsufficientPosition) {
		t.Error("wrapped error should match its base by code")
	}
	if errors.Is(wrapped, ErrInsufficientCapital) {
		t.Error("different codes should not match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrCollectorFailed, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if wrapped.Code != ErrCollectorFailed.Code {
		t.Error("code not preserved")
	}
}
