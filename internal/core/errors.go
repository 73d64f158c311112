// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps base with a formatted cause.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Simulation errors
	ErrInsufficientHistory    = &Error{Code: "INSUFFICIENT_HISTORY", Message: "not enough price history for the simulation"}
	ErrInsufficientCapital    = &Error{Code: "INSUFFICIENT_CAPITAL", Message: "insufficient capital"}
	ErrInsufficientPosition   = &Error{Code: "INSUFFICIENT_POSITION", Message: "insufficient position"}
	ErrInvalidStateTransition = &Error{Code: "INVALID_STATE_TRANSITION", Message: "operation not allowed in current session state"}
	ErrSessionNotFound        = &Error{Code: "SESSION_NOT_FOUND", Message: "simulation session not found"}
	ErrSettlementRequired     = &Error{Code: "SETTLEMENT_REQUIRED", Message: "settlement price required on the final day"}
	ErrInvalidParameter       = &Error{Code: "INVALID_PARAMETER", Message: "invalid parameter"}

	// Journal errors
	ErrRecordNotFound = &Error{Code: "RECORD_NOT_FOUND", Message: "trade record not found"}

	// Data errors
	ErrNoData = &Error{Code: "NO_DATA", Message: "no data available"}

	// Collector errors
	ErrCollectorFailed = &Error{Code: "COLLECTOR_FAILED", Message: "market data collector failed"}

	// Storage errors
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// API errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}

	// LLM errors
	ErrLLMFailed = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
)
