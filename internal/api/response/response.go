// internal/api/response/response.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/papertrader/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Count     *int      `json:"count,omitempty"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	})
}

// List writes a success response for a collection, with its size in meta.
func List(w http.ResponseWriter, data any, count int) {
	write(w, http.StatusOK, SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC(), Count: &count},
	})
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, err error) {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}

	write(w, status, ErrorResponse{Error: detail})
}

// Fail writes err with the status its code maps to.
func Fail(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}

var statusByCode = map[string]int{
	core.ErrSessionNotFound.Code:        http.StatusNotFound,
	core.ErrRecordNotFound.Code:         http.StatusNotFound,
	core.ErrInsufficientCapital.Code:    http.StatusConflict,
	core.ErrInsufficientPosition.Code:   http.StatusConflict,
	core.ErrInvalidStateTransition.Code: http.StatusConflict,
	core.ErrInvalidParameter.Code:       http.StatusBadRequest,
	core.ErrSettlementRequired.Code:     http.StatusUnprocessableEntity,
	core.ErrInsufficientHistory.Code:    http.StatusUnprocessableEntity,
	core.ErrNoData.Code:                 http.StatusUnprocessableEntity,
	core.ErrCollectorFailed.Code:        http.StatusBadGateway,
	core.ErrLLMFailed.Code:              http.StatusBadGateway,
	core.ErrConfigMissing.Code:          http.StatusServiceUnavailable,
	core.ErrUnauthorized.Code:           http.StatusUnauthorized,
}

// StatusFor maps an error to its HTTP status. Errors without a known
// code are internal.
func StatusFor(err error) int {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		if status, ok := statusByCode[coreErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
