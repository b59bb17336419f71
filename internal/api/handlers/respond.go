package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/aegis-longterm/internal/aggregator"
	"github.com/wonny/aegis-longterm/internal/contracts"
)

// Error codes
const (
	ErrCodeUnknownVariant     = "UNKNOWN_VARIANT"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidBody        = "INVALID_BODY"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
)

// ErrorResponse is the envelope of every non-2xx response
type ErrorResponse struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail contains error details
type ErrorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError represents a field-level validation error
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string, fields ...FieldError) {
	respondJSON(w, status, ErrorResponse{
		Status: "error",
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Fields:  fields,
		},
	})
}

// respondEngineError maps pipeline errors to HTTP responses.
// Only unknown variants, invalid requests and total outage are user-facing.
func respondEngineError(w http.ResponseWriter, err error) {
	var allFailed *aggregator.AllCategoriesFailedError

	switch {
	case errors.Is(err, contracts.ErrUnknownVariant):
		respondError(w, http.StatusBadRequest, ErrCodeUnknownVariant, err.Error())
	case errors.Is(err, contracts.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.As(err, &allFailed):
		w.Header().Set("Retry-After", retryAfterSeconds(allFailed.RetryAfter))
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"screening provider temporarily unavailable")
	default:
		respondError(w, http.StatusInternalServerError, ErrCodeInternalServer, "internal server error")
	}
}

// retryAfterSeconds rounds up to whole seconds, minimum 1
func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// NotFound answers unmatched paths with the error envelope
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, ErrCodeNotFound, "no route for "+r.URL.Path)
}

// MethodNotAllowed answers a known path requested with the wrong method
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed,
		r.Method+" is not supported on "+r.URL.Path)
}
