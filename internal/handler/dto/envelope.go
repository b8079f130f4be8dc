// Package dto provides Data Transfer Objects and the response envelope shared
// by handlers and middleware.
package dto

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in the envelope.
const (
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeNotFound            = "NOT_FOUND"
	CodeCreate              = "CREATE_ERROR"
	CodeQuery               = "QUERY_ERROR"
	CodeSetup               = "SETUP_ERROR"
	CodeGenerationFailed    = "GENERATION_FAILED"
	CodeRateLimited         = "RATE_LIMITED"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeInternal            = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	CodeUnauthorized:        http.StatusUnauthorized,
	CodeForbidden:           http.StatusForbidden,
	CodeValidation:          http.StatusBadRequest,
	CodeInsufficientCredits: http.StatusPaymentRequired,
	CodeNotFound:            http.StatusNotFound,
	CodeCreate:              http.StatusInternalServerError,
	CodeQuery:               http.StatusInternalServerError,
	CodeSetup:               http.StatusInternalServerError,
	CodeGenerationFailed:    http.StatusInternalServerError,
	CodeRateLimited:         http.StatusTooManyRequests,
	CodePayloadTooLarge:     http.StatusRequestEntityTooLarge,
	CodeMethodNotAllowed:    http.StatusMethodNotAllowed,
	CodeInternal:            http.StatusInternalServerError,
}

// StatusForCode maps an error code to its HTTP status. Unknown codes are 500.
func StatusForCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorBody     `json:"error,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteSuccess writes a successful envelope. meta may be nil.
func WriteSuccess(w http.ResponseWriter, status int, data any, meta map[string]any) {
	WriteJSON(w, status, Envelope{Success: true, Data: data, Meta: meta})
}

// WriteError writes a failed envelope with the status implied by code.
func WriteError(w http.ResponseWriter, code, message string, details map[string]any) {
	WriteJSON(w, StatusForCode(code), Envelope{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message, Details: details},
	})
}
