// Package response provides standardized HTTP response helpers.
package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Error codes returned in API error responses.
const (
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeValidationError       = "VALIDATION_ERROR"
	ErrCodeCalendarNotFound      = "CALENDAR_NOT_FOUND"
	ErrCodeSyncInProgress        = "SYNC_IN_PROGRESS"
	ErrCodeInsufficientCalendars = "INSUFFICIENT_CALENDARS"
	ErrCodeProviderError         = "PROVIDER_ERROR"
	ErrCodeInternalError         = "INTERNAL_ERROR"
)

// APIError represents a structured API error response.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps an APIError in the standard response format.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorWithDetails(w, status, code, message, nil)
}

// WriteErrorWithDetails writes a JSON error response with additional details.
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	resp := ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Common error response helpers

// WriteUnauthorized writes a 401 unauthorized error.
func WriteUnauthorized(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Authentication required")
}

// WriteValidationError writes a 400 validation error.
func WriteValidationError(w http.ResponseWriter, message string, details map[string]interface{}) {
	WriteErrorWithDetails(w, http.StatusBadRequest, ErrCodeValidationError, message, details)
}

// WriteCalendarNotFound writes a 404 calendar not found error.
func WriteCalendarNotFound(w http.ResponseWriter, calendarID string) {
	WriteErrorWithDetails(w, http.StatusNotFound, ErrCodeCalendarNotFound,
		"Calendar not found", map[string]interface{}{"calendar_id": calendarID})
}

// WriteSyncInProgress writes a 409 sync in progress error.
func WriteSyncInProgress(w http.ResponseWriter) {
	WriteError(w, http.StatusConflict, ErrCodeSyncInProgress,
		"A synchronization pass is already running")
}

// WriteInsufficientCalendars writes a 409 insufficient calendars error.
func WriteInsufficientCalendars(w http.ResponseWriter, enabled int) {
	WriteErrorWithDetails(w, http.StatusConflict, ErrCodeInsufficientCalendars,
		"At least 2 calendars must be enabled for synchronization",
		map[string]interface{}{"enabled": enabled})
}

// WriteProviderError writes a 502 upstream provider error.
func WriteProviderError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, ErrCodeProviderError, message)
}

// WriteInternalError writes a 500 internal error.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}
