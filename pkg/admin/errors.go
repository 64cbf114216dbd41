package admin

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in ErrorResponse.Error.
const (
	ErrCodeInvalidJSON    = "invalid_json"
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInvalidMatcher = "invalid_matcher"
	ErrCodeNotFound       = "not_found"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
