// backend/src/utils/http.go
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/username/contaflow/src/logger"
)

// JSONErrorResponse is the error envelope every handler returns.
type JSONErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SendJSONError writes a JSON error with the given HTTP status.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	SendJSONErrorWithCode(w, message, "", statusCode)
}

// SendJSONErrorWithCode includes a stable machine-readable reason code.
func SendJSONErrorWithCode(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(JSONErrorResponse{Error: message, Code: code}); err != nil {
		logger.L.Error("Failed to encode JSON error response", "error", err)
	}
}

// SendJSON writes a JSON body with the given HTTP status.
func SendJSON(w http.ResponseWriter, payload any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}
