package httpx

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// RespondJSON writes a JSON response with the given status code and data.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.S().Warnw("Failed to encode JSON response", "error", err)
	}
}

// RespondRaw writes an already-encoded JSON payload.
func RespondRaw(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		zap.S().Debugw("Failed to write response", "error", err)
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// RespondError writes a generic server error carrying err as its detail.
func RespondError(w http.ResponseWriter, status int, err error) {
	response := ErrorResponse{Error: "Server error"}
	if err != nil {
		response.Detail = err.Error()
	}
	RespondJSON(w, status, response)
}

// RespondErrorString writes an error response with the given status code and error message string.
func RespondErrorString(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}
