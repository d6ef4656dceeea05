package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dandantas/agenda/internal/platform"
	"github.com/dandantas/agenda/pkg/middleware"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// writeError writes an error response tagged with the request correlation id.
// Server errors are logged with the request logger.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	if statusCode >= http.StatusInternalServerError {
		platform.LoggerFrom(r.Context()).Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", statusCode,
			"error", message,
		)
	}

	writeJSON(w, statusCode, ErrorResponse{
		Error:         http.StatusText(statusCode),
		Message:       message,
		CorrelationID: middleware.GetCorrelationID(r.Context()),
	})
}

// parseQueryInt parses an integer query parameter, keeping the default when
// the value is missing or malformed
func parseQueryInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}
