package middleware

import (
	"net/http"
	"time"

	"github.com/dandantas/agenda/internal/platform"
)

// Logging middleware logs HTTP requests and responses with the request logger
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := NewResponseWriter(w)
		logger := platform.LoggerFrom(r.Context())

		logger.Info("HTTP request received",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		next.ServeHTTP(rw, r)

		logger.Info("HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rw.StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes_written", rw.BytesWritten(),
		)
	})
}
