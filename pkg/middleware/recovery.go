package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/dandantas/agenda/internal/platform"
)

// Recovery middleware recovers from panics and logs them. The 500 answer is
// only sent when the response was not started yet.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w)

		defer func() {
			if err := recover(); err != nil {
				platform.LoggerFrom(r.Context()).Error("Panic recovered",
					"error", err,
					"stack_trace", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)

				if !rw.IsDone() {
					http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
				}
			}
		}()

		next.ServeHTTP(rw, r)
	})
}
