package middleware

import (
	"context"
	"net/http"

	"github.com/dandantas/agenda/internal/platform"
	"github.com/google/uuid"
)

// CorrelationIDHeader carries the correlation id in requests and responses
const CorrelationIDHeader = "X-Correlation-ID"

// RequestContext middleware extracts or generates the correlation id and
// attaches a per-request execution context whose logger carries it
func RequestContext(injector *platform.Injector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get(CorrelationIDHeader)
			if correlationID == "" {
				correlationID = uuid.New().String()
			}

			w.Header().Set(CorrelationIDHeader, correlationID)

			logger := platform.LoggerFrom(r.Context())
			if injector != nil {
				logger = injector.Logger()
			}

			reqCtx := platform.NewContext(injector, correlationID, logger)
			defer reqCtx.Destroy()

			next.ServeHTTP(w, r.WithContext(platform.WithContext(r.Context(), reqCtx)))
		})
	}
}

// GetCorrelationID extracts the correlation id from ctx
func GetCorrelationID(ctx context.Context) string {
	if reqCtx, ok := platform.FromContext(ctx); ok {
		return reqCtx.ID
	}
	return ""
}
