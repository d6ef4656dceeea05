package handler

import (
	"net/http"

	"github.com/dandantas/agenda/internal/platform"
	"github.com/dandantas/agenda/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router handles HTTP routing
type Router struct {
	injector      *platform.Injector
	healthHandler *HealthHandler
	jobsHandler   *JobsHandler
	renderer      *middleware.RendererMiddleware // nil when rendering is disabled
	corsConfig    middleware.CORSConfig
}

// NewRouter creates a new router
func NewRouter(
	injector *platform.Injector,
	healthHandler *HealthHandler,
	jobsHandler *JobsHandler,
	renderer *middleware.RendererMiddleware,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		injector:      injector,
		healthHandler: healthHandler,
		jobsHandler:   jobsHandler,
		renderer:      renderer,
		corsConfig:    corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health and metrics endpoints
	mux.HandleFunc("GET /health", rt.healthHandler.Health)
	mux.HandleFunc("GET /ready", rt.healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	// API endpoints
	mux.HandleFunc("GET /api/v1/jobs", rt.jobsHandler.List)
	mux.HandleFunc("POST /api/v1/jobs/{name}/now", rt.jobsHandler.RunNow)
	mux.HandleFunc("DELETE /api/v1/jobs/{name}", rt.jobsHandler.Cancel)
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Endpoint not found")
	})

	// Everything else is a page
	if rt.renderer != nil {
		mux.Handle("/", rt.renderer.Handler())
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusNotFound, "Endpoint not found")
		})
	}

	// Apply middleware (CORS first to handle preflight requests)
	handler := middleware.CORS(rt.corsConfig)(mux)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestContext(rt.injector)(handler)

	return handler
}
