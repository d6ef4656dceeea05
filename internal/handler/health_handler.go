package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks a backing store connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunningChecker reports whether the scheduler is processing jobs
type RunningChecker interface {
	IsRunning() bool
}

// HealthHandler handles service health and readiness checks
type HealthHandler struct {
	db        Pinger // nil when jobs are kept in memory
	scheduler RunningChecker
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, scheduler RunningChecker, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		scheduler: scheduler,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Timestamp     string `json:"timestamp"`
	MongoDB       string `json:"mongodb"`
	Agenda        string `json:"agenda"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Ready   bool   `json:"ready"`
	MongoDB string `json:"mongodb"`
}

// Health returns the service health status
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		MongoDB:       h.mongoStatus(r.Context()),
		Agenda:        "stopped",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	if h.scheduler != nil && h.scheduler.IsRunning() {
		response.Agenda = "running"
	}

	writeJSON(w, http.StatusOK, response)
}

// Ready returns the service readiness status
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	mongoStatus := h.mongoStatus(r.Context())
	ready := mongoStatus != "disconnected"

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Ready:   ready,
		MongoDB: mongoStatus,
	})
}

func (h *HealthHandler) mongoStatus(ctx context.Context) string {
	if h.db == nil {
		return "not_configured"
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.db.Ping(pingCtx); err != nil {
		return "disconnected"
	}
	return "connected"
}
