package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/dandantas/agenda/internal/agenda"
	"github.com/dandantas/agenda/internal/model"
	"github.com/dandantas/agenda/internal/platform"
)

// JobService is the part of the scheduling client exposed over HTTP
type JobService interface {
	Definitions() []string
	Jobs(ctx context.Context, q model.JobQuery) ([]*agenda.Job, int64, error)
	Now(ctx context.Context, name string, data map[string]interface{}) (*agenda.Job, error)
	Cancel(ctx context.Context, q model.JobQuery) (int64, error)
}

// JobsHandler handles job listing, triggering and cancellation
type JobsHandler struct {
	service JobService
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(service JobService) *JobsHandler {
	return &JobsHandler{
		service: service,
	}
}

// JobListResponse represents job list response
type JobListResponse struct {
	Total       int64              `json:"total"`
	Page        int                `json:"page"`
	Limit       int                `json:"limit"`
	Definitions []string           `json:"definitions"`
	Results     []model.JobSummary `json:"results"`
}

// CancelResponse represents job cancellation response
type CancelResponse struct {
	Name      string `json:"name"`
	Cancelled int64  `json:"cancelled"`
}

// List handles GET /api/v1/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := model.JobQuery{
		Name:  r.URL.Query().Get("name"),
		Type:  r.URL.Query().Get("type"),
		Page:  parseQueryInt(r, "page", 1),
		Limit: parseQueryInt(r, "limit", 20),
	}
	q.Normalize()

	jobs, total, err := h.service.Jobs(r.Context(), q)
	if err != nil {
		platform.LoggerFrom(r.Context()).Error("Failed to list jobs", "error", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]model.JobSummary, len(jobs))
	for i, job := range jobs {
		results[i] = job.Attrs().ToSummary()
	}

	writeJSON(w, http.StatusOK, JobListResponse{
		Total:       total,
		Page:        q.Page,
		Limit:       q.Limit,
		Definitions: h.service.Definitions(),
		Results:     results,
	})
}

// RunNow handles POST /api/v1/jobs/{name}/now. The optional JSON body is the job data.
func (h *JobsHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !slices.Contains(h.service.Definitions(), name) {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("%w: %s", agenda.ErrNotDefined, name).Error())
		return
	}

	data := map[string]interface{}{}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.service.Now(r.Context(), name, data)
	if err != nil {
		platform.LoggerFrom(r.Context()).Error("Failed to schedule job", "job", name, "error", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	platform.LoggerFrom(r.Context()).Info("Job scheduled to run now", "job", name, "job_id", job.ID())
	writeJSON(w, http.StatusAccepted, job.Attrs().ToSummary())
}

// Cancel handles DELETE /api/v1/jobs/{name}
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, r, http.StatusBadRequest, agenda.ErrMissingName.Error())
		return
	}

	cancelled, err := h.service.Cancel(r.Context(), model.JobQuery{Name: name})
	if err != nil {
		platform.LoggerFrom(r.Context()).Error("Failed to cancel jobs", "job", name, "error", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CancelResponse{
		Name:      name,
		Cancelled: cancelled,
	})
}
