package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobRuns counts finished job runs by job name and status
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenda_job_runs_total",
			Help: "Finished job runs by job name and status",
		},
		[]string{"job", "status"},
	)

	// JobDuration tracks job processing time
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agenda_job_duration_seconds",
			Help:    "Job processing time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// JobsRunning tracks jobs currently being processed
	JobsRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agenda_jobs_running",
			Help: "Jobs currently being processed by job name",
		},
		[]string{"job"},
	)

	// RenderRequests counts render service calls by outcome
	RenderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_requests_total",
			Help: "Render service calls by outcome",
		},
		[]string{"status"},
	)

	// RenderDuration tracks render service latency
	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "render_duration_seconds",
			Help:    "Render service latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Job run statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)
