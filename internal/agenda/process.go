package agenda

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"github.com/dandantas/agenda/internal/metrics"
	"github.com/dandantas/agenda/internal/model"
	"github.com/dandantas/agenda/internal/worker"
)

// run is the main processing loop
func (a *Agenda) run(ctx context.Context, pool *worker.WorkerPool, stopChan <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.cfg.ProcessEvery)
	defer ticker.Stop()

	// Run immediately on start
	a.processJobs(ctx, pool, stopChan)

	for {
		select {
		case <-ticker.C:
			a.processJobs(ctx, pool, stopChan)
		case <-a.wake:
			a.processJobs(ctx, pool, stopChan)
		case <-stopChan:
			return
		case <-ctx.Done():
			slog.Info("Agenda context done", "worker", a.cfg.Name)
			return
		}
	}
}

// processJobs locks and dispatches due jobs for every definition with free capacity
func (a *Agenda) processJobs(ctx context.Context, pool *worker.WorkerPool, stopChan <-chan struct{}) {
	now := a.now()

	for _, snap := range a.snapshotDefinitions() {
		def := snap.def
		for {
			select {
			case <-stopChan:
				return
			case <-ctx.Done():
				return
			default:
			}

			if !a.reserve(def) {
				break
			}

			record, err := a.store.LockNext(ctx, def.name, now, now.Add(-snap.opts.LockLifetime), a.cfg.Name)
			if err != nil {
				a.release(def)
				slog.Error("Failed to lock next job", "job", def.name, "error", err)
				break
			}
			if record == nil {
				a.release(def)
				break
			}

			if !a.dispatch(pool, def, snap.processor, record) {
				break
			}
		}
	}
}

func (a *Agenda) dispatch(pool *worker.WorkerPool, def *definition, processor Processor, record *model.Job) bool {
	task := worker.Task{
		Name:          def.name,
		CorrelationID: record.ID.Hex(),
		Run: func(ctx context.Context) {
			defer a.release(def)
			a.runJob(ctx, def.name, processor, record)
		},
	}

	if err := pool.Submit(task); err != nil {
		a.release(def)
		slog.Warn("Failed to dispatch job, unlocking", "job", def.name, "job_id", record.ID.Hex(), "error", err)

		record.LockedAt = nil
		record.LockedBy = ""
		a.persist(record)
		return false
	}

	return true
}

// runJob executes the processor and stores the outcome
func (a *Agenda) runJob(ctx context.Context, name string, processor Processor, record *model.Job) {
	job := &Job{attrs: record, agenda: a}
	scheduledAt := record.NextRunAt

	start := a.now()
	record.LastRunAt = &start

	slog.Info("Job started",
		"job", name,
		"job_id", record.ID.Hex(),
		"worker", a.cfg.Name,
	)

	metrics.JobsRunning.WithLabelValues(name).Inc()
	err := invoke(ctx, processor, job)
	metrics.JobsRunning.WithLabelValues(name).Dec()

	finished := a.now()
	record.LastFinishedAt = &finished
	duration := finished.Sub(start)
	metrics.JobDuration.WithLabelValues(name).Observe(duration.Seconds())

	if err != nil {
		record.FailCount++
		record.FailReason = err.Error()
		record.FailedAt = &finished
		metrics.JobRuns.WithLabelValues(name, metrics.StatusFailed).Inc()

		slog.Error("Job failed",
			"job", name,
			"job_id", record.ID.Hex(),
			"duration_ms", duration.Milliseconds(),
			"fail_count", record.FailCount,
			"error", err,
		)
	} else {
		metrics.JobRuns.WithLabelValues(name, metrics.StatusSuccess).Inc()

		slog.Info("Job completed",
			"job", name,
			"job_id", record.ID.Hex(),
			"duration_ms", duration.Milliseconds(),
		)
	}

	a.computeNextRunAt(record, scheduledAt, start)

	record.LockedAt = nil
	record.LockedBy = ""
	a.persist(record)
}

// computeNextRunAt reschedules repeating jobs from the run start. One-shot jobs
// are finished unless the processor rescheduled them.
func (a *Agenda) computeNextRunAt(record *model.Job, scheduledAt *time.Time, start time.Time) {
	if !record.IsRepeating() {
		if sameTime(record.NextRunAt, scheduledAt) {
			record.NextRunAt = nil
		}
		return
	}

	schedule, err := ParseInterval(record.RepeatInterval, record.RepeatTimezone)
	if err != nil {
		record.NextRunAt = nil
		record.FailReason = err.Error()
		slog.Error("Failed to compute next run", "job", record.Name, "interval", record.RepeatInterval, "error", err)
		return
	}

	next := schedule.Next(start)
	if next.IsZero() {
		record.NextRunAt = nil
		return
	}
	next = next.UTC()
	record.NextRunAt = &next
}

// persist saves with its own deadline so the outcome is stored even when the
// run context was cancelled
func (a *Agenda) persist(record *model.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := a.store.Save(ctx, record); err != nil {
		slog.Error("Failed to save job after run",
			"job", record.Name,
			"job_id", record.ID.Hex(),
			"error", err,
		)
	}
}

func invoke(ctx context.Context, processor Processor, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Job panicked",
				"job", job.Name(),
				"panic", r,
				"stack_trace", string(debug.Stack()),
			)
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return processor(ctx, job)
}

// reserve claims a run slot for def, honouring both the definition and the
// agenda-wide concurrency limits
func (a *Agenda) reserve(def *definition) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active >= a.cfg.MaxConcurrency || def.running >= def.capacity() {
		return false
	}
	a.active++
	def.running++
	return true
}

func (a *Agenda) release(def *definition) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active--
	def.running--
}

type definitionSnapshot struct {
	def       *definition
	opts      DefineOptions
	processor Processor
}

// snapshotDefinitions returns definitions ordered by priority, then name
func (a *Agenda) snapshotDefinitions() []definitionSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snaps := make([]definitionSnapshot, 0, len(a.definitions))
	for _, def := range a.definitions {
		snaps = append(snaps, definitionSnapshot{def: def, opts: def.opts, processor: def.processor})
	}

	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].opts.Priority != snaps[j].opts.Priority {
			return snaps[i].opts.Priority > snaps[j].opts.Priority
		}
		return snaps[i].def.name < snaps[j].def.name
	})

	return snaps
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
