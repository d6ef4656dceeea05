package agenda

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dandantas/agenda/internal/model"
	"github.com/dandantas/agenda/internal/worker"
	"github.com/google/uuid"
)

// Priorities accepted by DefineOptions.Priority and Job.Priority
const (
	PriorityLowest  = -20
	PriorityLow     = -10
	PriorityNormal  = 0
	PriorityHigh    = 10
	PriorityHighest = 20
)

// Processor runs a job. A returned error marks the run as failed.
type Processor func(ctx context.Context, job *Job) error

// DefineOptions tunes how a job definition is processed
type DefineOptions struct {
	Concurrency  int           // Max runs of this job at once on this worker
	LockLimit    int           // Max locked jobs of this name on this worker, 0 means no limit
	LockLifetime time.Duration // Lock age after which another worker may pick the job up
	Priority     int
}

// EveryOptions tunes recurring jobs
type EveryOptions struct {
	Timezone      string // IANA zone for cron expressions
	SkipImmediate bool   // First run on the first tick instead of now
}

// CloseOptions tunes Close
type CloseOptions struct {
	Force bool // Do not wait for running jobs, cancel them instead
}

// Config holds the processing settings of an agenda
type Config struct {
	Name                string // Worker identity written to locked_by
	ProcessEvery        time.Duration
	MaxConcurrency      int
	DefaultConcurrency  int
	DefaultLockLifetime time.Duration
}

// SetDefaults fills unset values
func (c *Config) SetDefaults() {
	if c.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = uuid.New().String()
		}
		c.Name = hostname
	}
	if c.ProcessEvery <= 0 {
		c.ProcessEvery = 5 * time.Second
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 20
	}
	if c.DefaultConcurrency <= 0 {
		c.DefaultConcurrency = 5
	}
	if c.DefaultLockLifetime <= 0 {
		c.DefaultLockLifetime = 10 * time.Minute
	}
}

type definition struct {
	name      string
	opts      DefineOptions
	processor Processor
	running   int
}

func (d *definition) capacity() int {
	limit := d.opts.Concurrency
	if d.opts.LockLimit > 0 && d.opts.LockLimit < limit {
		limit = d.opts.LockLimit
	}
	return limit
}

// Agenda schedules jobs in a Store and runs the defined ones
type Agenda struct {
	cfg   Config
	store Store

	mu          sync.Mutex
	definitions map[string]*definition
	active      int
	running     bool
	pool        *worker.WorkerPool
	stopChan    chan struct{}
	wake        chan struct{}
	loopDone    chan struct{}

	now func() time.Time
}

// New creates an agenda backed by store
func New(cfg Config, store Store) *Agenda {
	cfg.SetDefaults()

	return &Agenda{
		cfg:         cfg,
		store:       store,
		definitions: make(map[string]*definition),
		wake:        make(chan struct{}, 1),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Name returns the worker identity
func (a *Agenda) Name() string {
	return a.cfg.Name
}

// Define registers the processor for jobs named name. Redefining replaces the processor.
func (a *Agenda) Define(name string, opts DefineOptions, processor Processor) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = a.cfg.DefaultConcurrency
	}
	if opts.LockLifetime <= 0 {
		opts.LockLifetime = a.cfg.DefaultLockLifetime
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.definitions[name]; ok {
		existing.opts = opts
		existing.processor = processor
	} else {
		a.definitions[name] = &definition{
			name:      name,
			opts:      opts,
			processor: processor,
		}
	}

	slog.Debug("Job defined",
		"job", name,
		"concurrency", opts.Concurrency,
		"lock_lifetime", opts.LockLifetime,
		"priority", opts.Priority,
	)
}

// Definitions returns the defined job names in sorted order
func (a *Agenda) Definitions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := make([]string, 0, len(a.definitions))
	for name := range a.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create returns a new unsaved job
func (a *Agenda) Create(name string, data map[string]interface{}) *Job {
	if data == nil {
		data = map[string]interface{}{}
	}

	attrs := &model.Job{
		Name:           name,
		Type:           model.JobTypeNormal,
		Data:           data,
		LastModifiedBy: a.cfg.Name,
	}

	a.mu.Lock()
	if def, ok := a.definitions[name]; ok {
		attrs.Priority = def.opts.Priority
	}
	a.mu.Unlock()

	return &Job{attrs: attrs, agenda: a}
}

// Every creates or updates the single recurring job named name
func (a *Agenda) Every(ctx context.Context, interval, name string, data map[string]interface{}, opts EveryOptions) (*Job, error) {
	job := a.Create(name, data)
	job.attrs.Type = model.JobTypeSingle

	if err := job.RepeatEvery(interval, opts); err != nil {
		return nil, fmt.Errorf("every %s for job %s: %w", interval, name, err)
	}

	if err := job.Save(ctx); err != nil {
		return nil, err
	}

	slog.Info("Recurring job scheduled",
		"job", name,
		"interval", interval,
		"next_run_at", job.attrs.NextRunAt,
	)

	return job, nil
}

// Schedule creates a job that runs once at when (see ParseWhen)
func (a *Agenda) Schedule(ctx context.Context, when, name string, data map[string]interface{}) (*Job, error) {
	t, err := ParseWhen(when, a.now())
	if err != nil {
		return nil, fmt.Errorf("schedule job %s: %w", name, err)
	}
	return a.ScheduleAt(ctx, t, name, data)
}

// ScheduleAt creates a job that runs once at t
func (a *Agenda) ScheduleAt(ctx context.Context, t time.Time, name string, data map[string]interface{}) (*Job, error) {
	job := a.Create(name, data).RunAt(t)
	if err := job.Save(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// Now creates a job that runs as soon as possible
func (a *Agenda) Now(ctx context.Context, name string, data map[string]interface{}) (*Job, error) {
	return a.ScheduleAt(ctx, a.now(), name, data)
}

// Jobs returns jobs matching q
func (a *Agenda) Jobs(ctx context.Context, q model.JobQuery) ([]*Job, int64, error) {
	records, total, err := a.store.Find(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find jobs: %w", err)
	}

	jobs := make([]*Job, len(records))
	for i := range records {
		jobs[i] = &Job{attrs: &records[i], agenda: a}
	}
	return jobs, total, nil
}

// Cancel removes jobs matching q
func (a *Agenda) Cancel(ctx context.Context, q model.JobQuery) (int64, error) {
	removed, err := a.store.Delete(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel jobs: %w", err)
	}

	slog.Info("Jobs cancelled", "count", removed, "name", q.Name)
	return removed, nil
}

// Purge removes jobs that have no definition on this agenda
func (a *Agenda) Purge(ctx context.Context) (int64, error) {
	return a.Cancel(ctx, model.JobQuery{ExcludeNames: a.Definitions()})
}

func (a *Agenda) saveJob(ctx context.Context, job *Job) error {
	if job.attrs.Name == "" {
		return ErrMissingName
	}

	job.attrs.LastModifiedBy = a.cfg.Name

	stored, err := a.store.Save(ctx, job.attrs)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.attrs.Name, err)
	}
	*job.attrs = *stored

	// Due jobs are picked up right away instead of waiting for the next tick
	if stored.IsDue(a.now()) {
		a.notify()
	}

	return nil
}

func (a *Agenda) notify() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Start begins processing due jobs until Stop is called or ctx is done.
// Starting a running agenda is a no-op.
func (a *Agenda) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}

	slog.Info("Starting agenda",
		"worker", a.cfg.Name,
		"process_every", a.cfg.ProcessEvery,
		"max_concurrency", a.cfg.MaxConcurrency,
	)

	a.pool = worker.NewWorkerPool(a.cfg.MaxConcurrency, a.cfg.MaxConcurrency)
	a.pool.Start()
	a.stopChan = make(chan struct{})
	a.loopDone = make(chan struct{})
	a.running = true

	go a.run(ctx, a.pool, a.stopChan, a.loopDone)

	return nil
}

// Stop stops processing, waits for running jobs until ctx expires and
// releases every lock held by this worker. Stopping a stopped agenda is a no-op.
func (a *Agenda) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	pool, stopChan, loopDone := a.pool, a.stopChan, a.loopDone
	a.mu.Unlock()

	slog.Info("Stopping agenda", "worker", a.cfg.Name)

	close(stopChan)
	<-loopDone

	if err := pool.Stop(ctx); err != nil {
		slog.Warn("Running jobs did not finish before shutdown", "error", err)
	}

	unlockCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	released, err := a.store.UnlockAll(unlockCtx, a.cfg.Name)
	if err != nil {
		return fmt.Errorf("failed to release locks: %w", err)
	}
	if released > 0 {
		slog.Info("Released job locks", "worker", a.cfg.Name, "count", released)
	}

	slog.Info("Agenda stopped", "worker", a.cfg.Name)
	return nil
}

// Close stops the agenda and closes the store when it owns a connection
func (a *Agenda) Close(ctx context.Context, opts CloseOptions) error {
	stopCtx := ctx
	if opts.Force {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		stopCtx = cancelled
	}

	if err := a.Stop(stopCtx); err != nil {
		return err
	}

	if closer, ok := a.store.(Closer); ok {
		if err := closer.Close(ctx); err != nil {
			return fmt.Errorf("failed to close job store: %w", err)
		}
	}

	return nil
}

// IsRunning reports whether the agenda is processing jobs. It turns false
// once the context given to Start is done, even before Stop is called.
func (a *Agenda) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return false
	}
	select {
	case <-a.loopDone:
		return false
	default:
		return true
	}
}
