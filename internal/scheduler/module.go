package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"time"

	"github.com/dandantas/agenda/internal/agenda"
	"github.com/dandantas/agenda/internal/platform"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// JobContextKey is the execution context key holding the running *agenda.Job
const JobContextKey = "job"

var ErrProcessorNotFound = errors.New("provider has no job processor method")

// Client is the scheduling client driven by the module
type Client interface {
	Define(name string, opts agenda.DefineOptions, processor agenda.Processor)
	Every(ctx context.Context, interval, name string, data map[string]interface{}, opts agenda.EveryOptions) (*agenda.Job, error)
	Schedule(ctx context.Context, when, name string, data map[string]interface{}) (*agenda.Job, error)
	ScheduleAt(ctx context.Context, t time.Time, name string, data map[string]interface{}) (*agenda.Job, error)
	Now(ctx context.Context, name string, data map[string]interface{}) (*agenda.Job, error)
	Create(name string, data map[string]interface{}) *agenda.Job
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Close(ctx context.Context, opts agenda.CloseOptions) error
}

// Options toggles the module
type Options struct {
	Enabled              bool
	DisableJobProcessing bool // Start the client without defining or scheduling jobs
}

// Module ties the scheduling client to the application lifecycle and defines
// the jobs declared by agenda providers
type Module struct {
	opts     Options
	injector *platform.Injector
	client   Client
	logger   *slog.Logger
}

// NewModule creates the agenda module
func NewModule(injector *platform.Injector, client Client, opts Options) *Module {
	return &Module{
		opts:     opts,
		injector: injector,
		client:   client,
		logger:   injector.Logger(),
	}
}

// AfterListen defines the declared jobs, starts the client and schedules the
// recurring jobs once the server is listening
func (m *Module) AfterListen(ctx context.Context) error {
	if !m.opts.Enabled {
		m.logger.Info("Agenda disabled...")
		return nil
	}

	providers := m.injector.GetProviders(ProviderTypeAgenda)

	if !m.opts.DisableJobProcessing {
		m.logger.Info("Agenda add definitions...")
		for _, provider := range providers {
			if err := m.addDefinitionsForProvider(provider); err != nil {
				return err
			}
		}

		if err := m.injector.Emit(ctx, platform.EventBeforeAgendaStart); err != nil {
			return err
		}
	}

	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start agenda: %w", err)
	}

	if !m.opts.DisableJobProcessing {
		m.logger.Info("Agenda add scheduled jobs...")

		g, gctx := errgroup.WithContext(ctx)
		for _, provider := range providers {
			g.Go(func() error {
				return m.scheduleJobsForProvider(gctx, provider)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if err := m.injector.Emit(ctx, platform.EventAfterAgendaStart); err != nil {
			return err
		}
	}

	return nil
}

// OnDestroy stops the client and force-closes it
func (m *Module) OnDestroy(ctx context.Context) error {
	if !m.opts.Enabled {
		return nil
	}

	if err := m.client.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop agenda: %w", err)
	}
	if err := m.client.Close(ctx, agenda.CloseOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to close agenda: %w", err)
	}

	m.logger.Info("Agenda stopped...")
	return nil
}

// Define registers processor for name. Every run gets a fresh execution
// context carrying the job.
func (m *Module) Define(name string, opts agenda.DefineOptions, processor agenda.Processor) {
	m.client.Define(name, opts, func(ctx context.Context, job *agenda.Job) error {
		execCtx := platform.NewContext(m.injector, uuid.New().String(), m.injector.Logger())
		defer execCtx.Destroy()

		execCtx.Set(JobContextKey, job)

		return processor(platform.WithContext(ctx, execCtx), job)
	})
}

// Every schedules name to repeat every interval
func (m *Module) Every(ctx context.Context, interval, name string, data map[string]interface{}, opts agenda.EveryOptions) (*agenda.Job, error) {
	return m.client.Every(ctx, interval, name, data, opts)
}

// Schedule schedules a single run of name at when
func (m *Module) Schedule(ctx context.Context, when, name string, data map[string]interface{}) (*agenda.Job, error) {
	return m.client.Schedule(ctx, when, name, data)
}

// ScheduleAt schedules a single run of name at t
func (m *Module) ScheduleAt(ctx context.Context, t time.Time, name string, data map[string]interface{}) (*agenda.Job, error) {
	return m.client.ScheduleAt(ctx, t, name, data)
}

// Now schedules a single run of name immediately
func (m *Module) Now(ctx context.Context, name string, data map[string]interface{}) (*agenda.Job, error) {
	return m.client.Now(ctx, name, data)
}

// Create returns an unsaved job
func (m *Module) Create(name string, data map[string]interface{}) *agenda.Job {
	return m.client.Create(name, data)
}

func (m *Module) addDefinitionsForProvider(provider *platform.Provider) error {
	meta := GetMetadata(provider.Store)
	if len(meta.Define) == 0 {
		return nil
	}

	instance, _ := m.injector.Get(provider.Token)

	for _, method := range sortedKeys(meta.Define) {
		opts := meta.Define[method]

		processor, err := bindProcessor(instance, method)
		if err != nil {
			return fmt.Errorf("provider %s: %w", provider.Token, err)
		}

		m.Define(jobName(method, meta.Namespace, opts.Name), opts.DefineOptions, processor)
	}

	return nil
}

func (m *Module) scheduleJobsForProvider(ctx context.Context, provider *platform.Provider) error {
	meta := GetMetadata(provider.Store)
	if len(meta.Every) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, method := range sortedKeys(meta.Every) {
		opts := meta.Every[method]
		name := jobName(method, meta.Namespace, opts.Name)

		g.Go(func() error {
			if _, err := m.Every(gctx, opts.Interval, name, map[string]interface{}{}, opts.EveryOptions); err != nil {
				return fmt.Errorf("failed to schedule %s: %w", name, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// bindProcessor returns the method of instance named method as a processor
func bindProcessor(instance interface{}, method string) (agenda.Processor, error) {
	if instance == nil {
		return nil, fmt.Errorf("%w: %s", ErrProcessorNotFound, method)
	}

	value := reflect.ValueOf(instance).MethodByName(method)
	if !value.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrProcessorNotFound, method)
	}

	fn, ok := value.Interface().(func(context.Context, *agenda.Job) error)
	if !ok {
		return nil, fmt.Errorf("%w: %s has signature %s", ErrProcessorNotFound, method, value.Type())
	}
	return fn, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
