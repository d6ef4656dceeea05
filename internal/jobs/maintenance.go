package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dandantas/agenda/internal/agenda"
	"github.com/dandantas/agenda/internal/model"
	"github.com/dandantas/agenda/internal/platform"
	"github.com/dandantas/agenda/internal/scheduler"
)

// Namespace prefixes the maintenance job names
const Namespace = "agenda"

// ProviderToken registers the maintenance provider in the injector
const ProviderToken = "jobs.maintenance"

// Canceller removes stored jobs
type Canceller interface {
	Cancel(ctx context.Context, q model.JobQuery) (int64, error)
}

// Maintenance keeps the job collection small by removing finished one-shot jobs
type Maintenance struct {
	canceller Canceller
	retention time.Duration
	now       func() time.Time
}

// NewMaintenance creates the maintenance provider. Finished jobs are kept for retention.
func NewMaintenance(canceller Canceller, retention time.Duration) *Maintenance {
	return &Maintenance{
		canceller: canceller,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Provider returns the injector registration declaring PurgeFinished as a job
// repeating every interval
func (m *Maintenance) Provider(interval string) *platform.Provider {
	store := platform.NewStore()
	scheduler.UseAgenda(store, Namespace)
	scheduler.EveryJob(store, "PurgeFinished", interval, scheduler.EveryJobOptions{
		Name: "purgeFinished",
		EveryOptions: agenda.EveryOptions{
			SkipImmediate: true,
		},
	})

	return &platform.Provider{
		Token:    ProviderToken,
		Type:     scheduler.ProviderTypeAgenda,
		Instance: m,
		Store:    store,
	}
}

// PurgeFinished removes one-shot jobs that finished before the retention window
func (m *Maintenance) PurgeFinished(ctx context.Context, job *agenda.Job) error {
	before := m.now().Add(-m.retention)

	removed, err := m.canceller.Cancel(ctx, model.JobQuery{FinishedBefore: &before})
	if err != nil {
		return fmt.Errorf("failed to purge finished jobs: %w", err)
	}

	platform.LoggerFrom(ctx).Info("Purged finished jobs",
		"job", job.Name(),
		"count", removed,
		"finished_before", before,
	)

	return nil
}
