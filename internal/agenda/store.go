package agenda

import (
	"context"
	"time"

	"github.com/dandantas/agenda/internal/model"
)

// Store persists jobs and arbitrates which worker runs them
type Store interface {
	// Save inserts or updates a job and returns the stored version. Jobs without
	// an ID are upserted by name for single jobs and by their unique fields when
	// set; otherwise they are inserted.
	Save(ctx context.Context, job *model.Job) (*model.Job, error)

	// LockNext atomically locks the next due job named name for worker. A job is
	// eligible when it is enabled, next_run_at <= now and it is either unlocked
	// or its lock is older than lockDeadline. Returns nil when nothing is due.
	LockNext(ctx context.Context, name string, now, lockDeadline time.Time, worker string) (*model.Job, error)

	// UnlockAll releases the locks held by worker
	UnlockAll(ctx context.Context, worker string) (int64, error)

	// Find returns the jobs matching q and the total count ignoring pagination.
	// A zero Limit returns all matches.
	Find(ctx context.Context, q model.JobQuery) ([]model.Job, int64, error)

	// Delete removes the jobs matching q
	Delete(ctx context.Context, q model.JobQuery) (int64, error)
}

// Closer is implemented by stores that own a connection
type Closer interface {
	Close(ctx context.Context) error
}
