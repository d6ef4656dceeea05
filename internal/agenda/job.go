package agenda

import (
	"context"
	"fmt"
	"time"

	"github.com/dandantas/agenda/internal/model"
)

// Job is a handle on a job record bound to the agenda that created it
type Job struct {
	attrs  *model.Job
	agenda *Agenda
}

// Attrs returns the underlying record
func (j *Job) Attrs() *model.Job {
	return j.attrs
}

// Name returns the job name
func (j *Job) Name() string {
	return j.attrs.Name
}

// ID returns the hex id, empty until the job is saved
func (j *Job) ID() string {
	if j.attrs.ID.IsZero() {
		return ""
	}
	return j.attrs.ID.Hex()
}

// Data returns the job payload
func (j *Job) Data() map[string]interface{} {
	return j.attrs.Data
}

// RunAt sets the next run time
func (j *Job) RunAt(t time.Time) *Job {
	t = t.UTC()
	j.attrs.NextRunAt = &t
	return j
}

// Schedule sets the next run time from a value accepted by ParseWhen
func (j *Job) Schedule(when string) error {
	t, err := ParseWhen(when, j.agenda.now())
	if err != nil {
		return err
	}
	j.RunAt(t)
	return nil
}

// RepeatEvery makes the job recurring. The first run is now unless
// opts.SkipImmediate is set.
func (j *Job) RepeatEvery(interval string, opts EveryOptions) error {
	schedule, err := ParseInterval(interval, opts.Timezone)
	if err != nil {
		return err
	}

	j.attrs.RepeatInterval = interval
	j.attrs.RepeatTimezone = opts.Timezone

	now := j.agenda.now()
	if opts.SkipImmediate {
		return j.runAtOrErr(schedule.Next(now))
	}
	j.RunAt(now)
	return nil
}

// runAtOrErr sets the next run time, rejecting the zero time a schedule
// returns when it never fires again
func (j *Job) runAtOrErr(t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("%w: %q never fires", ErrInvalidInterval, j.attrs.RepeatInterval)
	}
	j.RunAt(t)
	return nil
}

// Unique deduplicates the job on the given data fields when saved
func (j *Job) Unique(fields map[string]interface{}) *Job {
	j.attrs.Unique = fields
	return j
}

// Priority sets the job priority. Higher runs first.
func (j *Job) Priority(priority int) *Job {
	j.attrs.Priority = priority
	return j
}

// Disable prevents the job from running until enabled again
func (j *Job) Disable() *Job {
	j.attrs.Disabled = true
	return j
}

// Enable allows a disabled job to run again
func (j *Job) Enable() *Job {
	j.attrs.Disabled = false
	return j
}

// Touch extends the lock of a running job so long runs are not picked up again
func (j *Job) Touch(ctx context.Context) error {
	now := j.agenda.now()
	j.attrs.LockedAt = &now
	return j.Save(ctx)
}

// Save persists the job
func (j *Job) Save(ctx context.Context) error {
	return j.agenda.saveJob(ctx, j)
}

// Remove deletes the job
func (j *Job) Remove(ctx context.Context) error {
	if j.attrs.ID.IsZero() {
		return ErrJobNotFound
	}

	removed, err := j.agenda.Cancel(ctx, model.JobQuery{ID: j.attrs.ID})
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrJobNotFound
	}
	return nil
}
