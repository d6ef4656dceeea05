package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Job types
const (
	JobTypeNormal = "normal" // one document per scheduled run
	JobTypeSingle = "single" // one document per job name (recurring jobs)
)

// Job represents a persisted scheduled job
type Job struct {
	ID             primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	Name           string                 `json:"name" bson:"name"`
	Type           string                 `json:"type" bson:"type"`
	Data           map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
	Priority       int                    `json:"priority" bson:"priority"`
	Disabled       bool                   `json:"disabled" bson:"disabled"`
	Unique         map[string]interface{} `json:"unique,omitempty" bson:"unique,omitempty"` // Matches data fields for dedup
	RepeatInterval string                 `json:"repeat_interval,omitempty" bson:"repeat_interval,omitempty"`
	RepeatTimezone string                 `json:"repeat_timezone,omitempty" bson:"repeat_timezone,omitempty"`
	NextRunAt      *time.Time             `json:"next_run_at,omitempty" bson:"next_run_at"`
	LastModifiedBy string                 `json:"last_modified_by,omitempty" bson:"last_modified_by,omitempty"`

	// Lock state, owned by the worker that picked the job up
	LockedAt *time.Time `json:"locked_at,omitempty" bson:"locked_at"`
	LockedBy string     `json:"locked_by,omitempty" bson:"locked_by,omitempty"`

	// Run history
	LastRunAt      *time.Time `json:"last_run_at,omitempty" bson:"last_run_at,omitempty"`
	LastFinishedAt *time.Time `json:"last_finished_at,omitempty" bson:"last_finished_at,omitempty"`
	FailedAt       *time.Time `json:"failed_at,omitempty" bson:"failed_at,omitempty"`
	FailCount      int        `json:"fail_count,omitempty" bson:"fail_count,omitempty"`
	FailReason     string     `json:"fail_reason,omitempty" bson:"fail_reason,omitempty"`
}

// IsRepeating reports whether the job is rescheduled after every run
func (j *Job) IsRepeating() bool {
	return j.RepeatInterval != ""
}

// IsLocked reports whether the job is locked by a worker and the lock is still
// younger than lifetime
func (j *Job) IsLocked(now time.Time, lifetime time.Duration) bool {
	if j.LockedAt == nil {
		return false
	}
	return j.LockedAt.After(now.Add(-lifetime))
}

// IsDue reports whether the job should run at now
func (j *Job) IsDue(now time.Time) bool {
	return !j.Disabled && j.NextRunAt != nil && !j.NextRunAt.After(now)
}

// Clone returns a copy of the job that shares no mutable state with j
func (j *Job) Clone() *Job {
	c := *j
	c.Data = cloneMap(j.Data)
	c.Unique = cloneMap(j.Unique)
	c.NextRunAt = cloneTime(j.NextRunAt)
	c.LockedAt = cloneTime(j.LockedAt)
	c.LastRunAt = cloneTime(j.LastRunAt)
	c.LastFinishedAt = cloneTime(j.LastFinishedAt)
	c.FailedAt = cloneTime(j.FailedAt)
	return &c
}

// JobSummary is a condensed view of a job for listing
type JobSummary struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	RepeatInterval string     `json:"repeat_interval,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	LastFinishedAt *time.Time `json:"last_finished_at,omitempty"`
	Locked         bool       `json:"locked"`
	FailCount      int        `json:"fail_count,omitempty"`
	FailReason     string     `json:"fail_reason,omitempty"`
}

// ToSummary converts a job to its listing view
func (j *Job) ToSummary() JobSummary {
	return JobSummary{
		ID:             j.ID.Hex(),
		Name:           j.Name,
		Type:           j.Type,
		RepeatInterval: j.RepeatInterval,
		NextRunAt:      j.NextRunAt,
		LastFinishedAt: j.LastFinishedAt,
		Locked:         j.LockedAt != nil,
		FailCount:      j.FailCount,
		FailReason:     j.FailReason,
	}
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
