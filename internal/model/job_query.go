package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobQuery selects jobs for listing and cancellation. Zero fields match everything.
type JobQuery struct {
	ID             primitive.ObjectID
	Name           string
	Type           string
	ExcludeNames   []string   // Matches jobs whose name is not in the list
	FinishedBefore *time.Time // Matches one-shot jobs that finished before the time
	Page           int
	Limit          int
}

// Matches reports whether job satisfies the query filters (pagination ignored)
func (q JobQuery) Matches(job *Job) bool {
	if !q.ID.IsZero() && job.ID != q.ID {
		return false
	}
	if q.Name != "" && job.Name != q.Name {
		return false
	}
	if q.Type != "" && job.Type != q.Type {
		return false
	}
	for _, name := range q.ExcludeNames {
		if job.Name == name {
			return false
		}
	}
	if q.FinishedBefore != nil {
		if job.NextRunAt != nil || job.LastFinishedAt == nil {
			return false
		}
		if !job.LastFinishedAt.Before(*q.FinishedBefore) {
			return false
		}
	}
	return true
}

// Normalize applies pagination defaults
func (q *JobQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
}
