package agenda

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dandantas/agenda/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-memory job store. Jobs do not survive a restart and
// locks are only shared between agendas using the same store value.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[primitive.ObjectID]*model.Job
	now  func() time.Time
}

// NewMemoryStore creates a new in-memory job store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[primitive.ObjectID]*model.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Save stores a job. Saving a job whose id is no longer stored does not
// bring it back.
func (s *MemoryStore) Save(ctx context.Context, job *model.Job) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !job.ID.IsZero() {
		if _, ok := s.jobs[job.ID]; !ok {
			return job.Clone(), nil
		}
		stored := job.Clone()
		s.jobs[job.ID] = stored
		return stored.Clone(), nil
	}

	if existing := s.findExisting(job); existing != nil {
		mergeInto(existing, job, job.Type == model.JobTypeSingle && isDue(job, s.now()))
		return existing.Clone(), nil
	}

	stored := job.Clone()
	stored.ID = primitive.NewObjectID()
	s.jobs[stored.ID] = stored
	return stored.Clone(), nil
}

// LockNext locks the next due job named name
func (s *MemoryStore) LockNext(ctx context.Context, name string, now, lockDeadline time.Time, worker string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*model.Job
	for _, job := range s.jobs {
		if job.Name != name || !job.IsDue(now) {
			continue
		}
		if job.LockedAt != nil && job.LockedAt.After(lockDeadline) {
			continue
		}
		candidates = append(candidates, job)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].NextRunAt.Before(*candidates[j].NextRunAt)
	})

	next := candidates[0]
	lockedAt := now
	next.LockedAt = &lockedAt
	next.LockedBy = worker

	return next.Clone(), nil
}

// UnlockAll releases every lock held by worker
func (s *MemoryStore) UnlockAll(ctx context.Context, worker string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, job := range s.jobs {
		if job.LockedBy == worker && job.LockedAt != nil {
			job.LockedAt = nil
			job.LockedBy = ""
			count++
		}
	}
	return count, nil
}

// Find returns jobs matching q ordered by next run time
func (s *MemoryStore) Find(ctx context.Context, q model.JobQuery) ([]model.Job, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]model.Job, 0)
	for _, job := range s.jobs {
		if q.Matches(job) {
			matches = append(matches, *job.Clone())
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].NextRunAt, matches[j].NextRunAt
		switch {
		case a == nil && b == nil:
			return matches[i].ID.Hex() < matches[j].ID.Hex()
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})

	total := int64(len(matches))
	if q.Limit <= 0 {
		return matches, total, nil
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * q.Limit
	if start >= len(matches) {
		return []model.Job{}, total, nil
	}
	end := start + q.Limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], total, nil
}

// Delete removes jobs matching q
func (s *MemoryStore) Delete(ctx context.Context, q model.JobQuery) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, job := range s.jobs {
		if q.Matches(job) {
			delete(s.jobs, id)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) findExisting(job *model.Job) *model.Job {
	for _, existing := range s.jobs {
		if existing.Name != job.Name {
			continue
		}
		if len(job.Unique) > 0 {
			if matchesUnique(existing, job.Unique) {
				return existing
			}
			continue
		}
		if job.Type == model.JobTypeSingle && existing.Type == model.JobTypeSingle {
			return existing
		}
	}
	return nil
}

func matchesUnique(job *model.Job, unique map[string]interface{}) bool {
	for key, value := range unique {
		if job.Data == nil || job.Data[key] != value {
			return false
		}
	}
	return true
}

// mergeInto copies the definition fields of update onto existing. Lock state
// and run history stay untouched, and so does next_run_at when keepNextRun is set.
func mergeInto(existing, update *model.Job, keepNextRun bool) {
	existing.Type = update.Type
	existing.Data = update.Clone().Data
	existing.Priority = update.Priority
	existing.Disabled = update.Disabled
	existing.Unique = update.Clone().Unique
	existing.RepeatInterval = update.RepeatInterval
	existing.RepeatTimezone = update.RepeatTimezone
	existing.LastModifiedBy = update.LastModifiedBy
	if !keepNextRun {
		existing.NextRunAt = update.Clone().NextRunAt
	}
}

func isDue(job *model.Job, now time.Time) bool {
	return job.NextRunAt != nil && !job.NextRunAt.After(now)
}
