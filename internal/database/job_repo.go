package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dandantas/agenda/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// JobRepository persists agenda jobs in MongoDB and implements job locking
type JobRepository struct {
	db         *MongoDB
	collection *mongo.Collection
	now        func() time.Time
}

// NewJobRepository creates a new job repository. An empty collection name
// selects DefaultJobsCollection.
func NewJobRepository(db *MongoDB, collectionName string) *JobRepository {
	if collectionName == "" {
		collectionName = DefaultJobsCollection
	}
	return &JobRepository{
		db:         db,
		collection: db.GetCollection(collectionName),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Save stores a job. Jobs with an ID are replaced. Jobs carrying unique fields,
// and single jobs, are upserted so only one document exists for them.
func (r *JobRepository) Save(ctx context.Context, job *model.Job) (*model.Job, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !job.ID.IsZero() {
		result, err := r.collection.ReplaceOne(ctxTimeout, bson.M{"_id": job.ID}, job)
		if err != nil {
			return nil, fmt.Errorf("failed to replace job: %w", err)
		}
		if result.MatchedCount == 0 {
			slog.Debug("Saved job no longer exists", "job", job.Name, "job_id", job.ID.Hex())
		}
		return job.Clone(), nil
	}

	if len(job.Unique) > 0 || job.Type == model.JobTypeSingle {
		return r.upsert(ctxTimeout, job)
	}

	result, err := r.collection.InsertOne(ctxTimeout, job)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	saved := job.Clone()
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		saved.ID = id
	}
	return saved, nil
}

func (r *JobRepository) upsert(ctx context.Context, job *model.Job) (*model.Job, error) {
	filter := bson.M{"name": job.Name}
	if len(job.Unique) > 0 {
		for key, value := range job.Unique {
			filter["data."+key] = value
		}
	} else {
		filter["type"] = model.JobTypeSingle
	}

	set := bson.M{
		"type":             job.Type,
		"data":             job.Data,
		"priority":         job.Priority,
		"disabled":         job.Disabled,
		"unique":           job.Unique,
		"repeat_interval":  job.RepeatInterval,
		"repeat_timezone":  job.RepeatTimezone,
		"last_modified_by": job.LastModifiedBy,
	}
	update := bson.M{}

	// A due single job keeps the run time it already has
	if job.Type == model.JobTypeSingle && job.NextRunAt != nil && !job.NextRunAt.After(r.now()) {
		update["$setOnInsert"] = bson.M{"next_run_at": job.NextRunAt}
	} else {
		set["next_run_at"] = job.NextRunAt
	}
	update["$set"] = set

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved model.Job
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return nil, fmt.Errorf("failed to upsert job: %w", err)
	}

	slog.Debug("Upserted job", "job", saved.Name, "job_id", saved.ID.Hex())
	return &saved, nil
}

// LockNext atomically locks the next due job named name. Jobs whose lock is
// older than lockDeadline are considered abandoned and can be taken over.
// Returns nil when nothing is due.
func (r *JobRepository) LockNext(ctx context.Context, name string, now, lockDeadline time.Time, worker string) (*model.Job, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"name":        name,
		"disabled":    bson.M{"$ne": true},
		"next_run_at": bson.M{"$lte": now},
		"$or": []bson.M{
			{"locked_at": nil},                          // Not locked
			{"locked_at": bson.M{"$lte": lockDeadline}}, // Expired lock
		},
	}

	update := bson.M{
		"$set": bson.M{
			"locked_at": now,
			"locked_by": worker,
		},
	}

	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "next_run_at", Value: 1}}).
		SetReturnDocument(options.After)

	var job model.Job
	err := r.collection.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock job: %w", err)
	}

	slog.Debug("Locked job",
		"job", job.Name,
		"job_id", job.ID.Hex(),
		"worker", worker,
	)

	return &job, nil
}

// UnlockAll releases every lock held by worker.
// This is typically called during graceful shutdown.
func (r *JobRepository) UnlockAll(ctx context.Context, worker string) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"locked_by": worker,
		"locked_at": bson.M{"$ne": nil},
	}
	update := bson.M{
		"$set":   bson.M{"locked_at": nil},
		"$unset": bson.M{"locked_by": ""},
	}

	result, err := r.collection.UpdateMany(ctxTimeout, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to release job locks: %w", err)
	}

	if result.ModifiedCount > 0 {
		slog.Info("Released job locks",
			"worker", worker,
			"count", result.ModifiedCount,
		)
	}

	return result.ModifiedCount, nil
}

// Find returns a page of jobs matching q ordered by next run time, with the
// total number of matches
func (r *JobRepository) Find(ctx context.Context, q model.JobQuery) ([]model.Job, int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := queryFilter(q)

	total, err := r.collection.CountDocuments(ctxTimeout, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "next_run_at", Value: 1}, {Key: "_id", Value: 1}})
	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * q.Limit)).SetLimit(int64(q.Limit))
	}

	cursor, err := r.collection.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find jobs: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	jobs := make([]model.Job, 0)
	if err := cursor.All(ctxTimeout, &jobs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode jobs: %w", err)
	}

	return jobs, total, nil
}

// Delete removes jobs matching q and returns how many were removed
func (r *JobRepository) Delete(ctx context.Context, q model.JobQuery) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.collection.DeleteMany(ctxTimeout, queryFilter(q))
	if err != nil {
		return 0, fmt.Errorf("failed to delete jobs: %w", err)
	}

	return result.DeletedCount, nil
}

// Close disconnects the underlying client
func (r *JobRepository) Close(ctx context.Context) error {
	return r.db.Disconnect(ctx)
}

// queryFilter translates a job query into a MongoDB filter
func queryFilter(q model.JobQuery) bson.M {
	filter := bson.M{}

	if !q.ID.IsZero() {
		filter["_id"] = q.ID
	}

	name := bson.M{}
	if q.Name != "" {
		name["$eq"] = q.Name
	}
	if len(q.ExcludeNames) > 0 {
		excluded := append([]string(nil), q.ExcludeNames...)
		sort.Strings(excluded)
		name["$nin"] = excluded
	}
	if len(name) > 0 {
		filter["name"] = name
	}

	if q.Type != "" {
		filter["type"] = q.Type
	}

	if q.FinishedBefore != nil {
		filter["next_run_at"] = nil
		filter["last_finished_at"] = bson.M{"$lt": *q.FinishedBefore}
	}

	return filter
}
