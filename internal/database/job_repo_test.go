package database

import (
	"context"
	"testing"
	"time"

	"github.com/dandantas/agenda/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newTestRepo(mt *mtest.T) *JobRepository {
	return NewJobRepository(&MongoDB{Client: mt.Client, Database: mt.DB}, "")
}

func TestJobRepository_LockNext(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	mt.Run("returns locked job", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		id := primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "report"},
			{Key: "type", Value: model.JobTypeNormal},
			{Key: "next_run_at", Value: now},
			{Key: "locked_at", Value: now},
			{Key: "locked_by", Value: "worker-1"},
		}}))

		job, err := repo.LockNext(context.Background(), "report", now, now.Add(-10*time.Minute), "worker-1")
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, id, job.ID)
		assert.Equal(t, "report", job.Name)
		assert.Equal(t, "worker-1", job.LockedBy)
		require.NotNil(t, job.LockedAt)
	})

	mt.Run("nothing due", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		job, err := repo.LockNext(context.Background(), "report", now, now.Add(-10*time.Minute), "worker-1")
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	mt.Run("command error", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad query",
			Name:    "BadValue",
		}))

		_, err := repo.LockNext(context.Background(), "report", now, now.Add(-10*time.Minute), "worker-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to lock job")
	})
}

func TestJobRepository_Save(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert normal job", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		next := time.Now().UTC().Add(time.Hour)
		saved, err := repo.Save(context.Background(), &model.Job{
			Name:      "report",
			Type:      model.JobTypeNormal,
			NextRunAt: &next,
		})
		require.NoError(t, err)
		assert.False(t, saved.ID.IsZero())
		assert.Equal(t, "report", saved.Name)
	})

	mt.Run("upsert single job", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		id := primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "agenda.purge"},
			{Key: "type", Value: model.JobTypeSingle},
			{Key: "repeat_interval", Value: "1 day"},
		}}))

		now := time.Now().UTC()
		saved, err := repo.Save(context.Background(), &model.Job{
			Name:           "agenda.purge",
			Type:           model.JobTypeSingle,
			RepeatInterval: "1 day",
			NextRunAt:      &now,
		})
		require.NoError(t, err)
		assert.Equal(t, id, saved.ID)
		assert.Equal(t, "1 day", saved.RepeatInterval)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "findAndModify", started.CommandName)
		assert.Equal(t, true, started.Command.Lookup("upsert").Boolean())

		// Due single jobs only get a run time on insert
		update := started.Command.Lookup("update").Document()
		_, err = update.LookupErr("$setOnInsert", "next_run_at")
		assert.NoError(t, err)
		_, err = update.LookupErr("$set", "next_run_at")
		assert.Error(t, err)
	})

	mt.Run("replace by id", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		job := &model.Job{ID: primitive.NewObjectID(), Name: "report", Type: model.JobTypeNormal}
		saved, err := repo.Save(context.Background(), job)
		require.NoError(t, err)
		assert.Equal(t, job.ID, saved.ID)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "update", started.CommandName)
	})
}

func TestJobRepository_UnlockAll(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("releases locks", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 2},
			bson.E{Key: "nModified", Value: 2},
		))

		count, err := repo.UnlockAll(context.Background(), "worker-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})
}

func TestJobRepository_Find(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns page and total", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		ns := mt.DB.Name() + "." + DefaultJobsCollection

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "a"}},
				bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "name", Value: "b"}},
			),
		)

		jobs, total, err := repo.Find(context.Background(), model.JobQuery{Page: 1, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, jobs, 2)
		assert.Equal(t, "a", jobs[0].Name)
		assert.Equal(t, "b", jobs[1].Name)
	})
}

func TestJobRepository_Delete(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deletes matches", func(mt *mtest.T) {
		repo := newTestRepo(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 4}))

		count, err := repo.Delete(context.Background(), model.JobQuery{Name: "report"})
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})
}

func TestQueryFilter(t *testing.T) {
	before := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	id := primitive.NewObjectID()

	filter := queryFilter(model.JobQuery{
		ID:             id,
		Name:           "report",
		Type:           model.JobTypeNormal,
		ExcludeNames:   []string{"b", "a"},
		FinishedBefore: &before,
	})

	assert.Equal(t, id, filter["_id"])
	assert.Equal(t, bson.M{"$eq": "report", "$nin": []string{"a", "b"}}, filter["name"])
	assert.Equal(t, model.JobTypeNormal, filter["type"])
	assert.Nil(t, filter["next_run_at"])
	assert.Contains(t, filter, "next_run_at")
	assert.Equal(t, bson.M{"$lt": before}, filter["last_finished_at"])

	assert.Empty(t, queryFilter(model.JobQuery{}))
}
