package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/dandantas/agenda/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates the indexes used by the job repository
func CreateIndexes(ctx context.Context, db *MongoDB, collectionName string) error {
	slog.Info("Creating MongoDB indexes", "collection", collectionName)

	collection := db.GetCollection(collectionName)

	indexes := []mongo.IndexModel{
		{
			// Covers the lock query: due jobs of one name ordered by priority
			Keys: bson.D{
				{Key: "name", Value: 1},
				{Key: "next_run_at", Value: 1},
				{Key: "priority", Value: -1},
				{Key: "locked_at", Value: 1},
				{Key: "disabled", Value: 1},
			},
			Options: options.Index().SetName("idx_find_and_lock_next_job"),
		},
		{
			Keys: bson.D{{Key: "name", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"type": model.JobTypeSingle}).
				SetName("idx_single_job_name_unique"),
		},
		{
			Keys:    bson.D{{Key: "locked_by", Value: 1}},
			Options: options.Index().SetName("idx_locked_by"),
		},
		{
			Keys: bson.D{
				{Key: "next_run_at", Value: 1},
				{Key: "last_finished_at", Value: 1},
			},
			Options: options.Index().SetName("idx_next_run_at_last_finished_at"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctxTimeout, indexes); err != nil {
		return err
	}

	slog.Info("Successfully created MongoDB indexes", "collection", collectionName)
	return nil
}
