package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB represents a MongoDB connection
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database

	disconnectOnce sync.Once
	disconnectErr  error
}

// Connect establishes a connection to MongoDB with proper configuration
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*MongoDB, error) {
	slog.Info("Connecting to MongoDB", "database", database)

	// Create context with timeout
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetSocketTimeout(30 * time.Second).
		SetServerSelectionTimeout(10 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetCompressors([]string{"snappy"})

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	slog.Info("Successfully connected to MongoDB")

	return New(client, database), nil
}

// New wraps an existing client
func New(client *mongo.Client, database string) *MongoDB {
	return &MongoDB{
		Client:   client,
		Database: client.Database(database),
	}
}

// Disconnect closes the MongoDB connection. Only the first call disconnects;
// later calls return the same result.
func (m *MongoDB) Disconnect(ctx context.Context) error {
	m.disconnectOnce.Do(func() {
		slog.Info("Disconnecting from MongoDB")

		disconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := m.Client.Disconnect(disconnectCtx); err != nil {
			m.disconnectErr = fmt.Errorf("failed to disconnect from MongoDB: %w", err)
			return
		}

		slog.Info("Successfully disconnected from MongoDB")
	})

	return m.disconnectErr
}

// Ping verifies the connection is alive
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

// GetCollection returns a collection by name
func (m *MongoDB) GetCollection(name string) *mongo.Collection {
	return m.Database.Collection(name)
}

// DefaultJobsCollection is the collection used when none is configured
const DefaultJobsCollection = "agenda_jobs"
