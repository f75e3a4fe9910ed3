package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const mongoServerSelectionTimeout = 5 * time.Second

// Mongo owns the client for the lifetime of the process: created in app.New,
// disconnected on shutdown.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongo creates the client. The driver connects lazily, so an unreachable
// server does not fail here.
func NewMongo(uri string, database string) (*Mongo, error) {
	if database == "" {
		return nil, fmt.Errorf("mongo database name is required")
	}

	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(mongoServerSelectionTimeout))
	if err != nil {
		return nil, fmt.Errorf("create mongo client: %w", err)
	}

	return &Mongo{Client: client, Database: client.Database(database)}, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, readpref.Primary())
}

// CheckConnection pings once and only logs the outcome.
func (m *Mongo) CheckConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, mongoServerSelectionTimeout)
	defer cancel()

	if err := m.Ping(ctx); err != nil {
		slog.Error("failed to connect to MongoDB", "error", err)
		return false
	}

	slog.Info("successfully connected to MongoDB", "database", m.Database.Name())
	return true
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.Client == nil {
		return nil
	}
	return m.Client.Disconnect(ctx)
}
