package app

import (
	"context"
	"fmt"
	"log/slog"

	"go-user-service/internal/config"
	"go-user-service/internal/database"
	"go-user-service/internal/repository"
	"go-user-service/internal/service"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type storeBackend struct {
	users  service.UserStore
	pinger pinger
	close  func(context.Context)
}

func openStore(ctx context.Context, cfg *config.Config) (storeBackend, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		return openMongo(ctx, cfg)
	case config.StorePostgres:
		return openPostgres(ctx, cfg)
	case config.StoreMemory:
		slog.Warn("using in-memory user store; data is lost on restart")
		repo := repository.NewMemoryUserRepository()
		return storeBackend{users: repo, pinger: repo, close: func(context.Context) {}}, nil
	default:
		return storeBackend{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// openMongo never fails on an unreachable server: the ping result is logged
// and the process keeps going.
func openMongo(ctx context.Context, cfg *config.Config) (storeBackend, error) {
	slog.Info("connecting to MongoDB", "database", cfg.MongoDatabase())
	m, err := database.NewMongo(cfg.MongoConnectionURI(), cfg.MongoDatabase())
	if err != nil {
		return storeBackend{}, fmt.Errorf("failed to initialize mongo client: %w", err)
	}

	repo := repository.NewMongoUserRepository(m.Database)
	if m.CheckConnection(ctx) {
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = m.Close(ctx)
			return storeBackend{}, fmt.Errorf("failed to ensure user indexes: %w", err)
		}
	} else {
		slog.Warn("unique email index deferred until the first registration")
	}

	return storeBackend{
		users:  repo,
		pinger: m,
		close: func(ctx context.Context) {
			if err := m.Close(ctx); err != nil {
				slog.Error("failed to disconnect from MongoDB", "error", err)
			}
		},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (storeBackend, error) {
	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, database.PoolSize{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return storeBackend{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return storeBackend{}, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	return storeBackend{
		users:  repository.NewPostgresUserRepository(db.Pool),
		pinger: db,
		close:  func(context.Context) { db.Close() },
	}, nil
}
