package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connMaxLifetime     = 30 * time.Minute
	connMaxIdleTime     = 5 * time.Minute
	poolHealthCheck     = 30 * time.Second
	postgresPingTimeout = 5 * time.Second
)

// PoolSize bounds the pgx pool. Zero values keep pgx defaults.
type PoolSize struct {
	MaxConns int32
	MinConns int32
}

// DB is the PostgreSQL backend for STORE_DRIVER=postgres.
type DB struct {
	Pool *pgxpool.Pool
}

// New opens a pool against databaseURL and pings it once. Unlike the Mongo
// client, an unreachable server is an error here.
func New(ctx context.Context, databaseURL string, size PoolSize) (*DB, error) {
	cfg, err := poolConfig(databaseURL, size)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	db := &DB{Pool: pool}
	pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("postgres connected",
		"database", cfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
	)
	return db, nil
}

func poolConfig(databaseURL string, size PoolSize) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if size.MaxConns > 0 {
		cfg.MaxConns = size.MaxConns
	}
	if size.MinConns > 0 {
		cfg.MinConns = size.MinConns
	}
	cfg.MaxConnLifetime = connMaxLifetime
	cfg.MaxConnIdleTime = connMaxIdleTime
	cfg.HealthCheckPeriod = poolHealthCheck

	return cfg, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping backs the /health endpoint for the postgres store.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
