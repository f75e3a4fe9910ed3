package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed migrations/001_users.up.sql
var usersMigrationSQL string

// EnsureSchema applies the users migration. The statement is idempotent, so
// it runs on every start.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	if _, err := db.Pool.Exec(ctx, usersMigrationSQL); err != nil {
		return fmt.Errorf("apply users migration: %w", err)
	}

	var hasConstraint bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.table_constraints
			WHERE table_name = 'users'
			  AND constraint_type = 'UNIQUE'
			  AND constraint_name = 'users_email_unique'
		)
	`).Scan(&hasConstraint)
	if err != nil {
		return fmt.Errorf("check email constraint: %w", err)
	}
	if !hasConstraint {
		return fmt.Errorf("users table exists without the users_email_unique constraint")
	}

	slog.Info("database schema ensured")
	return nil
}
