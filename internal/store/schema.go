package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Initialize creates the schema on a fresh database and applies any
// outstanding migrations. It is a no-op on a database already stamped with
// CurrentSchemaVersion. All DDL runs in one transaction; on failure nothing
// is applied and the error wraps ErrSchema.
func Initialize(ctx context.Context, db *sqlx.DB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}
	if current == CurrentSchemaVersion {
		return nil
	}
	if current > CurrentSchemaVersion {
		return fmt.Errorf("%w: database is v%d, this build supports v%d",
			ErrUnsupportedSchema, current, CurrentSchemaVersion)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrSchema, err)
	}
	defer tx.Rollback()

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("%w: applying migration v%d: %w", ErrSchema, m.version, err)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO schema_info (version, applied_at, description) VALUES (?, ?, ?)",
			m.version, time.Now().UTC(), m.description,
		)
		if err != nil {
			return fmt.Errorf("%w: stamping v%d: %w", ErrSchema, m.version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %w", ErrSchema, err)
	}
	return nil
}

// SchemaVersion returns the highest version recorded in schema_info,
// or 0 when the database has never been initialized.
func SchemaVersion(ctx context.Context, q sqlx.QueryerContext) (int, error) {
	var tableCount int
	err := sqlx.GetContext(ctx, q, &tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_info'",
	)
	if err != nil {
		return 0, fmt.Errorf("checking schema_info table: %w", err)
	}
	if tableCount == 0 {
		return 0, nil
	}

	var version int
	err = sqlx.GetContext(ctx, q, &version, "SELECT COALESCE(MAX(version), 0) FROM schema_info")
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
