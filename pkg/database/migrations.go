package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration is one versioned schema change
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator applies migrations that have not been recorded yet
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// Run applies every pending migration in version order, each in its own
// transaction, and returns how many were applied
func (m *Migrator) Run(ctx context.Context, migrations []Migration) (int, error) {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[int]bool)
	err := m.db.QueryEach(ctx, "SELECT version FROM schema_migrations", func(rows *sql.Rows) error {
		var version int
		if err := rows.Scan(&version); err != nil {
			return err
		}
		applied[version] = true
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending := make([]Migration, 0, len(migrations))
	for _, mig := range migrations {
		if !applied[mig.Version] {
			pending = append(pending, mig)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})

	for _, mig := range pending {
		m.logger.Info("Applying migration",
			zap.Int("version", mig.Version),
			zap.String("name", mig.Name))

		err := m.db.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
				return fmt.Errorf("failed to execute migration SQL: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
				mig.Version, mig.Name); err != nil {
				return fmt.Errorf("failed to record migration: %w", err)
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
	}

	return len(pending), nil
}
