package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Config holds database configuration
type Config struct {
	Path            string
	ReadOnly        bool
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DB wraps sql.DB with logging
type DB struct {
	*sql.DB
	path   string
	logger *zap.Logger
}

// New opens a SQLite database. Read-only handles never create the file.
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", cfg.Path)
	if cfg.ReadOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", cfg.Path)
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("path", cfg.Path),
		zap.Bool("read_only", cfg.ReadOnly))

	return &DB{DB: sqlDB, path: cfg.Path, logger: logger}, nil
}

// OpenReadOnly opens path for reading only
func OpenReadOnly(path string, logger *zap.Logger) (*DB, error) {
	return New(Config{Path: path, ReadOnly: true, MaxOpenConns: 1}, logger)
}

// QueryEach runs query and calls fn for every row. Iteration stops at the first error.
func (db *DB) QueryEach(ctx context.Context, query string, fn func(*sql.Rows) error, args ...interface{}) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", db.path, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate rows: %w", err)
	}
	return nil
}

// WithTransaction runs fn in a transaction, committing on success and rolling
// back on error or panic
func (db *DB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	db.logger.Debug("Closing database connection", zap.String("path", db.path))
	return db.DB.Close()
}
