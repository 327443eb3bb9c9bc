// Package audit keeps an optional history of workflow runs in SQLite or
// PostgreSQL.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/spherical/snap2pdf/internal/config"
	"github.com/spherical/snap2pdf/internal/domain"
)

// Store records finished runs and lists recent ones.
type Store interface {
	Record(ctx context.Context, rec domain.RunRecord) error
	Recent(ctx context.Context, n int) ([]domain.RunRecord, error)
	Close() error
}

// Open returns the store selected by cfg. Driver "none" yields a Nop store.
func Open(ctx context.Context, cfg config.AuditConfig) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return Nop{}, nil
	case "sqlite", "postgres":
	default:
		return nil, domain.ConfigError(fmt.Sprintf("invalid audit driver: %s", cfg.Driver), nil)
	}
	driver := cfg.Driver
	if driver == "sqlite" {
		driver = "sqlite3"
	}
	store, err := OpenSQL(ctx, driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, domain.RunRecord) error { return nil }

func (Nop) Recent(context.Context, int) ([]domain.RunRecord, error) { return nil, nil }

func (Nop) Close() error { return nil }

var schemas = map[string]string{
	"sqlite3": `
		CREATE TABLE IF NOT EXISTS workflow_runs (
			id           TEXT PRIMARY KEY,
			workflow     TEXT NOT NULL,
			status       TEXT NOT NULL,
			error_type   TEXT NOT NULL DEFAULT '',
			message      TEXT NOT NULL DEFAULT '',
			output_name  TEXT NOT NULL DEFAULT '',
			output_bytes INTEGER NOT NULL DEFAULT 0,
			started_at   TIMESTAMP NOT NULL,
			duration_ms  INTEGER NOT NULL
		)`,
	"postgres": `
		CREATE TABLE IF NOT EXISTS workflow_runs (
			id           UUID PRIMARY KEY,
			workflow     TEXT NOT NULL,
			status       TEXT NOT NULL,
			error_type   TEXT NOT NULL DEFAULT '',
			message      TEXT NOT NULL DEFAULT '',
			output_name  TEXT NOT NULL DEFAULT '',
			output_bytes BIGINT NOT NULL DEFAULT 0,
			started_at   TIMESTAMPTZ NOT NULL,
			duration_ms  BIGINT NOT NULL
		)`,
}

// SQLStore writes runs to table workflow_runs.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL connects with driver ("sqlite3" or "postgres") and creates the
// table if needed.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, domain.ConfigError(fmt.Sprintf("unsupported sql driver: %s", driver), nil)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// sqlite admits a single writer
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create workflow_runs: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Record inserts one run.
func (s *SQLStore) Record(ctx context.Context, rec domain.RunRecord) error {
	query := `
		INSERT INTO workflow_runs (id, workflow, status, error_type, message,
			output_name, output_bytes, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, string(rec.Workflow), string(rec.Status), string(rec.ErrorType), rec.Message,
		rec.OutputName, rec.OutputBytes, rec.StartedAt.UTC(), rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert workflow run: %w", err)
	}
	return nil
}

// Recent returns up to n runs, newest first.
func (s *SQLStore) Recent(ctx context.Context, n int) ([]domain.RunRecord, error) {
	if n <= 0 {
		n = 20
	}
	query := `
		SELECT id, workflow, status, error_type, message, output_name,
			output_bytes, started_at, duration_ms
		FROM workflow_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query workflow runs: %w", err)
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var (
			rec                         domain.RunRecord
			workflow, status, errorType string
			durationMS                  int64
		)
		if err := rows.Scan(&rec.ID, &workflow, &status, &errorType, &rec.Message,
			&rec.OutputName, &rec.OutputBytes, &rec.StartedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan workflow run: %w", err)
		}
		rec.Workflow = domain.WorkflowName(workflow)
		rec.Status = domain.RunStatus(status)
		rec.ErrorType = domain.ErrorType(errorType)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
