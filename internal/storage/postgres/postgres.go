// Package postgres implements the execution-history store on PostgreSQL.
// Uses pgx/v5 connection pooling directly; schema migration runs at startup.
// Intended for multi-instance deployments where a shared history is wanted —
// single-node installs should stay on the SQLite default.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acheng/runbox/internal/storage"
)

// Config holds PostgreSQL-specific configuration.
type Config struct {
	DSN             string
	MaxConns        int32         // Default: 10.
	MaxConnLifetime time.Duration // Default: 30 minutes.
}

func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id              UUID PRIMARY KEY,
	category        TEXT NOT NULL,
	commands        JSONB NOT NULL,
	work_dir        TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL DEFAULT '',
	user_id         TEXT NOT NULL DEFAULT '',
	overall_success BOOLEAN NOT NULL,
	stopped_early   BOOLEAN NOT NULL,
	result_count    INTEGER NOT NULL,
	duration_ms     BIGINT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_created_at ON executions (created_at);
`

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// New creates a PostgreSQL store, verifies connectivity, and applies the
// schema.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Info("postgres store ready")

	return &Store{pool: pool, logger: logger}, nil
}

// Record saves one execution record.
func (s *Store) Record(ctx context.Context, rec *storage.ExecutionRecord) error {
	cmds, err := json.Marshal(rec.Commands)
	if err != nil {
		return fmt.Errorf("encoding commands: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO executions (
			id, category, commands, work_dir, source, user_id,
			overall_success, stopped_early, result_count, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		rec.ID, rec.Category, cmds, rec.WorkDir, rec.Source, rec.UserID,
		rec.OverallSuccess, rec.StoppedEarly, rec.ResultCount, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting execution record: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]storage.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, category, commands, work_dir, source, user_id,
		       overall_success, stopped_early, result_count, duration_ms, created_at
		FROM executions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing execution records: %w", err)
	}
	defer rows.Close()

	var recs []storage.ExecutionRecord
	for rows.Next() {
		var (
			rec     storage.ExecutionRecord
			id      uuid.UUID
			cmdJSON []byte
		)
		if err := rows.Scan(
			&id, &rec.Category, &cmdJSON, &rec.WorkDir, &rec.Source, &rec.UserID,
			&rec.OverallSuccess, &rec.StoppedEarly, &rec.ResultCount, &rec.DurationMS, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning execution record: %w", err)
		}
		rec.ID = id
		if err := json.Unmarshal(cmdJSON, &rec.Commands); err != nil {
			s.logger.Warn("skipping corrupt execution row",
				slog.String("id", id.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// PruneOlderThan deletes records created before cutoff.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM executions WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning execution records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
