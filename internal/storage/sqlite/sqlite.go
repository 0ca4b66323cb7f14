// Package sqlite implements the execution-history store on SQLite via GORM.
// Uses modernc.org/sqlite (pure Go, no CGO) through the glebarez/sqlite GORM
// driver, with WAL mode enabled for concurrent reads. This is the default
// backend — a single file under the data directory, zero setup.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/acheng/runbox/internal/storage"
)

// Config holds SQLite-specific configuration.
type Config struct {
	Path        string // Database file path.
	JournalMode string // Default: "wal".
}

// Store implements storage.Store backed by SQLite.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	path   string
}

var _ storage.Store = (*Store)(nil)

// executionRow is the GORM model for the executions table.
type executionRow struct {
	ID             string    `gorm:"primaryKey;type:text"`
	Category       string    `gorm:"index;not null"`
	Commands       string    `gorm:"not null"` // JSON-encoded []string.
	WorkDir        string
	Source         string    `gorm:"index"`
	UserID         string    `gorm:"index"`
	OverallSuccess bool
	StoppedEarly   bool
	ResultCount    int
	DurationMS     int64
	CreatedAt      time.Time `gorm:"index;not null"`
}

func (executionRow) TableName() string { return "executions" }

// New opens (and if needed creates) the SQLite database and migrates the
// executions table.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	journal := cfg.JournalMode
	if journal == "" {
		journal = "wal"
	}
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(%s)&_pragma=busy_timeout(5000)", cfg.Path, journal)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&executionRow{}); err != nil {
		return nil, fmt.Errorf("migrating executions table: %w", err)
	}

	logger.Info("sqlite store ready", slog.String("path", cfg.Path))

	return &Store{db: db, logger: logger, path: cfg.Path}, nil
}

// Record saves one execution record.
func (s *Store) Record(ctx context.Context, rec *storage.ExecutionRecord) error {
	cmds, err := json.Marshal(rec.Commands)
	if err != nil {
		return fmt.Errorf("encoding commands: %w", err)
	}
	row := executionRow{
		ID:             rec.ID.String(),
		Category:       rec.Category,
		Commands:       string(cmds),
		WorkDir:        rec.WorkDir,
		Source:         rec.Source,
		UserID:         rec.UserID,
		OverallSuccess: rec.OverallSuccess,
		StoppedEarly:   rec.StoppedEarly,
		ResultCount:    rec.ResultCount,
		DurationMS:     rec.DurationMS,
		CreatedAt:      rec.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("inserting execution record: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]storage.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []executionRow
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing execution records: %w", err)
	}

	recs := make([]storage.ExecutionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			s.logger.Warn("skipping corrupt execution row",
				slog.String("id", row.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// PruneOlderThan deletes records created before cutoff.
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&executionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning execution records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Ping verifies the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecord(row executionRow) (storage.ExecutionRecord, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return storage.ExecutionRecord{}, fmt.Errorf("parsing id: %w", err)
	}
	var cmds []string
	if err := json.Unmarshal([]byte(row.Commands), &cmds); err != nil {
		return storage.ExecutionRecord{}, fmt.Errorf("decoding commands: %w", err)
	}
	return storage.ExecutionRecord{
		ID:             id,
		Category:       row.Category,
		Commands:       cmds,
		WorkDir:        row.WorkDir,
		Source:         row.Source,
		UserID:         row.UserID,
		OverallSuccess: row.OverallSuccess,
		StoppedEarly:   row.StoppedEarly,
		ResultCount:    row.ResultCount,
		DurationMS:     row.DurationMS,
		CreatedAt:      row.CreatedAt,
	}, nil
}
