// Package janitor runs periodic housekeeping: pruning old execution records
// from the store and sweeping stale temp files out of project workspaces.
// It runs as a background goroutine in gateway mode.
package janitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/acheng/runbox/internal/storage"
)

// Config controls the janitor schedule and retention.
type Config struct {
	// Schedule is a standard 5-field cron expression.
	Schedule string
	// Retention is how long execution records are kept.
	Retention time.Duration
	// ProjectRoot, when set, is swept for stale temp files.
	ProjectRoot string
}

// Janitor prunes old records and stale scratch files on a cron schedule.
type Janitor struct {
	config Config
	store  storage.Store
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a Janitor. store may be nil; only the workspace sweep runs then.
func New(cfg Config, store storage.Store, logger *slog.Logger) *Janitor {
	return &Janitor{
		config: cfg,
		store:  store,
		logger: logger.With(slog.String("component", "janitor")),
	}
}

// Start registers the cron entry and begins running. It returns immediately;
// jobs fire on their own goroutines.
func (j *Janitor) Start(ctx context.Context) error {
	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.config.Schedule, func() {
		j.runOnce(ctx)
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("janitor started",
		slog.String("schedule", j.config.Schedule),
		slog.Duration("retention", j.config.Retention),
	)
	return nil
}

// Stop halts the schedule and waits for any running job to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// runOnce performs one housekeeping pass.
func (j *Janitor) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if j.store != nil && j.config.Retention > 0 {
		cutoff := time.Now().Add(-j.config.Retention)
		pruned, err := j.store.PruneOlderThan(ctx, cutoff)
		if err != nil {
			j.logger.Error("prune failed", slog.String("error", err.Error()))
		} else if pruned > 0 {
			j.logger.Info("pruned execution records", slog.Int64("count", pruned))
		}
	}

	if j.config.ProjectRoot != "" {
		if removed := j.sweepTempFiles(); removed > 0 {
			j.logger.Info("removed stale temp files", slog.Int("count", removed))
		}
	}
}

// sweepTempFiles removes editor and tooling droppings older than a day from
// the project tree. Only known temp name patterns are touched; everything
// else, including user work of any age, is left alone.
func (j *Janitor) sweepTempFiles() int {
	cutoff := time.Now().Add(-24 * time.Hour)
	removed := 0

	_ = filepath.WalkDir(j.config.ProjectRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !isTempName(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
		return nil
	})

	return removed
}

func isTempName(name string) bool {
	switch {
	case strings.HasSuffix(name, ".tmp"),
		strings.HasSuffix(name, ".swp"),
		strings.HasSuffix(name, "~"),
		strings.HasPrefix(name, ".#"):
		return true
	}
	return false
}
