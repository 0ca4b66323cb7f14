// Package storage defines the execution-history persistence interface.
// Every completed run is recorded so operators can see what the service
// actually executed. Recording is best-effort — a storage failure never
// fails the request that produced the report.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ExecutionRecord is one completed run of a command spec.
type ExecutionRecord struct {
	ID             uuid.UUID `json:"id"`
	Category       string    `json:"category"`
	Commands       []string  `json:"commands"`
	WorkDir        string    `json:"work_dir,omitempty"`
	Source         string    `json:"source"` // "natural" or "direct".
	UserID         string    `json:"user_id,omitempty"`
	OverallSuccess bool      `json:"overall_success"`
	StoppedEarly   bool      `json:"stopped_early"`
	ResultCount    int       `json:"result_count"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists execution records.
type Store interface {
	// Record saves one execution record.
	Record(ctx context.Context, rec *ExecutionRecord) error
	// List returns the most recent records, newest first.
	List(ctx context.Context, limit int) ([]ExecutionRecord, error)
	// PruneOlderThan deletes records created before cutoff and returns the
	// number removed. Used by the janitor.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// Ping verifies the backend is reachable. Used by readiness checks.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
