package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acheng/runbox/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := New(Config{Path: filepath.Join(t.TempDir(), "runbox.db")}, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func record(userID string, createdAt time.Time) *storage.ExecutionRecord {
	return &storage.ExecutionRecord{
		ID:             uuid.New(),
		Category:       "shell",
		Commands:       []string{"echo hello", "ls -la"},
		WorkDir:        "demo",
		Source:         "direct",
		UserID:         userID,
		OverallSuccess: true,
		ResultCount:    2,
		DurationMS:     42,
		CreatedAt:      createdAt,
	}
}

func TestRecordAndList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	older := record("alice", base.Add(-time.Hour))
	newer := record("bob", base)

	if err := st.Record(ctx, older); err != nil {
		t.Fatalf("Record older: %v", err)
	}
	if err := st.Record(ctx, newer); err != nil {
		t.Fatalf("Record newer: %v", err)
	}

	recs, err := st.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != newer.ID {
		t.Errorf("expected newest record first, got %s", recs[0].UserID)
	}
	if recs[1].ID != older.ID {
		t.Errorf("expected oldest record last, got %s", recs[1].UserID)
	}

	got := recs[0]
	if got.Category != "shell" || got.Source != "direct" || got.UserID != "bob" {
		t.Errorf("unexpected fields: %+v", got)
	}
	if len(got.Commands) != 2 || got.Commands[0] != "echo hello" {
		t.Errorf("commands round-trip failed: %v", got.Commands)
	}
	if !got.OverallSuccess || got.ResultCount != 2 || got.DurationMS != 42 {
		t.Errorf("unexpected outcome fields: %+v", got)
	}
}

func TestList_Limit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		if err := st.Record(ctx, record("alice", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recs, err := st.List(ctx, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 3 {
		t.Errorf("expected 3 records, got %d", len(recs))
	}

	// Zero limit falls back to the default, which still returns everything
	// here since only 5 rows exist.
	recs, err = st.List(ctx, 0)
	if err != nil {
		t.Fatalf("List with zero limit: %v", err)
	}
	if len(recs) != 5 {
		t.Errorf("expected 5 records with default limit, got %d", len(recs))
	}
}

func TestPruneOlderThan(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	old1 := record("alice", base.Add(-48*time.Hour))
	old2 := record("alice", base.Add(-36*time.Hour))
	fresh := record("alice", base)
	for _, rec := range []*storage.ExecutionRecord{old1, old2, fresh} {
		if err := st.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	removed, err := st.PruneOlderThan(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 pruned, got %d", removed)
	}

	recs, err := st.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != fresh.ID {
		t.Errorf("expected only the fresh record to survive, got %d", len(recs))
	}
}

func TestList_SkipsCorruptRows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	good := record("alice", time.Now().UTC())
	if err := st.Record(ctx, good); err != nil {
		t.Fatalf("Record: %v", err)
	}
	bad := executionRow{
		ID:        "not-a-uuid",
		Category:  "shell",
		Commands:  "[]",
		CreatedAt: time.Now().UTC().Add(time.Minute),
	}
	if err := st.db.Create(&bad).Error; err != nil {
		t.Fatalf("inserting corrupt row: %v", err)
	}

	recs, err := st.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != good.ID {
		t.Errorf("expected corrupt row to be skipped, got %d records", len(recs))
	}
}

func TestPing(t *testing.T) {
	st := newTestStore(t)
	if err := st.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("expected error for empty path")
	}
}
