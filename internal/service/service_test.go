package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/loglens/loglens/internal/adapter/plugin"
	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/domain"
	store "github.com/loglens/loglens/internal/repository"
)

func newTestService(t *testing.T, stages ...plugin.Stage) (*Service, *store.SQLiteStore) {
	t.Helper()
	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		StorageDir: t.TempDir(),
		BatchSize:  100,
	}
	return New(db, stages, cfg, zap.NewNop().Sugar()), db
}

func seedRun(t *testing.T, db *store.SQLiteStore, runID string, entries []domain.LogEntry) {
	t.Helper()
	ctx := context.Background()
	run := &domain.Run{
		RunID:      runID,
		Filename:   runID + ".log",
		StoredPath: "/nonexistent/" + runID,
		CreatedAt:  time.Now().UTC(),
		Status:     domain.RunStatusParsed,
	}
	if err := db.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := db.InsertEntries(ctx, runID, entries); err != nil {
		t.Fatalf("InsertEntries: %v", err)
	}
}

func ts(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", value, err)
	}
	parsed = parsed.UTC()
	return &parsed
}
