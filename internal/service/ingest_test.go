package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/loglens/loglens/internal/adapter/plugin"
	"github.com/loglens/loglens/internal/domain"
	store "github.com/loglens/loglens/internal/repository"
)

// failingStage errors on every call.
type failingStage struct{}

func (failingStage) Name() string { return "failing" }

func (failingStage) ProcessBatch(ctx context.Context, items []plugin.Item) ([]plugin.Item, error) {
	return nil, errors.New("stage exploded")
}

// levelStage overwrites the level of every item.
type levelStage struct{ level string }

func (levelStage) Name() string { return "level" }

func (s levelStage) ProcessBatch(ctx context.Context, items []plugin.Item) ([]plugin.Item, error) {
	out := make([]plugin.Item, len(items))
	for i, it := range items {
		it.Level = s.level
		out[i] = it
	}
	return out, nil
}

const sampleLog = `{"@timestamp":"2025-01-01T10:00:00Z","@level":"info","@message":"Terraform apply started","tf_req_id":"req-1"}
not json at all
{"@timestamp":"2025-01-01T10:00:05Z","@message":"backend/local: starting apply operation"}

{"@timestamp":"2025-01-01T10:00:09Z","@level":"error","@message":"apply failed","tf_req_id":"req-1"}
`

func TestUploadFileParsesAndSummarizes(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	run, err := svc.UploadFile(ctx, "apply.log", strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if run.Status != domain.RunStatusParsed {
		t.Fatalf("expected status parsed, got %s", run.Status)
	}
	// Blank line skipped, plain-text line kept as malformed.
	if want := "lines=4; malformed=1; phases=apply"; run.Summary != want {
		t.Fatalf("summary = %q, want %q", run.Summary, want)
	}

	total, err := db.CountEntries(ctx, store.EntryFilter{RunID: run.RunID})
	if err != nil {
		t.Fatalf("CountEntries: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4 persisted entries, got %d", total)
	}

	stored, err := db.GetRun(ctx, run.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored == nil || stored.Status != domain.RunStatusParsed {
		t.Fatalf("persisted run not updated: %+v", stored)
	}
}

func TestUploadFileFailingStageKeepsBatch(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, failingStage{})

	run, err := svc.UploadFile(ctx, "apply.log", strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if run.Status != domain.RunStatusParsed {
		t.Fatalf("expected status parsed despite stage failure, got %s", run.Status)
	}

	entries, err := db.QueryEntries(ctx, store.EntryFilter{RunID: run.RunID}, 0, 0)
	if err != nil {
		t.Fatalf("QueryEntries: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	// Batch passed through unchanged. The malformed line has no timestamp
	// and sorts first.
	if !entries[0].IsMalformed {
		t.Fatalf("expected malformed entry first, got %+v", entries[0])
	}
	if entries[1].Message != "Terraform apply started" || entries[1].Level != "info" {
		t.Fatalf("entry mutated: %+v", entries[1])
	}
}

func TestUploadFileStageMutatesEntries(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, levelStage{level: "debug"})

	run, err := svc.UploadFile(ctx, "apply.log", strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	entries, err := db.QueryEntries(ctx, store.EntryFilter{RunID: run.RunID}, 0, 0)
	if err != nil {
		t.Fatalf("QueryEntries: %v", err)
	}
	for _, e := range entries {
		if e.Level != "debug" {
			t.Fatalf("expected stage output persisted, got level %q", e.Level)
		}
	}
}

func TestUploadFileFlushesMultipleBatches(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)
	svc.config.BatchSize = 2

	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteString(`{"@timestamp":"2025-01-01T10:00:00Z","@message":"line"}` + "\n")
	}
	run, err := svc.UploadFile(ctx, "many.log", strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	total, err := db.CountEntries(ctx, store.EntryFilter{RunID: run.RunID})
	if err != nil {
		t.Fatalf("CountEntries: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected 5 entries across batches, got %d", total)
	}
}

func TestIngestRunMissingFile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	run, err := svc.storeUpload(ctx, svc.config.StorageDir, "gone.log", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("storeUpload: %v", err)
	}
	if err := os.Remove(run.StoredPath); err != nil {
		t.Fatalf("remove stored file: %v", err)
	}

	if err := svc.IngestRun(ctx, run); err != nil {
		t.Fatalf("IngestRun: %v", err)
	}
	if run.Status != domain.RunStatusError {
		t.Fatalf("expected status error, got %s", run.Status)
	}
	if run.Summary != "stored file missing" {
		t.Fatalf("summary = %q", run.Summary)
	}
}

func TestImportFileRejectsUnknownExtension(t *testing.T) {
	svc, _ := newTestService(t)

	res := svc.ImportFile(context.Background(), "binary.exe", strings.NewReader("data"))
	if res.Status != string(domain.RunStatusError) {
		t.Fatalf("expected error status, got %s", res.Status)
	}
	if res.RunID != "" {
		t.Fatalf("rejected file must not create a run, got %s", res.RunID)
	}
	if !strings.Contains(res.Error, ".exe") {
		t.Fatalf("error should name the extension: %q", res.Error)
	}
}

func TestImportFileIngestsSupportedFile(t *testing.T) {
	svc, db := newTestService(t)

	res := svc.ImportFile(context.Background(), "bulk.jsonl", strings.NewReader(sampleLog))
	if res.Status != string(domain.RunStatusParsed) {
		t.Fatalf("expected parsed, got %s (%s)", res.Status, res.Error)
	}
	if res.RunID == "" {
		t.Fatal("expected run id")
	}

	run, err := db.GetRun(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run == nil || run.Status != domain.RunStatusParsed {
		t.Fatalf("imported run not persisted: %+v", run)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for _, name := range []string{"a.log", "b.log", "c.log"} {
		if _, err := svc.UploadFile(ctx, name, strings.NewReader(sampleLog)); err != nil {
			t.Fatalf("UploadFile %s: %v", name, err)
		}
	}

	page, err := svc.ListRuns(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 {
		t.Fatalf("total=%d items=%d", page.Total, len(page.Items))
	}
}

func TestClearRunsRemovesEverything(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	run, err := svc.UploadFile(ctx, "a.log", strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if err := svc.ClearRuns(ctx); err != nil {
		t.Fatalf("ClearRuns: %v", err)
	}

	total, err := db.CountEntries(ctx, store.EntryFilter{RunID: run.RunID})
	if err != nil {
		t.Fatalf("CountEntries: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected cascade delete, got %d entries", total)
	}
}
