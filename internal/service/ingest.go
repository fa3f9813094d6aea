package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loglens/loglens/internal/adapter/plugin"
	"github.com/loglens/loglens/internal/domain"
	"github.com/loglens/loglens/internal/metrics"
	"github.com/loglens/loglens/internal/parser"
)

// Extensions accepted by bulk import.
var importExts = map[string]bool{
	".log":   true,
	".txt":   true,
	".jsonl": true,
	".json":  true,
}

// maxLineBytes bounds a single log line; anything longer aborts the scan.
const maxLineBytes = 4 * 1024 * 1024

// UploadFile stores the uploaded content, creates a run and ingests it
// synchronously. The returned run carries the final status and summary.
func (s *Service) UploadFile(ctx context.Context, filename string, src io.Reader) (*domain.Run, error) {
	run, err := s.storeUpload(ctx, s.config.StorageDir, filename, src)
	if err != nil {
		return nil, err
	}
	if err := s.IngestRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ImportFile ingests one file of a bulk import. Failures are reported in
// the result, not returned, so one bad file does not abort the import.
func (s *Service) ImportFile(ctx context.Context, filename string, src io.Reader) domain.ImportResult {
	ext := strings.ToLower(filepath.Ext(filename))
	if !importExts[ext] {
		return domain.ImportResult{
			Filename: filename,
			Status:   string(domain.RunStatusError),
			Error:    fmt.Sprintf("unsupported file extension: %s", ext),
		}
	}

	run, err := s.storeUpload(ctx, filepath.Join(s.config.StorageDir, "imports"), filename, src)
	if err == nil {
		err = s.IngestRun(ctx, run)
	}
	if err != nil {
		res := domain.ImportResult{Filename: filename, Status: string(domain.RunStatusError), Error: err.Error()}
		if run != nil {
			res.RunID = run.RunID
		}
		return res
	}
	return domain.ImportResult{
		Filename: run.Filename,
		RunID:    run.RunID,
		Status:   string(run.Status),
		Summary:  run.Summary,
	}
}

func (s *Service) storeUpload(ctx context.Context, dir, filename string, src io.Reader) (*domain.Run, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(filename))
	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close upload: %w", err)
	}

	run := &domain.Run{
		RunID:      "run_" + uuid.New().String()[:8],
		Filename:   filename,
		StoredPath: dest,
		CreatedAt:  time.Now().UTC(),
		Status:     domain.RunStatusUploaded,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// IngestRun parses the run's stored file line by line, pushes batches
// through the enrichment stages and persists them. One storage
// transaction per batch; already-flushed batches survive later failures.
//
// A missing source file fails only this run: it is marked with status
// error and a diagnostic summary, and no entries are produced.
func (s *Service) IngestRun(ctx context.Context, run *domain.Run) error {
	f, err := os.Open(run.StoredPath)
	if err != nil {
		s.log.Warnw("stored file missing", "run_id", run.RunID, "path", run.StoredPath)
		return s.finishRun(ctx, run, domain.RunStatusError, "stored file missing")
	}
	defer f.Close()

	var (
		total     int
		malformed int
		phases    = make(map[string]struct{})
		batch     = make([]domain.LogEntry, 0, s.config.BatchSize)
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		batch = s.applyStages(ctx, run.RunID, batch)
		for i := range batch {
			if batch[i].Phase != "" {
				phases[batch[i].Phase] = struct{}{}
			}
			if batch[i].IsMalformed {
				malformed++
			}
		}
		if err := s.store.InsertEntries(ctx, run.RunID, batch); err != nil {
			return fmt.Errorf("failed to persist batch: %w", err)
		}
		metrics.BatchesFlushed.Inc()
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		p, ok := parser.ParseLine(scanner.Text())
		if !ok {
			continue
		}
		total++
		metrics.LinesParsed.Inc()
		if p.Malformed {
			metrics.MalformedLines.Inc()
		}
		batch = append(batch, parser.Normalize(p))
		if len(batch) >= s.config.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Errorw("failed reading source file", "run_id", run.RunID, "error", err)
		return s.finishRun(ctx, run, domain.RunStatusError, "failed reading stored file")
	}
	if err := flush(); err != nil {
		return err
	}

	summary := fmt.Sprintf("lines=%d; malformed=%d; phases=%s", total, malformed, phaseList(phases))
	s.log.Infow("run ingested", "run_id", run.RunID, "lines", total, "malformed", malformed)
	return s.finishRun(ctx, run, domain.RunStatusParsed, summary)
}

// applyStages runs the batch through every configured stage in order.
// Fail-open: a stage that errors is skipped and the pre-stage batch feeds
// the next stage unchanged. Stage output is trusted as-is; the pipeline
// does not cross-validate it against the input.
func (s *Service) applyStages(ctx context.Context, runID string, batch []domain.LogEntry) []domain.LogEntry {
	if len(s.stages) == 0 {
		return batch
	}
	items := plugin.FromEntries(runID, batch)
	for _, stage := range s.stages {
		metrics.PluginCalls.WithLabelValues(stage.Name()).Inc()
		out, err := stage.ProcessBatch(ctx, items)
		if err != nil {
			metrics.PluginFailures.WithLabelValues(stage.Name()).Inc()
			s.log.Warnw("enrichment stage failed, keeping batch unchanged",
				"stage", stage.Name(), "error", err)
			continue
		}
		items = out
	}
	return plugin.ToEntries(items)
}

func (s *Service) finishRun(ctx context.Context, run *domain.Run, status domain.RunStatus, summary string) error {
	run.Status = status
	run.Summary = summary
	metrics.RunsIngested.WithLabelValues(string(status)).Inc()
	if err := s.store.UpdateRunResult(ctx, run.RunID, status, summary); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

func phaseList(phases map[string]struct{}) string {
	if len(phases) == 0 {
		return "n/a"
	}
	keys := make([]string, 0, len(phases))
	for p := range phases {
		keys = append(keys, p)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// ListRuns returns one page of runs, newest first.
func (s *Service) ListRuns(ctx context.Context, page, pageSize int) (*domain.RunsPage, error) {
	runs, total, err := s.store.ListRuns(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	return &domain.RunsPage{Total: total, Page: page, PageSize: pageSize, Items: runs}, nil
}

// ClearRuns removes all runs and their entries.
func (s *Service) ClearRuns(ctx context.Context) error {
	return s.store.ClearRuns(ctx)
}
