package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/loglens/loglens/internal/domain"
	store "github.com/loglens/loglens/internal/repository"
)

// ExportRow is one NDJSON line of an export dump. Pointer fields render
// as JSON null when the value was never extracted.
type ExportRow struct {
	Timestamp     *string `json:"timestamp"`
	Level         *string `json:"level"`
	Phase         *string `json:"phase"`
	CorrelationID *string `json:"correlation_id"`
	ResourceType  *string `json:"resource_type"`
	ResourceName  *string `json:"resource_name"`
	Message       string  `json:"message"`
	IsError       bool    `json:"is_error"`
	IsMalformed   bool    `json:"is_malformed"`
}

func exportRow(e *domain.LogEntry) ExportRow {
	var ts *string
	if e.Timestamp != nil {
		v := e.Timestamp.UTC().Format(time.RFC3339Nano)
		ts = &v
	}
	return ExportRow{
		Timestamp:     ts,
		Level:         optional(e.Level),
		Phase:         optional(e.Phase),
		CorrelationID: optional(e.CorrelationID),
		ResourceType:  optional(e.ResourceType),
		ResourceName:  optional(e.ResourceName),
		Message:       e.Message,
		IsError:       e.IsError,
		IsMalformed:   e.IsMalformed,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ExportNDJSON writes every entry of a run to w as NDJSON, ordered by
// (timestamp, id).
func (s *Service) ExportNDJSON(ctx context.Context, w io.Writer, runID string) error {
	entries, err := s.store.QueryEntries(ctx, store.EntryFilter{RunID: runID}, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to query entries: %w", err)
	}
	return writeNDJSON(w, entries)
}

// ExportNDJSONByKeys writes the entries of a run matching a key set for
// one dimension. Resource keys use the "type:name" form; a key without a
// colon names a bare type.
func (s *Service) ExportNDJSONByKeys(ctx context.Context, w io.Writer, runID string, by domain.Dimension, keys []string) error {
	keys = cleanKeys(keys)
	if len(keys) == 0 {
		return nil
	}

	var (
		entries []domain.LogEntry
		err     error
	)
	switch by {
	case domain.DimResource:
		entries, err = s.entriesByResourceKeys(ctx, runID, keys)
	case domain.DimPhase:
		entries, err = s.store.EntriesByPhases(ctx, runID, keys, 0)
	default:
		entries, err = s.store.EntriesByCorrelationIDs(ctx, runID, keys, 0)
	}
	if err != nil {
		return fmt.Errorf("failed to query entries: %w", err)
	}
	return writeNDJSON(w, entries)
}

// entriesByResourceKeys reuses the coarse-then-exact strategy of pair
// expansion: OR over single columns in SQL, (type, name) refilter here.
func (s *Service) entriesByResourceKeys(ctx context.Context, runID string, keys []string) ([]domain.LogEntry, error) {
	pairs := make(map[store.ResourceKey]bool, len(keys))
	typeSet := make(map[string]bool)
	nameSet := make(map[string]bool)
	for _, k := range keys {
		t, n, _ := strings.Cut(k, ":")
		pairs[store.ResourceKey{Type: t, Name: n}] = true
		if t != "" {
			typeSet[t] = true
		}
		if n != "" {
			nameSet[n] = true
		}
	}

	candidates, err := s.store.EntriesByResourcePrefilter(ctx, runID, mapKeys(typeSet), mapKeys(nameSet), 0)
	if err != nil {
		return nil, err
	}
	var exact []domain.LogEntry
	for _, e := range candidates {
		if pairs[store.ResourceKey{Type: e.ResourceType, Name: e.ResourceName}] {
			exact = append(exact, e)
		}
	}
	return exact, nil
}

func writeNDJSON(w io.Writer, entries []domain.LogEntry) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range entries {
		if err := enc.Encode(exportRow(&entries[i])); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}
	return nil
}

// ExportTimelineCSV writes the timeline of a run as CSV. Semicolon
// delimiter so spreadsheet imports split columns out of the box.
func (s *Service) ExportTimelineCSV(ctx context.Context, w io.Writer, runID string, by domain.Dimension, from, to *time.Time) error {
	items, err := s.Timeline(ctx, runID, by, from, to)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write([]string{"Key", "Start Time", "End Time", "Count", "Errors", "Malformed"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, b := range items {
		row := []string{
			b.Key,
			b.Start.UTC().Format(time.RFC3339Nano),
			b.End.UTC().Format(time.RFC3339Nano),
			strconv.Itoa(b.Count),
			strconv.Itoa(b.Errors),
			strconv.Itoa(b.Malformed),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cleanKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
