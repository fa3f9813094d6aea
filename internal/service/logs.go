package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/loglens/loglens/internal/domain"
	store "github.com/loglens/loglens/internal/repository"
)

// Safety limits on pair expansion fan-out. The resource dimension gets a
// higher budget because its prefilter over-fetches by design.
const (
	pairLimitKeyed    = 3000
	pairLimitResource = 5000
)

// LogsQuery describes one page request over a run's entries.
type LogsQuery struct {
	Filter       store.EntryFilter
	Page         int
	PageSize     int
	IncludePairs bool
	PairBy       domain.Dimension
}

// ListLogs returns the filtered page and, when IncludePairs is set,
// expands it into the causal neighborhood: every entry of the run sharing
// a grouping key with the page, merged in time order and flagged as
// extra. Total always counts the filtered set, not the extras.
func (s *Service) ListLogs(ctx context.Context, q LogsQuery) (*domain.LogsPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 100
	}

	total, err := s.store.CountEntries(ctx, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	base, err := s.store.QueryEntries(ctx, q.Filter, q.PageSize, (q.Page-1)*q.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	if base == nil {
		base = []domain.LogEntry{}
	}
	if !q.IncludePairs {
		return &domain.LogsPage{Total: total, Items: base, Extras: 0}, nil
	}

	extras, err := s.expandPairs(ctx, q.Filter.RunID, q.PairBy, base)
	if err != nil {
		return nil, err
	}

	items := append(base, extras...)
	sortEntriesByTime(items)
	return &domain.LogsPage{Total: total, Items: items, Extras: len(extras)}, nil
}

// expandPairs fetches every entry of the run sharing a grouping key with
// the base page, minus the page itself. Entries lacking the key do not
// expand anything.
func (s *Service) expandPairs(ctx context.Context, runID string, by domain.Dimension, base []domain.LogEntry) ([]domain.LogEntry, error) {
	var (
		related []domain.LogEntry
		err     error
	)
	switch by {
	case domain.DimResource:
		related, err = s.relatedByResource(ctx, runID, base)
	case domain.DimPhase:
		keys := distinct(base, func(e *domain.LogEntry) string { return e.Phase })
		related, err = s.store.EntriesByPhases(ctx, runID, keys, pairLimitKeyed)
	default:
		keys := distinct(base, func(e *domain.LogEntry) string { return e.CorrelationID })
		related, err = s.store.EntriesByCorrelationIDs(ctx, runID, keys, pairLimitKeyed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to expand pairs: %w", err)
	}

	seen := make(map[int64]bool, len(base))
	for i := range base {
		seen[base[i].ID] = true
	}
	var extras []domain.LogEntry
	for _, e := range related {
		if seen[e.ID] {
			continue
		}
		e.IsExtra = true
		extras = append(extras, e)
	}
	return extras, nil
}

// relatedByResource queries with a coarse OR filter on type or name (so
// both lookups stay on single-column indexes), then refines to the exact
// (type, name) pairs present in the base page.
func (s *Service) relatedByResource(ctx context.Context, runID string, base []domain.LogEntry) ([]domain.LogEntry, error) {
	pairs := make(map[store.ResourceKey]bool)
	for i := range base {
		e := &base[i]
		if e.ResourceType == "" && e.ResourceName == "" {
			continue
		}
		pairs[store.ResourceKey{Type: e.ResourceType, Name: e.ResourceName}] = true
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	typeSet := make(map[string]bool)
	nameSet := make(map[string]bool)
	for k := range pairs {
		if k.Type != "" {
			typeSet[k.Type] = true
		}
		if k.Name != "" {
			nameSet[k.Name] = true
		}
	}
	candidates, err := s.store.EntriesByResourcePrefilter(ctx, runID, mapKeys(typeSet), mapKeys(nameSet), pairLimitResource)
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

// sortEntriesByTime orders entries by (timestamp, id); a missing
// timestamp sorts before everything.
func sortEntriesByTime(entries []domain.LogEntry) {
	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].Timestamp, entries[j].Timestamp
		switch {
		case ti == nil && tj != nil:
			return true
		case ti != nil && tj == nil:
			return false
		case ti != nil && tj != nil && !ti.Equal(*tj):
			return ti.Before(*tj)
		}
		return entries[i].ID < entries[j].ID
	})
}

func distinct(entries []domain.LogEntry, key func(*domain.LogEntry) string) []string {
	seen := make(map[string]bool)
	var out []string
	for i := range entries {
		if k := key(&entries[i]); k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func mapKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
