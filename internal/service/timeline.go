package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/loglens/loglens/internal/domain"
	store "github.com/loglens/loglens/internal/repository"
)

// Timeline groups a run's entries by the chosen dimension and returns one
// bucket per key with its time span and counters. Entries without a
// timestamp count toward totals but cannot place a bucket in time; a key
// seen only on such entries is dropped.
//
// Output is ordered by (start, key) so buckets sharing a start time keep
// a stable order.
func (s *Service) Timeline(ctx context.Context, runID string, by domain.Dimension, from, to *time.Time) ([]domain.TimelineBucket, error) {
	entries, err := s.store.QueryEntries(ctx, store.EntryFilter{RunID: runID, From: from, To: to}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	type acc struct {
		start, end *time.Time
		count      int
		errors     int
		malformed  int
	}
	buckets := make(map[string]*acc)
	for i := range entries {
		e := &entries[i]
		key := domain.GroupKey(by, e)
		b := buckets[key]
		if b == nil {
			b = &acc{}
			buckets[key] = b
		}
		if e.Timestamp != nil {
			if b.start == nil || e.Timestamp.Before(*b.start) {
				b.start = e.Timestamp
			}
			if b.end == nil || e.Timestamp.After(*b.end) {
				b.end = e.Timestamp
			}
		}
		b.count++
		if e.IsError {
			b.errors++
		}
		if e.IsMalformed {
			b.malformed++
		}
	}

	items := make([]domain.TimelineBucket, 0, len(buckets))
	for key, b := range buckets {
		if b.start == nil {
			continue
		}
		end := b.end
		if end == nil {
			end = b.start
		}
		items = append(items, domain.TimelineBucket{
			Key:       key,
			Start:     *b.start,
			End:       *end,
			Count:     b.count,
			Errors:    b.errors,
			Malformed: b.malformed,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].Start.Equal(items[j].Start) {
			return items[i].Start.Before(items[j].Start)
		}
		return items[i].Key < items[j].Key
	})
	return items, nil
}
