package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/loglens/loglens/internal/domain"
)

// Groups lists every distinct grouping key of a run for one dimension,
// with per-key entry counts. Entries lacking the key are reported under a
// sentinel group so nothing is invisible in the picker.
func (s *Service) Groups(ctx context.Context, runID string, by domain.Dimension) (*domain.GroupsPage, error) {
	var (
		groups []domain.Group
		err    error
	)
	switch by {
	case domain.DimResource:
		groups, err = s.resourceGroups(ctx, runID)
	case domain.DimPhase:
		groups, err = s.keyedGroups(ctx, runID, "phase",
			s.store.DistinctPhases, s.store.CountByPhase, s.store.CountMissingPhase, "(no phase)")
	default:
		groups, err = s.keyedGroups(ctx, runID, "correlation_id",
			s.store.DistinctCorrelationIDs, s.store.CountByCorrelationID, s.store.CountMissingCorrelationID, "(no correlation_id)")
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key < groups[j].Key
	})
	return &domain.GroupsPage{
		RunID:       runID,
		PairBy:      string(by),
		TotalGroups: len(groups),
		Groups:      groups,
	}, nil
}

func (s *Service) keyedGroups(
	ctx context.Context,
	runID, groupType string,
	distinct func(context.Context, string) ([]string, error),
	countBy func(context.Context, string, string) (int, error),
	countMissing func(context.Context, string) (int, error),
	missingLabel string,
) ([]domain.Group, error) {
	keys, err := distinct(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var groups []domain.Group
	for _, key := range keys {
		n, err := countBy(ctx, runID, key)
		if err != nil {
			return nil, fmt.Errorf("failed to count group %q: %w", key, err)
		}
		groups = append(groups, domain.Group{Key: key, DisplayName: key, Type: groupType, Count: n})
	}

	missing, err := countMissing(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count ungrouped entries: %w", err)
	}
	if missing > 0 {
		groups = append(groups, domain.Group{Key: missingLabel, DisplayName: missingLabel, Type: groupType, Count: missing})
	}
	return groups, nil
}

func (s *Service) resourceGroups(ctx context.Context, runID string) ([]domain.Group, error) {
	resources, err := s.store.DistinctResources(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	var groups []domain.Group
	for _, r := range resources {
		n, err := s.store.CountByResource(ctx, runID, r.Type, r.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to count resource group: %w", err)
		}
		displayType := r.Type
		if displayType == "" {
			displayType = "(no type)"
		}
		displayName := r.Name
		if displayName == "" {
			displayName = "(no name)"
		}
		groups = append(groups, domain.Group{
			Key:         r.Type + ":" + r.Name,
			DisplayName: displayType + " : " + displayName,
			Type:        "resource",
			Count:       n,
		})
	}

	missing, err := s.store.CountMissingResource(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count ungrouped entries: %w", err)
	}
	if missing > 0 {
		groups = append(groups, domain.Group{Key: "(no resource)", DisplayName: "(no resource)", Type: "resource", Count: missing})
	}
	return groups, nil
}
