// Package domain defines the core domain models for loglens.
package domain

import (
	"time"
)

// RunStatus represents the lifecycle status of an ingestion run.
type RunStatus string

const (
	RunStatusUploaded RunStatus = "uploaded"
	RunStatusParsed   RunStatus = "parsed"
	RunStatusError    RunStatus = "error"
)

// Run represents one ingestion job over one uploaded log file.
type Run struct {
	RunID      string    `json:"run_id"`
	Filename   string    `json:"filename"`
	StoredPath string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	Status     RunStatus `json:"status"`
	Summary    string    `json:"summary"`
}

// LogEntry is one log line after parsing and field derivation.
// Timestamp is nil when no timestamp could be extracted; string fields are
// empty when the corresponding value is absent.
type LogEntry struct {
	ID            int64      `json:"id"`
	RunID         string     `json:"run_id"`
	Timestamp     *time.Time `json:"timestamp"`
	Level         string     `json:"level,omitempty"`
	Phase         string     `json:"phase,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	ResourceType  string     `json:"resource_type,omitempty"`
	ResourceName  string     `json:"resource_name,omitempty"`
	Message       string     `json:"message"`
	IsError       bool       `json:"is_error"`
	IsMalformed   bool       `json:"is_malformed"`
	Raw           string     `json:"-"`
	PayloadJSON   string     `json:"json,omitempty"`
	IsExtra       bool       `json:"is_extra"`
}

// TimelineBucket is an aggregated summary for all entries sharing a
// grouping key. Recomputed on every request, never persisted.
type TimelineBucket struct {
	Key       string    `json:"key"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Count     int       `json:"count"`
	Errors    int       `json:"errors"`
	Malformed int       `json:"malformed"`
}

// RunsPage is a paged listing of runs, newest first.
type RunsPage struct {
	Total    int   `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Items    []Run `json:"items"`
}

// LogsPage is a filtered page of entries, optionally expanded with
// causally related entries (Extras counts the added ones).
type LogsPage struct {
	Total  int        `json:"total"`
	Items  []LogEntry `json:"items"`
	Extras int        `json:"extras"`
}

// Group describes one distinct grouping key within a run.
type Group struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Count       int    `json:"count"`
}

// GroupsPage lists all grouping keys of a run for one dimension.
type GroupsPage struct {
	RunID       string  `json:"run_id"`
	PairBy      string  `json:"pair_by"`
	TotalGroups int     `json:"total_groups"`
	Groups      []Group `json:"groups"`
}

// ImportResult reports the outcome of ingesting one file of a bulk import.
type ImportResult struct {
	Filename string `json:"filename"`
	RunID    string `json:"run_id,omitempty"`
	Status   string `json:"status"`
	Summary  string `json:"summary"`
	Error    string `json:"error,omitempty"`
}
