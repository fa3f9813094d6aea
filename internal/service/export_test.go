package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/loglens/loglens/internal/domain"
)

func decodeNDJSON(t *testing.T, data string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	for _, line := range strings.Split(strings.TrimRight(data, "\n"), "\n") {
		if line == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", line, err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestExportNDJSONDumpsRunInOrder(t *testing.T) {
	svc, db := newTestService(t)

	seedRun(t, db, "run1", []domain.LogEntry{
		{Timestamp: ts(t, "2025-01-01T10:00:01Z"), Level: "info", CorrelationID: "req-1", Message: "second", Raw: "second"},
		{Message: "no timestamp", IsMalformed: true, Raw: "no timestamp"},
		{Timestamp: ts(t, "2025-01-01T10:00:00Z"), Message: "first", Raw: "first"},
	})

	var buf bytes.Buffer
	if err := svc.ExportNDJSON(context.Background(), &buf, "run1"); err != nil {
		t.Fatalf("ExportNDJSON: %v", err)
	}
	rows := decodeNDJSON(t, buf.String())
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	// Timestampless row first, then time order.
	if rows[0]["timestamp"] != nil || rows[0]["message"] != "no timestamp" {
		t.Fatalf("row 0: %+v", rows[0])
	}
	if rows[0]["is_malformed"] != true {
		t.Fatalf("row 0 malformed flag: %+v", rows[0])
	}
	if rows[1]["message"] != "first" || rows[2]["message"] != "second" {
		t.Fatalf("rows out of order: %+v", rows)
	}
	if rows[2]["timestamp"] != "2025-01-01T10:00:01Z" {
		t.Fatalf("row 2 timestamp: %v", rows[2]["timestamp"])
	}
	if rows[2]["correlation_id"] != "req-1" || rows[1]["correlation_id"] != nil {
		t.Fatalf("correlation ids: %+v", rows)
	}
}

func TestExportNDJSONByKeys(t *testing.T) {
	svc, db := newTestService(t)

	at := ts(t, "2025-01-01T10:00:00Z")
	seedRun(t, db, "run1", []domain.LogEntry{
		{Timestamp: at, CorrelationID: "req-1", Message: "a", Raw: "a"},
		{Timestamp: at, CorrelationID: "req-2", Message: "b", Raw: "b"},
		{Timestamp: at, CorrelationID: "req-3", Message: "c", Raw: "c"},
	})

	var buf bytes.Buffer
	err := svc.ExportNDJSONByKeys(context.Background(), &buf, "run1",
		domain.DimCorrelationID, []string{"req-1", " req-3 ", ""})
	if err != nil {
		t.Fatalf("ExportNDJSONByKeys: %v", err)
	}
	rows := decodeNDJSON(t, buf.String())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r["correlation_id"] == "req-2" {
			t.Fatalf("unselected key exported: %+v", r)
		}
	}
}

func TestExportNDJSONByKeysEmptyKeyList(t *testing.T) {
	svc, db := newTestService(t)
	seedRun(t, db, "run1", []domain.LogEntry{
		{Timestamp: ts(t, "2025-01-01T10:00:00Z"), CorrelationID: "req-1", Message: "a", Raw: "a"},
	})

	var buf bytes.Buffer
	err := svc.ExportNDJSONByKeys(context.Background(), &buf, "run1",
		domain.DimCorrelationID, []string{"  ", ""})
	if err != nil {
		t.Fatalf("ExportNDJSONByKeys: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty output, got %q", buf.String())
	}
}

func TestExportNDJSONByResourceKeys(t *testing.T) {
	svc, db := newTestService(t)

	at := ts(t, "2025-01-01T10:00:00Z")
	seedRun(t, db, "run1", []domain.LogEntry{
		{Timestamp: at, ResourceType: "aws_instance", ResourceName: "web", Message: "web", Raw: "web"},
		{Timestamp: at, ResourceType: "aws_instance", ResourceName: "db", Message: "db", Raw: "db"},
		{Timestamp: at, ResourceType: "aws_s3_bucket", ResourceName: "web", Message: "bucket", Raw: "bucket"},
	})

	var buf bytes.Buffer
	err := svc.ExportNDJSONByKeys(context.Background(), &buf, "run1",
		domain.DimResource, []string{"aws_instance:web"})
	if err != nil {
		t.Fatalf("ExportNDJSONByKeys: %v", err)
	}
	rows := decodeNDJSON(t, buf.String())
	// Both the same-type and the same-name entry pass the prefilter but
	// only the exact pair survives.
	if len(rows) != 1 || rows[0]["message"] != "web" {
		t.Fatalf("expected exact pair only, got %+v", rows)
	}
}

func TestExportTimelineCSV(t *testing.T) {
	svc, db := newTestService(t)

	seedRun(t, db, "run1", []domain.LogEntry{
		{Timestamp: ts(t, "2025-01-01T10:00:00Z"), CorrelationID: "A", Message: "m", Raw: "m"},
		{Timestamp: ts(t, "2025-01-01T10:00:05Z"), CorrelationID: "A", IsError: true, Message: "m", Raw: "m"},
		{Timestamp: ts(t, "2025-01-01T10:00:02Z"), CorrelationID: "B", Message: "m", Raw: "m"},
	})

	var buf bytes.Buffer
	err := svc.ExportTimelineCSV(context.Background(), &buf, "run1", domain.DimCorrelationID, nil, nil)
	if err != nil {
		t.Fatalf("ExportTimelineCSV: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "Key;Start Time;End Time;Count;Errors;Malformed" {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "A;2025-01-01T10:00:00Z;2025-01-01T10:00:05Z;2;1;0") {
		t.Fatalf("row A = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "B;") {
		t.Fatalf("row B = %q", lines[2])
	}
}
