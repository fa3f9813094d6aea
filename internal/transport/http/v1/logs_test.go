package v1

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens/internal/domain"
)

func TestListLogsRequiresRunID(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doGET(t, h.ListLogs, "/v1/logs")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "run_id")
}

func TestListLogsRejectsBadParams(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doGET(t, h.ListLogs, "/v1/logs?run_id=run1&status=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGET(t, h.ListLogs, "/v1/logs?run_id=run1&ts_from=not-a-time")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGET(t, h.ListLogs, "/v1/logs?run_id=run1&include_pairs=1&pair_by=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListLogsFiltered(t *testing.T) {
	h, db := newTestHandler(t)
	seedRun(t, db, "run1", []domain.LogEntry{
		{Timestamp: ts(t, "2025-01-01T10:00:00Z"), Level: "info", Message: "fine", Raw: "fine"},
		{Timestamp: ts(t, "2025-01-01T10:00:01Z"), Level: "error", IsError: true, Message: "boom", Raw: "boom"},
	})

	rec := doGET(t, h.ListLogs, "/v1/logs?run_id=run1&status=error")
	require.Equal(t, http.StatusOK, rec.Code)

	var page domain.LogsPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "boom", page.Items[0].Message)
	assert.Zero(t, page.Extras)
}

func TestListLogsWithPairs(t *testing.T) {
	h, db := newTestHandler(t)
	seedRun(t, db, "run1", []domain.LogEntry{
		{Timestamp: ts(t, "2025-01-01T10:00:00Z"), CorrelationID: "req-1", Message: "begin", Raw: "begin"},
		{Timestamp: ts(t, "2025-01-01T10:00:01Z"), CorrelationID: "req-1", Level: "error", IsError: true, Message: "boom", Raw: "boom"},
		{Timestamp: ts(t, "2025-01-01T10:00:02Z"), CorrelationID: "req-1", Message: "end", Raw: "end"},
	})

	rec := doGET(t, h.ListLogs, "/v1/logs?run_id=run1&status=error&include_pairs=true&pair_by=correlation_id")
	require.Equal(t, http.StatusOK, rec.Code)

	var page domain.LogsPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 2, page.Extras)
	require.Len(t, page.Items, 3)
	assert.False(t, page.Items[1].IsExtra)
	assert.True(t, page.Items[0].IsExtra)
	assert.True(t, page.Items[2].IsExtra)
}

func TestListGroups(t *testing.T) {
	h, db := newTestHandler(t)
	seedRun(t, db, "run1", []domain.LogEntry{
		{Timestamp: ts(t, "2025-01-01T10:00:00Z"), CorrelationID: "req-1", Message: "m", Raw: "m"},
		{Timestamp: ts(t, "2025-01-01T10:00:01Z"), CorrelationID: "req-1", Message: "m", Raw: "m"},
		{Timestamp: ts(t, "2025-01-01T10:00:02Z"), Message: "m", Raw: "m"},
	})

	rec := doGET(t, h.ListGroups, "/v1/logs/groups?run_id=run1")
	require.Equal(t, http.StatusOK, rec.Code)

	var page domain.GroupsPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, "run1", page.RunID)
	assert.Equal(t, "correlation_id", page.PairBy)
	require.Equal(t, 2, page.TotalGroups)
	assert.Equal(t, "req-1", page.Groups[0].Key)
	assert.Equal(t, 2, page.Groups[0].Count)
	assert.Equal(t, "(no correlation_id)", page.Groups[1].Key)
}

func TestTimelineEndpoint(t *testing.T) {
	h, db := newTestHandler(t)
	seedRun(t, db, "run1", []domain.LogEntry{
		{Timestamp: ts(t, "2025-01-01T10:00:00Z"), CorrelationID: "A", Message: "m", Raw: "m"},
		{Timestamp: ts(t, "2025-01-01T10:00:05Z"), CorrelationID: "A", IsError: true, Message: "m", Raw: "m"},
	})

	rec := doGET(t, h.Timeline, "/v1/timeline?run_id=run1&by=correlation_id")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []domain.TimelineBucket `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "A", resp.Items[0].Key)
	assert.Equal(t, 2, resp.Items[0].Count)
	assert.Equal(t, 1, resp.Items[0].Errors)
}

func TestTimelineRejectsBadDimension(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doGET(t, h.Timeline, "/v1/timeline?run_id=run1&by=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
