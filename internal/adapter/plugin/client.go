// Package plugin provides the HTTP client for external enrichment stages.
//
// A stage is a remote batch transform: it receives the current batch of
// normalized entries and returns a replacement batch, which may reorder,
// drop or expand items. Stage failures are the caller's problem to absorb;
// this package only reports them.
package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loglens/loglens/internal/domain"
	"github.com/loglens/loglens/internal/parser"
)

// Item is the wire form of one entry at the stage boundary. Timestamps
// travel as strings; absent fields as empty strings.
type Item struct {
	ID            int64  `json:"id"`
	RunID         string `json:"run_id"`
	Timestamp     string `json:"timestamp"`
	Level         string `json:"level"`
	Phase         string `json:"phase"`
	CorrelationID string `json:"correlation_id"`
	ResourceType  string `json:"resource_type"`
	ResourceName  string `json:"resource_name"`
	Message       string `json:"message"`
	IsError       bool   `json:"is_error"`
	IsMalformed   bool   `json:"is_malformed"`
	Raw           string `json:"raw"`
	PayloadJSON   string `json:"payload_json"`
}

type batchEnvelope struct {
	Items []Item `json:"items"`
}

// Stage is the capability interface for one enrichment endpoint.
type Stage interface {
	Name() string
	ProcessBatch(ctx context.Context, items []Item) ([]Item, error)
}

// Client calls one enrichment stage over HTTP.
type Client struct {
	addr       string
	httpClient *http.Client
}

var _ Stage = (*Client)(nil)

// NewClient creates a client for one stage address. The timeout bounds the
// whole batch call.
func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{
		addr: addr,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClients instantiates one client per configured address, preserving
// order. An empty address list yields no stages.
func NewClients(addrs []string, timeout time.Duration) []Stage {
	stages := make([]Stage, 0, len(addrs))
	for _, addr := range addrs {
		stages = append(stages, NewClient(addr, timeout))
	}
	return stages
}

// Name identifies the stage in logs and metrics.
func (c *Client) Name() string {
	return c.addr
}

// ProcessBatch posts the batch to the stage's /process endpoint and
// returns the replacement batch. Any transport error, timeout or non-2xx
// status is returned as an error; the input is never modified.
func (c *Client) ProcessBatch(ctx context.Context, items []Item) ([]Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	body, err := json.Marshal(batchEnvelope{Items: items})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}

	url := c.baseURL() + "/process"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call stage %s: %w", c.addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("stage %s returned status %d: %s", c.addr, resp.StatusCode, string(respBody))
	}

	var out batchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode stage response: %w", err)
	}
	return out.Items, nil
}

func (c *Client) baseURL() string {
	if strings.HasPrefix(c.addr, "http://") || strings.HasPrefix(c.addr, "https://") {
		return strings.TrimSuffix(c.addr, "/")
	}
	return "http://" + c.addr
}

// FromEntries converts a batch to its wire form.
func FromEntries(runID string, entries []domain.LogEntry) []Item {
	items := make([]Item, len(entries))
	for i, e := range entries {
		ts := ""
		if e.Timestamp != nil {
			ts = e.Timestamp.UTC().Format(time.RFC3339Nano)
		}
		items[i] = Item{
			ID:            e.ID,
			RunID:         runID,
			Timestamp:     ts,
			Level:         e.Level,
			Phase:         e.Phase,
			CorrelationID: e.CorrelationID,
			ResourceType:  e.ResourceType,
			ResourceName:  e.ResourceName,
			Message:       e.Message,
			IsError:       e.IsError,
			IsMalformed:   e.IsMalformed,
			Raw:           e.Raw,
			PayloadJSON:   e.PayloadJSON,
		}
	}
	return items
}

// ToEntries converts a stage's output back to entries. A timestamp string
// that does not parse leaves the field unset; an empty raw falls back to
// the message so the entry stays displayable.
func ToEntries(items []Item) []domain.LogEntry {
	entries := make([]domain.LogEntry, len(items))
	for i, it := range items {
		e := domain.LogEntry{
			ID:            it.ID,
			RunID:         it.RunID,
			Level:         it.Level,
			Phase:         it.Phase,
			CorrelationID: it.CorrelationID,
			ResourceType:  it.ResourceType,
			ResourceName:  it.ResourceName,
			Message:       it.Message,
			IsError:       it.IsError,
			IsMalformed:   it.IsMalformed,
			Raw:           it.Raw,
			PayloadJSON:   it.PayloadJSON,
		}
		if it.Timestamp != "" {
			if t, ok := parser.ParseTimestamp(it.Timestamp); ok {
				e.Timestamp = &t
			}
		}
		if e.Raw == "" {
			e.Raw = e.Message
		}
		entries[i] = e
	}
	return entries
}
