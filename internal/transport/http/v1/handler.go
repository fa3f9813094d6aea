// Package v1 provides the public HTTP API.
package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/loglens/loglens/internal/domain"
	"github.com/loglens/loglens/internal/parser"
	"github.com/loglens/loglens/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Ingestion
	e.POST("/v1/uploads/file", h.UploadFile)
	e.POST("/v1/uploads/import", h.ImportFiles)

	// Runs
	e.GET("/v1/runs", h.ListRuns)
	e.POST("/v1/runs/clear", h.ClearRuns)

	// Entries
	e.GET("/v1/logs", h.ListLogs)
	e.GET("/v1/logs/groups", h.ListGroups)
	e.GET("/v1/timeline", h.Timeline)

	// Exports
	e.GET("/v1/export/jsonl", h.ExportJSONL)
	e.GET("/v1/export/jsonl_by_keys", h.ExportJSONLByKeys)
	e.GET("/v1/export/timeline.json", h.ExportTimelineJSON)
	e.GET("/v1/export/timeline.csv", h.ExportTimelineCSV)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func intQueryParam(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func boolQueryParam(c echo.Context, name string) bool {
	switch c.QueryParam(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// timeQueryParam parses a timestamp query parameter. RFC3339 and the
// space-separated form are both accepted.
func timeQueryParam(c echo.Context, name string) (*time.Time, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, true
	}
	if t, ok := parser.ParseTimestamp(v); ok {
		return &t, true
	}
	return nil, false
}

func dimensionParam(c echo.Context, name string) (domain.Dimension, error) {
	return domain.ParseDimension(c.QueryParam(name))
}
