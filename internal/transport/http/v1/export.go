package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ExportJSONL streams every entry of a run as NDJSON.
// GET /v1/export/jsonl
func (h *Handler) ExportJSONL(c echo.Context) error {
	runID := c.QueryParam("run_id")
	if runID == "" {
		return errorJSON(c, http.StatusBadRequest, "run_id is required")
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().WriteHeader(http.StatusOK)
	return h.service.ExportNDJSON(c.Request().Context(), c.Response(), runID)
}

// ExportJSONLByKeys streams the entries matching a comma-separated key
// list for one dimension.
// GET /v1/export/jsonl_by_keys
func (h *Handler) ExportJSONLByKeys(c echo.Context) error {
	runID := c.QueryParam("run_id")
	if runID == "" {
		return errorJSON(c, http.StatusBadRequest, "run_id is required")
	}
	by, err := dimensionParam(c, "pair_by")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	keys := strings.Split(c.QueryParam("keys"), ",")

	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().WriteHeader(http.StatusOK)
	return h.service.ExportNDJSONByKeys(c.Request().Context(), c.Response(), runID, by, keys)
}

// ExportTimelineJSON downloads the timeline as a JSON attachment.
// GET /v1/export/timeline.json
func (h *Handler) ExportTimelineJSON(c echo.Context) error {
	runID := c.QueryParam("run_id")
	if runID == "" {
		return errorJSON(c, http.StatusBadRequest, "run_id is required")
	}
	by, err := dimensionParam(c, "by")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	from, ok := timeQueryParam(c, "ts_from")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid ts_from")
	}
	to, ok := timeQueryParam(c, "ts_to")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid ts_to")
	}

	items, err := h.service.Timeline(c.Request().Context(), runID, by, from, to)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=timeline_%s_%s.json", runID, by))
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c.Response().WriteHeader(http.StatusOK)

	enc := json.NewEncoder(c.Response())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{"items": items})
}

// ExportTimelineCSV downloads the timeline as a CSV attachment.
// GET /v1/export/timeline.csv
func (h *Handler) ExportTimelineCSV(c echo.Context) error {
	runID := c.QueryParam("run_id")
	if runID == "" {
		return errorJSON(c, http.StatusBadRequest, "run_id is required")
	}
	by, err := dimensionParam(c, "by")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	from, ok := timeQueryParam(c, "ts_from")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid ts_from")
	}
	to, ok := timeQueryParam(c, "ts_to")
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "invalid ts_to")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=timeline_%s_%s.csv", runID, by))
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().WriteHeader(http.StatusOK)
	return h.service.ExportTimelineCSV(c.Request().Context(), c.Response(), runID, by, from, to)
}
