package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	store "github.com/loglens/loglens/internal/repository"
	"github.com/loglens/loglens/internal/service"
)

// entryFilterFromQuery builds the store filter from query parameters.
func entryFilterFromQuery(c echo.Context) (store.EntryFilter, error) {
	f := store.EntryFilter{
		RunID:         c.QueryParam("run_id"),
		CorrelationID: c.QueryParam("correlation_id"),
		ResourceType:  c.QueryParam("resource_type"),
		ResourceName:  c.QueryParam("resource_name"),
		Phase:         c.QueryParam("phase"),
		Level:         c.QueryParam("level"),
		Status:        c.QueryParam("status"),
		Search:        c.QueryParam("search"),
	}
	if f.RunID == "" {
		return f, errors.New("run_id is required")
	}
	switch f.Status {
	case "", "error", "ok", "malformed":
	default:
		return f, errors.New("status must be error|ok|malformed")
	}

	var ok bool
	if f.From, ok = timeQueryParam(c, "ts_from"); !ok {
		return f, errors.New("invalid ts_from")
	}
	if f.To, ok = timeQueryParam(c, "ts_to"); !ok {
		return f, errors.New("invalid ts_to")
	}
	return f, nil
}

// ListLogs returns a filtered page of entries, optionally expanded with
// their paired entries.
// GET /v1/logs
func (h *Handler) ListLogs(c echo.Context) error {
	filter, err := entryFilterFromQuery(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	pairBy, err := dimensionParam(c, "pair_by")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	page, err := h.service.ListLogs(c.Request().Context(), service.LogsQuery{
		Filter:       filter,
		Page:         intQueryParam(c, "page", 1),
		PageSize:     intQueryParam(c, "page_size", 100),
		IncludePairs: boolQueryParam(c, "include_pairs"),
		PairBy:       pairBy,
	})
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, page)
}

// ListGroups returns the distinct grouping keys of a run with counts.
// GET /v1/logs/groups
func (h *Handler) ListGroups(c echo.Context) error {
	runID := c.QueryParam("run_id")
	if runID == "" {
		return errorJSON(c, http.StatusBadRequest, "run_id is required")
	}
	by, err := dimensionParam(c, "pair_by")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	groups, err := h.service.Groups(c.Request().Context(), runID, by)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, groups)
}
