package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Timeline returns the aggregated buckets of a run.
// GET /v1/timeline
func (h *Handler) Timeline(c echo.Context) error {
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
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}
