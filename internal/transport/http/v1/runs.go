package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListRuns returns one page of runs, newest first.
// GET /v1/runs
func (h *Handler) ListRuns(c echo.Context) error {
	page := intQueryParam(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := intQueryParam(c, "page_size", 20)
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	runs, err := h.service.ListRuns(c.Request().Context(), page, pageSize)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}

// ClearRuns deletes every run and its entries.
// POST /v1/runs/clear
func (h *Handler) ClearRuns(c echo.Context) error {
	if err := h.service.ClearRuns(c.Request().Context()); err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "all runs cleared"})
}
