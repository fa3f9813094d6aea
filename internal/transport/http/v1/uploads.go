package v1

import (
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/loglens/loglens/internal/domain"
)

// UploadFile ingests one uploaded log file synchronously.
// POST /v1/uploads/file
func (h *Handler) UploadFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "missing file field")
	}

	src, err := fh.Open()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "failed to open upload")
	}
	defer src.Close()

	run, err := h.service.UploadFile(c.Request().Context(), fh.Filename, src)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id":   run.RunID,
		"filename": run.Filename,
		"status":   run.Status,
		"summary":  run.Summary,
	})
}

// ImportFiles ingests a batch of uploaded files. One bad file does not
// abort the rest; the response reports every file.
// POST /v1/uploads/import
func (h *Handler) ImportFiles(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "expected multipart form")
	}
	files := form.File["files"]
	if len(files) == 0 {
		return errorJSON(c, http.StatusBadRequest, "no files provided")
	}

	results := make([]domain.ImportResult, 0, len(files))
	ok, errored := 0, 0
	for _, fh := range files {
		res := h.importOne(c, fh)
		if res.Status == string(domain.RunStatusError) {
			errored++
		} else {
			ok++
		}
		results = append(results, res)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":  len(results),
		"ok":     ok,
		"errors": errored,
		"runs":   results,
	})
}

func (h *Handler) importOne(c echo.Context, fh *multipart.FileHeader) domain.ImportResult {
	src, err := fh.Open()
	if err != nil {
		return domain.ImportResult{
			Filename: fh.Filename,
			Status:   string(domain.RunStatusError),
			Error:    "failed to open upload",
		}
	}
	defer src.Close()
	return h.service.ImportFile(c.Request().Context(), fh.Filename, src)
}
