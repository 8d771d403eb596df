package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"pantry/internal/api/dto"
	"pantry/internal/api/services"
	"pantry/internal/domain"
)

// multipartOverhead is allowed on top of the file limit for boundaries and
// part headers.
const multipartOverhead = 1 << 20

type IngestionHandler struct {
	pipeline       *services.IngestionPipeline
	maxUploadBytes int64
}

func NewIngestionHandler(pipeline *services.IngestionPipeline, maxUploadBytes int64) *IngestionHandler {
	return &IngestionHandler{
		pipeline:       pipeline,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadImage godoc
// @Summary Upload grocery photo
// @Description Detect groceries in a photo and add them to the inventory
// @Tags ingestion
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Photo"
// @Success 200 {object} dto.IngestionResponse
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 500 {object} dto.IngestionErrorResponse
// @Failure 503 {object} map[string]string
// @Router /upload-image [post]
func (h *IngestionHandler) UploadImage(c echo.Context) error {
	if h.maxUploadBytes > 0 {
		req := c.Request()
		req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUploadBytes+multipartOverhead)
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrPayloadTooLarge(c, "file too large")
		}
		return ErrBadRequest(c, "no file uploaded")
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		return ErrPayloadTooLarge(c, "file too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return ErrBadRequest(c, "no file uploaded")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ErrInternalServerError(c)
	}

	report, err := h.pipeline.Ingest(c.Request().Context(), domain.IngestionRequest{
		Data:        data,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Filename:    fileHeader.Filename,
	})
	if err != nil {
		var perr *services.PipelineError
		switch {
		case errors.Is(err, services.ErrBusy):
			return ErrServiceUnavailable(c, "too many uploads in progress, try again later")
		case errors.As(err, &perr):
			return ErrPipeline(c, perr)
		default:
			return ErrInternalServerError(c)
		}
	}

	return c.JSON(http.StatusOK, dto.IngestionResponse{
		Data:     report.RawText,
		Items:    report.Items,
		Merged:   report.Merged,
		ImageURL: report.ImageURL,
		Stage:    string(report.Stage),
		Applied:  dto.InventoryItemsFromDomain(report.Applied),
	})
}
