package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pantry/internal/api/dto"
	"pantry/internal/api/services"
)

func ErrNotFound(c echo.Context, message string) error {
	if message == "" {
		message = "not found"
	}
	return c.JSON(http.StatusNotFound, map[string]string{"error": message})
}

func ErrBadRequest(c echo.Context, message string) error {
	if message == "" {
		message = "invalid request"
	}
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func ErrInternalServerError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

func ErrPayloadTooLarge(c echo.Context, message string) error {
	if message == "" {
		message = "request too large"
	}
	return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": message})
}

func ErrServiceUnavailable(c echo.Context, message string) error {
	if message == "" {
		message = "service unavailable"
	}
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": message})
}

var pipelineErrorMessages = map[services.ErrorKind]string{
	services.KindUnsupportedFormat:  "unsupported image format",
	services.KindProcessingFailure:  "failed to process image",
	services.KindStorageUnavailable: "failed to store image",
	services.KindInferenceFailure:   "failed to analyze image",
	services.KindParseFailure:       "could not read groceries from model output",
	services.KindMergeFailure:       "failed to update inventory",
	services.KindTimeout:            "image processing timed out",
	services.KindCanceled:           "request canceled",
}

// ErrPipeline reports a failed ingestion run. The raw model output is only
// included when it could not be parsed.
func ErrPipeline(c echo.Context, perr *services.PipelineError) error {
	message, ok := pipelineErrorMessages[perr.Kind]
	if !ok {
		message = "failed to process image"
	}
	resp := dto.IngestionErrorResponse{
		Error: message,
		Kind:  string(perr.Kind),
		Stage: string(perr.Stage),
	}
	if perr.Kind == services.KindParseFailure {
		resp.Data = perr.RawText
	}
	return c.JSON(http.StatusInternalServerError, resp)
}
