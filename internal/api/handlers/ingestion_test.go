package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantry/internal/api/dto"
	"pantry/internal/api/services"
	"pantry/internal/blob"
	"pantry/internal/domain"
	"pantry/internal/imaging"
)

func setupIngestionHandler(t *testing.T, blobs blob.Store, inferrer *stubInferrer, maxUpload int64) (*IngestionHandler, *services.InventoryService) {
	t.Helper()
	inventory, _ := setupInventoryService(t)
	pipeline := services.NewIngestionPipeline(blobs, inferrer, inventory, nil, services.PipelineOptions{
		Constraints:      imaging.DefaultConstraints(),
		AutoMerge:        true,
		UploadTimeout:    time.Second,
		InferenceTimeout: time.Second,
	})
	return NewIngestionHandler(pipeline, maxUpload), inventory
}

func TestIngestionHandler_UploadImage(t *testing.T) {
	e := newEcho()

	t.Run("detected items are merged", func(t *testing.T) {
		handler, inventory := setupIngestionHandler(t, &stubBlobStore{}, &stubInferrer{text: `{"bread":1}`}, 1<<20)

		rec := httptest.NewRecorder()
		c := e.NewContext(multipartRequest(t, "image", "shelf.png", pngBytes(t, 40, 30)), rec)

		require.NoError(t, handler.UploadImage(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp dto.IngestionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, `{"bread":1}`, resp.Data)
		assert.Equal(t, map[string]int{"bread": 1}, resp.Items)
		assert.True(t, resp.Merged)
		assert.Equal(t, "completed", resp.Stage)
		assert.Contains(t, resp.ImageURL, "https://blobs.test/ingest/")
		assert.Contains(t, resp.ImageURL, "shelf.png")

		item, err := inventory.Get(context.Background(), "bread")
		require.NoError(t, err)
		assert.Equal(t, 1, item.Quantity)
	})

	t.Run("missing file returns 400 without running the pipeline", func(t *testing.T) {
		inferrer := &stubInferrer{text: `{"bread":1}`}
		handler, _ := setupIngestionHandler(t, &stubBlobStore{}, inferrer, 1<<20)

		rec := httptest.NewRecorder()
		c := e.NewContext(multipartRequest(t, "", "", nil), rec)

		require.NoError(t, handler.UploadImage(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"no file uploaded"}`, rec.Body.String())
		assert.Zero(t, inferrer.calls)
	})

	t.Run("oversized file returns 413", func(t *testing.T) {
		inferrer := &stubInferrer{text: `{"bread":1}`}
		handler, _ := setupIngestionHandler(t, &stubBlobStore{}, inferrer, 64)

		rec := httptest.NewRecorder()
		c := e.NewContext(multipartRequest(t, "image", "big.png", pngBytes(t, 64, 64)), rec)

		require.NoError(t, handler.UploadImage(c))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Zero(t, inferrer.calls)
	})

	t.Run("storage failure returns 500 and keeps inventory", func(t *testing.T) {
		blobs := &stubBlobStore{err: fmt.Errorf("%w: bucket gone", blob.ErrStorageUnavailable)}
		inferrer := &stubInferrer{text: `{"bread":1}`}
		handler, inventory := setupIngestionHandler(t, blobs, inferrer, 1<<20)

		rec := httptest.NewRecorder()
		c := e.NewContext(multipartRequest(t, "image", "shelf.png", pngBytes(t, 10, 10)), rec)

		require.NoError(t, handler.UploadImage(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp dto.IngestionErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "storage_unavailable", resp.Kind)
		assert.Equal(t, string(domain.StageStored), resp.Stage)
		assert.Empty(t, resp.Data)
		assert.Zero(t, inferrer.calls)

		items, err := inventory.List(context.Background(), services.InventoryFilter{})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("unparseable model output is returned", func(t *testing.T) {
		blobs := &stubBlobStore{}
		handler, _ := setupIngestionHandler(t, blobs, &stubInferrer{text: "Sorry, I can't see any food."}, 1<<20)

		rec := httptest.NewRecorder()
		c := e.NewContext(multipartRequest(t, "image", "shelf.png", pngBytes(t, 10, 10)), rec)

		require.NoError(t, handler.UploadImage(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp dto.IngestionErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "parse_failure", resp.Kind)
		assert.Equal(t, "Sorry, I can't see any food.", resp.Data)
		assert.Len(t, blobs.deleted, 1)
	})

	t.Run("non-image upload returns unsupported_format", func(t *testing.T) {
		handler, _ := setupIngestionHandler(t, &stubBlobStore{}, &stubInferrer{}, 1<<20)

		rec := httptest.NewRecorder()
		c := e.NewContext(multipartRequest(t, "image", "notes.txt", []byte("milk, eggs")), rec)

		require.NoError(t, handler.UploadImage(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"unsupported image format","kind":"unsupported_format","stage":"normalized"}`, rec.Body.String())
	})
}

func TestErrPipeline_DefaultsUnknownKind(t *testing.T) {
	e := newEcho()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/upload-image", nil), rec)

	require.NoError(t, ErrPipeline(c, &services.PipelineError{Stage: domain.StageMerged, Kind: "other", RawText: "{}"}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to process image","kind":"other","stage":"merged"}`, rec.Body.String())
}
