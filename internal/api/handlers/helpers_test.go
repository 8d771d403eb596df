package handlers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"pantry/internal/api/services"
	"pantry/internal/blob"
	inventoryredis "pantry/internal/redis"
	"pantry/internal/testutil"
)

type customValidator struct{ v *validator.Validate }

func (cv *customValidator) Validate(i interface{}) error { return cv.v.Struct(i) }

type stubBlobStore struct {
	err     error
	deleted []string
}

func (s *stubBlobStore) Upload(_ context.Context, _ []byte, _, keyHint string) (*blob.Object, error) {
	if s.err != nil {
		return nil, s.err
	}
	key := blob.NewKey("ingest/", keyHint, time.Now())
	return &blob.Object{Key: key, URL: "https://blobs.test/" + key, CreatedAt: time.Now()}, nil
}

func (s *stubBlobStore) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *stubBlobStore) ListOlderThan(context.Context, string, time.Time) ([]string, error) {
	return nil, nil
}

type stubInferrer struct {
	text  string
	err   error
	calls int
}

func (s *stubInferrer) Infer(context.Context, string, string) (string, error) {
	s.calls++
	return s.text, s.err
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &customValidator{v: validator.New()}
	return e
}

func setupInventoryService(t *testing.T) (*services.InventoryService, *miniredis.Miniredis) {
	t.Helper()
	client, s := testutil.NewRedis(t)
	store := inventoryredis.NewInventoryStore(client, inventoryredis.DefaultInventoryKey)
	return services.NewInventoryService(store, time.Second, nil), s
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func multipartRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no image here"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-image", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(y), B: uint8(x), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
