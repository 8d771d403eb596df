package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"pantry/internal/blob"
	"pantry/internal/domain"
	inventoryredis "pantry/internal/redis"
	"pantry/internal/testutil"
)

type fakeBlobStore struct {
	mu        sync.Mutex
	uploadErr error
	uploaded  []string
	deleted   []string
}

func (f *fakeBlobStore) Upload(_ context.Context, _ []byte, _, keyHint string) (*blob.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	key := blob.NewKey("ingest/", keyHint, time.Now())
	f.uploaded = append(f.uploaded, key)
	return &blob.Object{Key: key, URL: "https://blobs.test/" + key, CreatedAt: time.Now()}, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlobStore) ListOlderThan(context.Context, string, time.Time) ([]string, error) {
	return nil, nil
}

type fakeInferrer struct {
	text    string
	err     error
	started chan struct{}
	release chan struct{}
	calls   int
	prompts []string
}

func (f *fakeInferrer) Infer(ctx context.Context, imageURL, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

// blockingInferrer waits for its context to end.
type blockingInferrer struct{}

func (blockingInferrer) Infer(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []domain.InventoryItem
	err   error
}

func (n *recordingNotifier) InventoryChanged(_ context.Context, item *domain.InventoryItem) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, *item)
	return n.err
}

func setupInventory(t *testing.T, notifiers ...InventoryNotifier) (*InventoryService, *miniredis.Miniredis) {
	t.Helper()
	client, s := testutil.NewRedis(t)
	store := inventoryredis.NewInventoryStore(client, inventoryredis.DefaultInventoryKey)
	return NewInventoryService(store, time.Second, echo.New().Logger, notifiers...), s
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var errBoom = errors.New("boom")
