package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantry/internal/blob"
)

type failingStore struct {
	blob.Store
	keys []string
}

func (f *failingStore) ListOlderThan(context.Context, string, time.Time) ([]string, error) {
	return f.keys, nil
}

func (f *failingStore) Delete(_ context.Context, key string) error {
	if key == "ingest/bad" {
		return errors.New("permission denied")
	}
	return nil
}

func TestBlobSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := blob.NewLocalStore(dir, "ingest/", "http://localhost/blobs")
	require.NoError(t, err)

	old, err := store.Upload(ctx, []byte("old"), "image/jpeg", "old.jpg")
	require.NoError(t, err)
	fresh, err := store.Upload(ctx, []byte("fresh"), "image/jpeg", "fresh.jpg")
	require.NoError(t, err)

	oldPath := filepath.Join(dir, filepath.FromSlash(old.Key))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	sweeper := NewBlobSweeper(store, "ingest/", 24*time.Hour, time.Hour)
	assert.Equal(t, 1, sweeper.Sweep(ctx))

	_, err = os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(fresh.Key)))
	assert.NoError(t, err)

	assert.Equal(t, 0, sweeper.Sweep(ctx))
}

func TestBlobSweeper_SkipsFailedDeletes(t *testing.T) {
	store := &failingStore{keys: []string{"ingest/a", "ingest/bad", "ingest/b"}}
	sweeper := NewBlobSweeper(store, "ingest/", time.Hour, time.Hour)

	assert.Equal(t, 2, sweeper.Sweep(context.Background()))
}

func TestBlobSweeper_DisabledReturnsImmediately(t *testing.T) {
	sweeper := NewBlobSweeper(&failingStore{}, "ingest/", 0, time.Hour)

	done := make(chan struct{})
	go func() {
		sweeper.StartWorker(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper did not return")
	}
}
