package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes blobs to a directory that the HTTP server also exposes
// as static files. Intended for development, where the vision service can
// reach the server directly.
type LocalStore struct {
	dir           string
	prefix        string
	publicBaseURL string
	now           func() time.Time
}

func NewLocalStore(dir, prefix, publicBaseURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("local store: directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local store: create directory: %w", err)
	}
	return &LocalStore{
		dir:           dir,
		prefix:        prefix,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Upload(ctx context.Context, data []byte, contentType, keyHint string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	key := NewKey(s.prefix, keyHint, now)
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, unavailable("create directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, unavailable("write file", err)
	}

	return &Object{Key: key, URL: s.publicBaseURL + "/" + key, CreatedAt: now}, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return unavailable("remove file", err)
	}
	return nil
}

func (s *LocalStore) ListOlderThan(ctx context.Context, prefix string, cutoff time.Time) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("list files", err)
	}
	return keys, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("local store: invalid key %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}
