package blob

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultGCSPublicBaseURL = "https://storage.googleapis.com"

// GCSStore keeps blobs in a Google Cloud Storage bucket. The bucket is
// expected to grant allUsers object read access so that returned URLs work
// without signing.
type GCSStore struct {
	client        *storage.Client
	bucket        string
	prefix        string
	publicBaseURL string
	now           func() time.Time
}

func NewGCSClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return storage.NewClient(ctx, opts...)
}

func NewGCSStore(client *storage.Client, bucket, prefix, publicBaseURL string) (*GCSStore, error) {
	bucket = strings.TrimSpace(bucket)
	if client == nil {
		return nil, errors.New("gcs store: storage client is nil")
	}
	if bucket == "" {
		return nil, errors.New("gcs store: bucket is empty")
	}
	if publicBaseURL == "" {
		publicBaseURL = defaultGCSPublicBaseURL
	}
	return &GCSStore{
		client:        client,
		bucket:        bucket,
		prefix:        prefix,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}, nil
}

func (s *GCSStore) Upload(ctx context.Context, data []byte, contentType, keyHint string) (*Object, error) {
	now := s.now().UTC()
	key := NewKey(s.prefix, keyHint, now)

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if ct := strings.TrimSpace(contentType); ct != "" {
		w.ContentType = ct
	}
	w.ChunkSize = 0
	w.Metadata = map[string]string{
		"uploadedAt": now.Format(time.RFC3339),
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, unavailable("write object", err)
	}
	if err := w.Close(); err != nil {
		return nil, unavailable("close object writer", err)
	}

	return &Object{Key: key, URL: s.URL(key), CreatedAt: now}, nil
}

func (s *GCSStore) URL(key string) string {
	return s.publicBaseURL + "/" + url.PathEscape(s.bucket) + "/" + escapeKey(key)
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return unavailable("delete object", err)
	}
	return nil
}

func (s *GCSStore) ListOlderThan(ctx context.Context, prefix string, cutoff time.Time) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, unavailable("list objects", err)
		}
		if attrs == nil || attrs.Name == "" {
			continue
		}
		if attrs.Created.Before(cutoff) {
			keys = append(keys, attrs.Name)
		}
	}
	return keys, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
