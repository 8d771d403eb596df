// Package blob uploads ingestion images to object storage and hands back a
// URL the vision model can fetch without credentials.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

var ErrStorageUnavailable = errors.New("blob storage unavailable")

// Object is an uploaded blob.
type Object struct {
	Key       string
	URL       string
	CreatedAt time.Time
}

// Store is an object store that serves uploaded blobs at public URLs.
type Store interface {
	Upload(ctx context.Context, data []byte, contentType, keyHint string) (*Object, error)
	Delete(ctx context.Context, key string) error
	ListOlderThan(ctx context.Context, prefix string, cutoff time.Time) ([]string, error)
}

// NewKey builds a collision-free object key from the upload time, a random
// suffix and the client's filename.
func NewKey(prefix, filename string, now time.Time) string {
	name := sanitizeFilename(filename)
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s%d-%s-%s", prefix, now.UnixMilli(), id, name)
}

func sanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), "._")
	if name == "" {
		return "upload"
	}
	if len(name) > 64 {
		name = name[len(name)-64:]
	}
	return name
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
