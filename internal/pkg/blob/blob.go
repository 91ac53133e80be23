// Package blob abstracts where uploaded file bytes live. The default backend
// is the local filesystem; an S3 backend is available for deployments that
// need shared storage.
package blob

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotExist is returned when the requested key has no stored bytes.
var ErrNotExist = errors.New("blob does not exist")

// Store is the storage interface for uploaded file payloads.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete is idempotent: removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// BuildKey generates a collision-resistant storage key that preserves the
// original extension.
func BuildKey(original string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(original)))
	if ext == "" || len(ext) > 10 {
		ext = ".dat"
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:18] + ext
}
