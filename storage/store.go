// Package storage uploads menu and game images to an object store.
package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Image is a stored object and its public URL.
type Image struct {
	Key string
	URL string
}

type ImageStore interface {
	Upload(ctx context.Context, fh *multipart.FileHeader, key string) (*Image, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds "<folder>/<slug-of-name>-<short-id><ext>".
func ObjectKey(folder, name, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	base := slug.Make(name)
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%s/%s-%s%s", folder, base, uuid.NewString()[:8], ext)
}
