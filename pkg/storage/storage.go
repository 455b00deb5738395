// Package storage provides the image storage capability: upload a blob,
// get back a public URL plus an object ID that can delete it later.
package storage

import (
	"context"
	"io"
)

// StoredImage is the result of a successful upload.
type StoredImage struct {
	URL      string
	PublicID string
}

// ImageStorage is the opaque blob-storage contract consumed by the API.
type ImageStorage interface {
	Upload(ctx context.Context, r io.Reader, folder string) (*StoredImage, error)
	Delete(ctx context.Context, publicID string) error
}
