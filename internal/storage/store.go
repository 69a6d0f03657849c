// Package storage holds uploaded file bytes. The rest of the system only
// ever sees opaque keys; the store is the sole owner of the bytes.
package storage

import (
	"context"
	"io"
)

// Store is the blob-store contract the room engine consumes.
type Store interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
