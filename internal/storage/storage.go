package storage

import (
	"context"
	"io"
)

// BlobStore holds upload content under string keys.
type BlobStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// URLPresigner is implemented by stores that can hand out time-limited
// download URLs instead of streaming content through the service.
type URLPresigner interface {
	PresignDownload(ctx context.Context, key string) (string, error)
}
