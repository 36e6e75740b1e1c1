package port

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrBlobNotFound is returned by BlobStore.Read for a missing key
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is the byte-level backend behind the document store.
// Keys are opaque and used only for exact-match lookup.
type BlobStore interface {
	// Write stores the full stream under key. Readers never observe a
	// partially written blob; on error nothing is left under key.
	Write(ctx context.Context, key string, r io.Reader) error
	Read(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) bool

	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
}

// BlobInfo describes a committed blob
type BlobInfo struct {
	Key     string
	ModTime time.Time
}

// BlobLister enumerates committed blobs for maintenance sweeps. In-flight
// writes are never listed.
type BlobLister interface {
	List(ctx context.Context) ([]BlobInfo, error)
}
