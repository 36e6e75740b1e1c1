package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/claim-approval/internal/application/port"
)

// MemoryBlobStore is a process-local port.BlobStore
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

type memoryBlob struct {
	content []byte
	modTime time.Time
}

// NewMemoryBlobStore creates an empty store
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string]memoryBlob)}
}

// Write buffers the full stream before publishing it under key
func (s *MemoryBlobStore) Write(ctx context.Context, key string, r io.Reader) error {
	if key == "" {
		return fmt.Errorf("invalid storage key: %q", key)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, &ctxReader{ctx: ctx, r: r}); err != nil {
		return fmt.Errorf("failed to buffer blob: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.blobs[key] = memoryBlob{content: buf.Bytes(), modTime: time.Now()}
	s.mu.Unlock()
	return nil
}

// Read returns a copy of the stored bytes
func (s *MemoryBlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrBlobNotFound, key)
	}
	return bytes.Clone(blob.content), nil
}

func (s *MemoryBlobStore) Exists(ctx context.Context, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[key]
	return ok
}

func (s *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored blobs
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// List returns every blob sorted by key
func (s *MemoryBlobStore) List(ctx context.Context) ([]port.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	infos := make([]port.BlobInfo, 0, len(s.blobs))
	for key, blob := range s.blobs {
		infos = append(infos, port.BlobInfo{Key: key, ModTime: blob.modTime})
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

var (
	_ port.BlobStore  = (*MemoryBlobStore)(nil)
	_ port.BlobLister = (*MemoryBlobStore)(nil)
)
