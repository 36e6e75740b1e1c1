package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjia/claim-approval/internal/application/port"
	"go.uber.org/zap"
)

const tempPrefix = ".upload-"

// LocalBlobStore implements port.BlobStore on a single local directory.
// Writes go to a temp file in the same directory and are renamed into place.
type LocalBlobStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalBlobStore creates the base directory if needed
func NewLocalBlobStore(baseDir string, logger *zap.Logger) (*LocalBlobStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("storage base directory is empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalBlobStore{baseDir: baseDir, logger: logger}, nil
}

// Write streams r into a temp file and renames it to key once complete
func (s *LocalBlobStore) Write(ctx context.Context, key string, r io.Reader) (err error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.baseDir, tempPrefix+"*")
	if err != nil {
		s.logger.Error("Failed to create temp file", zap.String("dir", s.baseDir), zap.Error(err))
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				s.logger.Warn("Failed to remove temp file", zap.String("path", tmpName), zap.Error(rmErr))
			}
		}
	}()

	written, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		s.logger.Error("Failed to write file", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = os.Rename(tmpName, fullPath); err != nil {
		s.logger.Error("Failed to move file into place", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to commit file: %w", err)
	}

	s.logger.Debug("File saved successfully",
		zap.String("key", key),
		zap.Int64("size", written))

	return nil
}

// Read returns the blob content or port.ErrBlobNotFound
func (s *LocalBlobStore) Read(ctx context.Context, key string) ([]byte, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", port.ErrBlobNotFound, key)
	}
	if err != nil {
		s.logger.Error("Failed to read file", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return content, nil
}

// Exists checks for a committed blob under key
func (s *LocalBlobStore) Exists(ctx context.Context, key string) bool {
	fullPath, err := s.resolve(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes the blob; a missing key is not an error
func (s *LocalBlobStore) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("Failed to delete file", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// resolve maps a key to a path directly inside baseDir. Keys with separators,
// dot segments or the temp prefix are refused.
func (s *LocalBlobStore) resolve(key string) (string, error) {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) ||
		strings.HasPrefix(key, tempPrefix) {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}

	fullPath := filepath.Join(s.baseDir, key)
	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}
	return fullPath, nil
}

// validatePath checks that the path is within baseDir
func (s *LocalBlobStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}
	return nil
}

// ctxReader stops a copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// List returns the committed blobs directly inside the base directory.
// Temp files of in-flight writes and subdirectories are skipped.
func (s *LocalBlobStore) List(ctx context.Context) ([]port.BlobInfo, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}

	infos := make([]port.BlobInfo, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue // removed since ReadDir
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		infos = append(infos, port.BlobInfo{Key: e.Name(), ModTime: info.ModTime()})
	}
	return infos, nil
}

var (
	_ port.BlobStore  = (*LocalBlobStore)(nil)
	_ port.BlobLister = (*LocalBlobStore)(nil)
)
