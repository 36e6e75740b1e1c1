package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/garyjia/claim-approval/internal/application/dispatcher"
	"github.com/garyjia/claim-approval/internal/application/port"
	"github.com/garyjia/claim-approval/internal/domain/entity"
	"github.com/garyjia/claim-approval/internal/domain/event"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Rejection messages shown to uploaders
const (
	MsgFileMissing     = "No file selected or file is empty."
	MsgFileTooLarge    = "File size exceeds 5MB limit. Your file is %dMB."
	MsgFileType        = "Invalid file type. Only PDF, DOCX, and XLSX files are allowed."
	MsgFileNameTooLong = "File name is too long. Maximum 255 characters."
	MsgFileNotFound    = "File not found."
	MsgFileSizeChanged = "Uploaded file size does not match the declared size."
	MsgUploadFailed    = "Error uploading file."
)

// Rejection reasons reported on document.rejected events
const (
	ReasonEmpty        = "empty"
	ReasonTooLarge     = "too_large"
	ReasonFileType     = "file_type"
	ReasonNameTooLong  = "name_too_long"
	ReasonSizeMismatch = "size_mismatch"
)

var allowedExtensions = map[string]string{
	entity.ExtensionPDF:  entity.ContentTypePDF,
	entity.ExtensionDOCX: entity.ContentTypeDOCX,
	entity.ExtensionXLSX: entity.ContentTypeXLSX,
}

// errSizeMismatch marks a stream whose length differs from the declared size
var errSizeMismatch = errors.New("stream length differs from declared size")

// DocumentStore validates and persists claim attachments
type DocumentStore interface {
	// Store validates the upload and writes it under a fresh storage key.
	// Validation failures perform no I/O.
	Store(ctx context.Context, fileName string, content io.Reader, declaredSize int64) (string, error)

	// Retrieve returns the stored bytes and the name to present them under.
	Retrieve(ctx context.Context, storageKey, originalFileName string) ([]byte, string, error)

	ContentType(extension string) string

	// Remove deletes a stored file. Removing a missing key is not an error.
	Remove(ctx context.Context, storageKey string) error
}

type documentStoreImpl struct {
	blobs      port.BlobStore
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
}

// NewDocumentStore creates a DocumentStore over the given blob backend.
// dispatcher may be nil.
func NewDocumentStore(blobs port.BlobStore, d dispatcher.Dispatcher, logger *zap.Logger) DocumentStore {
	return &documentStoreImpl{
		blobs:      blobs,
		dispatcher: d,
		logger:     logger,
	}
}

// ContentTypeFor maps a file extension to its MIME type, ignoring case
func ContentTypeFor(extension string) string {
	if ct, ok := allowedExtensions[strings.ToLower(extension)]; ok {
		return ct
	}
	return entity.ContentTypeOctetStream
}

// ValidateUpload applies the ordered upload rules and returns the first
// violation with its rejection reason.
func ValidateUpload(fileName string, declaredSize int64) (reason string, err error) {
	if fileName == "" || declaredSize <= 0 {
		return ReasonEmpty, entity.NewValidationError("Documents", MsgFileMissing)
	}
	if declaredSize > entity.MaxDocumentSize {
		return ReasonTooLarge, entity.NewValidationError("Documents",
			fmt.Sprintf(MsgFileTooLarge, declaredSize/1024/1024))
	}
	if _, ok := allowedExtensions[strings.ToLower(filepath.Ext(fileName))]; !ok {
		return ReasonFileType, entity.NewValidationError("Documents", MsgFileType)
	}
	if utf8.RuneCountInString(fileName) > entity.MaxFileNameLength {
		return ReasonNameTooLong, entity.NewValidationError("Documents", MsgFileNameTooLong)
	}
	return "", nil
}

func (s *documentStoreImpl) Store(ctx context.Context, fileName string, content io.Reader, declaredSize int64) (string, error) {
	if content == nil {
		declaredSize = 0
	}
	if reason, err := ValidateUpload(fileName, declaredSize); err != nil {
		s.logger.Info("Document rejected",
			zap.String("file_name", fileName),
			zap.Int64("declared_size", declaredSize),
			zap.String("reason", reason))
		s.emit(ctx, event.TypeDocumentRejected, map[string]interface{}{
			event.KeyReason:   reason,
			event.KeyFileType: strings.ToLower(filepath.Ext(fileName)),
		})
		return "", err
	}

	key := StorageKey(uuid.NewString(), fileName)
	counted := &countingReader{r: io.LimitReader(content, declaredSize+1)}
	sized := &sizeCheckReader{r: counted, counted: counted, want: declaredSize}

	if err := s.blobs.Write(ctx, key, sized); err != nil {
		if errors.Is(err, errSizeMismatch) {
			s.logger.Warn("Upload size mismatch",
				zap.String("file_name", fileName),
				zap.Int64("declared_size", declaredSize),
				zap.Int64("read", counted.n))
			s.emit(ctx, event.TypeDocumentRejected, map[string]interface{}{
				event.KeyReason:   ReasonSizeMismatch,
				event.KeyFileType: strings.ToLower(filepath.Ext(fileName)),
			})
			return "", entity.NewValidationError("Documents", MsgFileSizeChanged)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", entity.NewStorageError("Upload was cancelled.", ctxErr)
		}
		s.logger.Error("Failed to write document", zap.String("key", key), zap.Error(err))
		return "", entity.NewStorageError(MsgUploadFailed, err)
	}

	s.logger.Debug("Document stored", zap.String("key", key), zap.Int64("size", declaredSize))
	s.emit(ctx, event.TypeDocumentStored, map[string]interface{}{
		event.KeyFileType: strings.ToLower(filepath.Ext(fileName)),
		event.KeyFileSize: declaredSize,
	})
	return key, nil
}

func (s *documentStoreImpl) Retrieve(ctx context.Context, storageKey, originalFileName string) ([]byte, string, error) {
	data, err := s.blobs.Read(ctx, storageKey)
	if errors.Is(err, port.ErrBlobNotFound) {
		return nil, "", &entity.Error{Kind: entity.ErrNotFound, Message: MsgFileNotFound, Err: err}
	}
	if err != nil {
		s.logger.Error("Failed to read document", zap.String("key", storageKey), zap.Error(err))
		return nil, "", entity.NewStorageError(MsgDownloadFailed, err)
	}
	return data, originalFileName, nil
}

func (s *documentStoreImpl) ContentType(extension string) string {
	return ContentTypeFor(extension)
}

func (s *documentStoreImpl) Remove(ctx context.Context, storageKey string) error {
	if err := s.blobs.Delete(ctx, storageKey); err != nil {
		s.logger.Warn("Failed to remove document", zap.String("key", storageKey), zap.Error(err))
		return entity.NewStorageError("Error deleting file.", err)
	}
	return nil
}

func (s *documentStoreImpl) emit(ctx context.Context, t event.Type, payload map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, event.NewEvent(t, 0, payload)); err != nil {
		s.logger.Warn("Failed to dispatch document event", zap.String("event_type", t.String()), zap.Error(err))
	}
}

// MaxStorageKeyBytes bounds a storage key; filesystems limit a file name to
// 255 bytes, not characters.
const MaxStorageKeyBytes = 255

// StorageKey builds "<id>_<fileName>". Path separators and NUL in the name
// are replaced, and an over-long name is shortened from the end of its
// base name, on a rune boundary, so the key fits MaxStorageKeyBytes and
// keeps the extension.
func StorageKey(id, fileName string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, fileName)

	key := id + "_" + safe
	if len(key) <= MaxStorageKeyBytes {
		return key
	}

	ext := filepath.Ext(safe)
	base := strings.TrimSuffix(safe, ext)
	budget := MaxStorageKeyBytes - len(id) - 1 - len(ext)
	if budget < 0 {
		base, ext = safe, ""
		budget = MaxStorageKeyBytes - len(id) - 1
	}
	return id + "_" + truncateBytes(base, budget) + ext
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// sizeCheckReader fails the stream at EOF when the byte count differs from
// want, so the blob backend discards the write.
type sizeCheckReader struct {
	r       io.Reader
	counted *countingReader
	want    int64
}

func (s *sizeCheckReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if s.counted.n > s.want {
		return n, errSizeMismatch
	}
	if err == io.EOF && s.counted.n != s.want {
		return n, errSizeMismatch
	}
	return n, err
}
