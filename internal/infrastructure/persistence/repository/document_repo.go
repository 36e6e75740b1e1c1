package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/claim-approval/internal/domain/entity"
	"go.uber.org/zap"
)

const documentColumns = `id, claim_id, original_file_name, stored_file_name, file_size, file_type, uploaded_at`

// CreateDocument inserts a supporting document record for an existing claim
func (r *ClaimRepository) CreateDocument(ctx context.Context, doc *entity.SupportingDocument) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	doc.UploadedAt = doc.UploadedAt.UTC()

	query := `
		INSERT INTO supporting_documents (
			claim_id, original_file_name, stored_file_name, file_size, file_type, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.executor(ctx).ExecContext(ctx, query,
		doc.ClaimID,
		doc.OriginalFileName,
		doc.StoredFileName,
		doc.FileSize,
		doc.FileType,
		doc.UploadedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document",
			zap.Int64("claim_id", doc.ClaimID),
			zap.String("file_name", doc.OriginalFileName),
			zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	doc.ID = id
	return nil
}

// FindDocument retrieves a supporting document by ID
func (r *ClaimRepository) FindDocument(ctx context.Context, id int64) (*entity.SupportingDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM supporting_documents WHERE id = ?`

	doc, err := scanDocument(r.executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get document", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocumentsByClaim retrieves all documents of a claim in upload order
func (r *ClaimRepository) ListDocumentsByClaim(ctx context.Context, claimID int64) ([]*entity.SupportingDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM supporting_documents WHERE claim_id = ? ORDER BY id`

	rows, err := r.executor(ctx).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.Int64("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.SupportingDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row rowScanner) (*entity.SupportingDocument, error) {
	var doc entity.SupportingDocument
	err := row.Scan(
		&doc.ID,
		&doc.ClaimID,
		&doc.OriginalFileName,
		&doc.StoredFileName,
		&doc.FileSize,
		&doc.FileType,
		&doc.UploadedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.UploadedAt = doc.UploadedAt.UTC()
	return &doc, nil
}

// DocumentKeyExists reports whether any document row references storedFileName
func (r *ClaimRepository) DocumentKeyExists(ctx context.Context, storedFileName string) (bool, error) {
	var exists bool
	err := r.executor(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM supporting_documents WHERE stored_file_name = ?)`,
		storedFileName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check document key: %w", err)
	}
	return exists, nil
}
