package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/claim-approval/internal/application/port"
	"github.com/garyjia/claim-approval/internal/domain/entity"
	"github.com/garyjia/claim-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const claimColumns = `id, lecturer_id, hours_worked, hourly_rate, notes, submitted_at,
	status, coordinator_decision, manager_decision, version`

// ClaimRepository implements port.ClaimRepository
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) *ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

// CreateClaim inserts a new claim. Unset decisions default to undecided,
// SubmittedAt defaults to now and Version starts at 1.
func (r *ClaimRepository) CreateClaim(ctx context.Context, claim *entity.Claim) error {
	if claim.SubmittedAt.IsZero() {
		claim.SubmittedAt = time.Now()
	}
	claim.SubmittedAt = claim.SubmittedAt.UTC()
	if claim.CoordinatorDecision == "" {
		claim.CoordinatorDecision = entity.DecisionUndecided
	}
	if claim.ManagerDecision == "" {
		claim.ManagerDecision = entity.DecisionUndecided
	}
	if claim.Status == "" {
		claim.Status = entity.StatusPending
	}
	claim.Version = 1

	query := `
		INSERT INTO claims (
			lecturer_id, hours_worked, hourly_rate, notes, submitted_at,
			status, coordinator_decision, manager_decision, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.executor(ctx).ExecContext(ctx, query,
		claim.LecturerID,
		claim.HoursWorked,
		claim.HourlyRate.StringFixed(entity.RateScale),
		claim.Notes,
		claim.SubmittedAt,
		claim.Status,
		string(claim.CoordinatorDecision),
		string(claim.ManagerDecision),
		claim.Version,
	)
	if err != nil {
		r.logger.Error("Failed to create claim", zap.Int64("lecturer_id", claim.LecturerID), zap.Error(err))
		return fmt.Errorf("failed to create claim: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	claim.ID = id
	return nil
}

// FindClaim retrieves a claim with its documents
func (r *ClaimRepository) FindClaim(ctx context.Context, id int64) (*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`

	claim, err := scanClaim(r.executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get claim", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	docs, err := r.ListDocumentsByClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	claim.Documents = docs
	return claim, nil
}

// SaveClaim writes status and decisions conditionally on the version the
// caller loaded, so two reviewers racing on the same claim cannot both win.
func (r *ClaimRepository) SaveClaim(ctx context.Context, claim *entity.Claim) error {
	query := `
		UPDATE claims
		SET status = ?, coordinator_decision = ?, manager_decision = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.executor(ctx).ExecContext(ctx, query,
		claim.Status,
		string(claim.CoordinatorDecision),
		string(claim.ManagerDecision),
		claim.ID,
		claim.Version,
	)
	if err != nil {
		r.logger.Error("Failed to save claim", zap.Int64("id", claim.ID), zap.Error(err))
		return fmt.Errorf("failed to save claim: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.claimExists(ctx, claim.ID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("claim %d: %w", claim.ID, entity.ErrNotFound)
		}
		r.logger.Warn("Claim update lost to concurrent writer",
			zap.Int64("id", claim.ID),
			zap.Int64("version", claim.Version))
		return fmt.Errorf("claim %d at version %d: %w", claim.ID, claim.Version, entity.ErrStaleClaim)
	}

	claim.Version++
	return nil
}

// DeleteClaim removes a claim; its documents go with it by cascade
func (r *ClaimRepository) DeleteClaim(ctx context.Context, id int64) error {
	result, err := r.executor(ctx).ExecContext(ctx, `DELETE FROM claims WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete claim", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete claim: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("claim %d: %w", id, entity.ErrNotFound)
	}
	return nil
}

// ListClaimsByLecturer returns a lecturer's claims, newest first
func (r *ClaimRepository) ListClaimsByLecturer(ctx context.Context, lecturerID int64) ([]*entity.Claim, error) {
	return r.ListClaimsByStage(ctx, port.ClaimQuery{LecturerID: lecturerID, Order: port.NewestFirst})
}

// ListClaimsByStage returns claims whose decisions fall in the query's sets
func (r *ClaimRepository) ListClaimsByStage(ctx context.Context, q port.ClaimQuery) ([]*entity.Claim, error) {
	var (
		where []string
		args  []interface{}
	)
	if len(q.CoordinatorDecisions) > 0 {
		where = append(where, "coordinator_decision IN ("+placeholders(len(q.CoordinatorDecisions))+")")
		for _, d := range q.CoordinatorDecisions {
			args = append(args, string(d))
		}
	}
	if len(q.ManagerDecisions) > 0 {
		where = append(where, "manager_decision IN ("+placeholders(len(q.ManagerDecisions))+")")
		for _, d := range q.ManagerDecisions {
			args = append(args, string(d))
		}
	}
	if q.LecturerID != 0 {
		where = append(where, "lecturer_id = ?")
		args = append(args, q.LecturerID)
	}

	query := `SELECT ` + claimColumns + ` FROM claims`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Order == port.NewestFirst {
		query += " ORDER BY submitted_at DESC, id DESC"
	} else {
		query += " ORDER BY submitted_at ASC, id ASC"
	}

	rows, err := r.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []*entity.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claims: %w", err)
	}
	rows.Close()

	if err := r.attachDocuments(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// attachDocuments loads documents for all claims in one query
func (r *ClaimRepository) attachDocuments(ctx context.Context, claims []*entity.Claim) error {
	if len(claims) == 0 {
		return nil
	}

	byClaim := make(map[int64]*entity.Claim, len(claims))
	args := make([]interface{}, 0, len(claims))
	for _, c := range claims {
		byClaim[c.ID] = c
		args = append(args, c.ID)
	}

	query := `SELECT ` + documentColumns + ` FROM supporting_documents
		WHERE claim_id IN (` + placeholders(len(args)) + `) ORDER BY id`

	rows, err := r.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to load claim documents", zap.Error(err))
		return fmt.Errorf("failed to load documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return fmt.Errorf("failed to scan document: %w", err)
		}
		if c, ok := byClaim[doc.ClaimID]; ok {
			c.Documents = append(c.Documents, doc)
		}
	}
	return rows.Err()
}

func (r *ClaimRepository) claimExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.executor(ctx).QueryRowContext(ctx, `SELECT 1 FROM claims WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check claim: %w", err)
	}
	return true, nil
}

func (r *ClaimRepository) executor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*entity.Claim, error) {
	var (
		claim       entity.Claim
		coordinator string
		manager     string
	)
	err := row.Scan(
		&claim.ID,
		&claim.LecturerID,
		&claim.HoursWorked,
		&claim.HourlyRate,
		&claim.Notes,
		&claim.SubmittedAt,
		&claim.Status,
		&coordinator,
		&manager,
		&claim.Version,
	)
	if err != nil {
		return nil, err
	}

	if claim.CoordinatorDecision, err = entity.ParseDecision(coordinator); err != nil {
		return nil, err
	}
	if claim.ManagerDecision, err = entity.ParseDecision(manager); err != nil {
		return nil, err
	}
	claim.SubmittedAt = claim.SubmittedAt.UTC()
	return &claim, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var _ port.ClaimRepository = (*ClaimRepository)(nil)
