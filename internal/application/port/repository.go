package port

import (
	"context"
	"errors"

	"github.com/garyjia/claim-approval/internal/domain/entity"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint
var ErrDuplicate = errors.New("duplicate record")

// SortOrder orders claim listings by submission time
type SortOrder int

const (
	OldestFirst SortOrder = iota
	NewestFirst
)

// ClaimQuery filters claims by review stage. Empty decision slices match any value.
type ClaimQuery struct {
	CoordinatorDecisions []entity.Decision
	ManagerDecisions     []entity.Decision
	LecturerID           int64
	Order                SortOrder
}

// ClaimRepository persists claims and their supporting documents.
// Lookups of absent rows return an error wrapping entity.ErrNotFound.
type ClaimRepository interface {
	CreateClaim(ctx context.Context, claim *entity.Claim) error
	FindClaim(ctx context.Context, id int64) (*entity.Claim, error)

	// SaveClaim persists status and decisions only if claim.Version still
	// matches the stored row, then bumps claim.Version. A mismatch returns
	// entity.ErrStaleClaim.
	SaveClaim(ctx context.Context, claim *entity.Claim) error

	// DeleteClaim removes a claim and, by cascade, its documents.
	DeleteClaim(ctx context.Context, id int64) error

	ListClaimsByLecturer(ctx context.Context, lecturerID int64) ([]*entity.Claim, error)
	ListClaimsByStage(ctx context.Context, query ClaimQuery) ([]*entity.Claim, error)

	CreateDocument(ctx context.Context, doc *entity.SupportingDocument) error
	FindDocument(ctx context.Context, id int64) (*entity.SupportingDocument, error)
	ListDocumentsByClaim(ctx context.Context, claimID int64) ([]*entity.SupportingDocument, error)
}

// LecturerRepository persists lecturers
type LecturerRepository interface {
	// CreateLecturer returns ErrDuplicate when the email is already taken.
	CreateLecturer(ctx context.Context, lecturer *entity.Lecturer) error
	FindLecturer(ctx context.Context, id int64) (*entity.Lecturer, error)

	// FindLecturerByEmail compares case-insensitively.
	FindLecturerByEmail(ctx context.Context, email string) (*entity.Lecturer, error)
	ListLecturers(ctx context.Context) ([]*entity.Lecturer, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
