package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/claim-approval/internal/application/port"
	"github.com/garyjia/claim-approval/internal/domain/entity"
	"github.com/garyjia/claim-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/claim-approval/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(database.Migrations()))
	return db.DB
}

func createLecturer(t *testing.T, repo *LecturerRepository, email string) *entity.Lecturer {
	t.Helper()
	l := &entity.Lecturer{Name: "Test Lecturer", Email: email}
	require.NoError(t, repo.CreateLecturer(context.Background(), l))
	return l
}

func newClaim(lecturerID int64, submitted time.Time) *entity.Claim {
	return &entity.Claim{
		LecturerID:  lecturerID,
		HoursWorked: 10,
		HourlyRate:  decimal.RequireFromString("50.25"),
		Notes:       "October tutorials",
		SubmittedAt: submitted,
	}
}

func TestClaimRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	lecturers := NewLecturerRepository(db, zap.NewNop())
	claims := NewClaimRepository(db, zap.NewNop())

	lecturer := createLecturer(t, lecturers, "ada@uni.ac.za")
	claim := newClaim(lecturer.ID, time.Time{})
	require.NoError(t, claims.CreateClaim(ctx, claim))

	assert.NotZero(t, claim.ID)
	assert.Equal(t, int64(1), claim.Version)
	assert.Equal(t, entity.StatusPending, claim.Status)
	assert.False(t, claim.SubmittedAt.IsZero())

	doc := &entity.SupportingDocument{
		ClaimID:          claim.ID,
		OriginalFileName: "timesheet.pdf",
		StoredFileName:   "abc_timesheet.pdf",
		FileSize:         1024,
		FileType:         ".pdf",
	}
	require.NoError(t, claims.CreateDocument(ctx, doc))

	found, err := claims.FindClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, lecturer.ID, found.LecturerID)
	assert.Equal(t, 10, found.HoursWorked)
	assert.True(t, found.HourlyRate.Equal(decimal.RequireFromString("50.25")))
	assert.Equal(t, "October tutorials", found.Notes)
	assert.Equal(t, entity.DecisionUndecided, found.CoordinatorDecision)
	assert.Equal(t, entity.DecisionUndecided, found.ManagerDecision)
	assert.WithinDuration(t, claim.SubmittedAt, found.SubmittedAt, time.Millisecond)
	require.Len(t, found.Documents, 1)
	assert.Equal(t, "timesheet.pdf", found.Documents[0].OriginalFileName)

	gotDoc, err := claims.FindDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc_timesheet.pdf", gotDoc.StoredFileName)
	assert.Equal(t, int64(1024), gotDoc.FileSize)
}

func TestClaimRepository_NotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	claims := NewClaimRepository(db, zap.NewNop())
	lecturers := NewLecturerRepository(db, zap.NewNop())

	_, err := claims.FindClaim(ctx, 404)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = claims.FindDocument(ctx, 404)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	err = claims.DeleteClaim(ctx, 404)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	err = claims.SaveClaim(ctx, &entity.Claim{ID: 404, Version: 1, Status: entity.StatusPending,
		CoordinatorDecision: entity.DecisionUndecided, ManagerDecision: entity.DecisionUndecided})
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = lecturers.FindLecturer(ctx, 404)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestClaimRepository_SaveClaimIsConditional(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	lecturers := NewLecturerRepository(db, zap.NewNop())
	claims := NewClaimRepository(db, zap.NewNop())

	lecturer := createLecturer(t, lecturers, "grace@uni.ac.za")
	claim := newClaim(lecturer.ID, time.Now())
	require.NoError(t, claims.CreateClaim(ctx, claim))

	first, err := claims.FindClaim(ctx, claim.ID)
	require.NoError(t, err)
	second, err := claims.FindClaim(ctx, claim.ID)
	require.NoError(t, err)

	first.CoordinatorDecision = entity.DecisionApproved
	first.Status = entity.StatusPendingManagerReview
	require.NoError(t, claims.SaveClaim(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.CoordinatorDecision = entity.DecisionRejected
	second.Status = entity.StatusRejectedByCoordinator
	err = claims.SaveClaim(ctx, second)
	assert.ErrorIs(t, err, entity.ErrStaleClaim)

	stored, err := claims.FindClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DecisionApproved, stored.CoordinatorDecision)
	assert.Equal(t, entity.StatusPendingManagerReview, stored.Status)
}

func TestClaimRepository_ListClaimsByStage(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	lecturers := NewLecturerRepository(db, zap.NewNop())
	claims := NewClaimRepository(db, zap.NewNop())

	lecturer := createLecturer(t, lecturers, "alan@uni.ac.za")
	other := createLecturer(t, lecturers, "edsger@uni.ac.za")
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	pending := newClaim(lecturer.ID, base)
	verified := newClaim(lecturer.ID, base.Add(time.Hour))
	rejected := newClaim(other.ID, base.Add(2*time.Hour))
	for _, c := range []*entity.Claim{pending, verified, rejected} {
		require.NoError(t, claims.CreateClaim(ctx, c))
	}

	verified.CoordinatorDecision = entity.DecisionApproved
	verified.Status = entity.StatusPendingManagerReview
	require.NoError(t, claims.SaveClaim(ctx, verified))
	rejected.CoordinatorDecision = entity.DecisionRejected
	rejected.Status = entity.StatusRejectedByCoordinator
	require.NoError(t, claims.SaveClaim(ctx, rejected))

	require.NoError(t, claims.CreateDocument(ctx, &entity.SupportingDocument{
		ClaimID: verified.ID, OriginalFileName: "a.pdf", StoredFileName: "k1_a.pdf", FileSize: 1, FileType: ".pdf",
	}))

	got, err := claims.ListClaimsByStage(ctx, port.ClaimQuery{
		CoordinatorDecisions: []entity.Decision{entity.DecisionUndecided},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pending.ID, got[0].ID)

	got, err = claims.ListClaimsByStage(ctx, port.ClaimQuery{
		CoordinatorDecisions: []entity.Decision{entity.DecisionApproved, entity.DecisionRejected},
		Order:                port.NewestFirst,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rejected.ID, got[0].ID)
	assert.Equal(t, verified.ID, got[1].ID)
	require.Len(t, got[1].Documents, 1)
	assert.Empty(t, got[0].Documents)

	got, err = claims.ListClaimsByStage(ctx, port.ClaimQuery{
		CoordinatorDecisions: []entity.Decision{entity.DecisionApproved},
		ManagerDecisions:     []entity.Decision{entity.DecisionUndecided},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, verified.ID, got[0].ID)

	got, err = claims.ListClaimsByLecturer(ctx, lecturer.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, verified.ID, got[0].ID, "newest first")

	got, err = claims.ListClaimsByLecturer(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClaimRepository_DeleteCascadesDocuments(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	lecturers := NewLecturerRepository(db, zap.NewNop())
	claims := NewClaimRepository(db, zap.NewNop())

	lecturer := createLecturer(t, lecturers, "barbara@uni.ac.za")
	claim := newClaim(lecturer.ID, time.Now())
	require.NoError(t, claims.CreateClaim(ctx, claim))
	doc := &entity.SupportingDocument{ClaimID: claim.ID, OriginalFileName: "a.xlsx", StoredFileName: "k_a.xlsx", FileSize: 5, FileType: ".xlsx"}
	require.NoError(t, claims.CreateDocument(ctx, doc))

	require.NoError(t, claims.DeleteClaim(ctx, claim.ID))

	_, err := claims.FindDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestClaimRepository_TransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tx := sqlite.NewDB(db, zap.NewNop())
	lecturers := NewLecturerRepository(db, zap.NewNop())
	claims := NewClaimRepository(db, zap.NewNop())

	lecturer := createLecturer(t, lecturers, "ken@uni.ac.za")
	var claimID int64
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		claim := newClaim(lecturer.ID, time.Now())
		if err := claims.CreateClaim(ctx, claim); err != nil {
			return err
		}
		claimID = claim.ID
		return claims.CreateDocument(ctx, &entity.SupportingDocument{ClaimID: claim.ID, OriginalFileName: "x.pdf",
			StoredFileName: "dup", FileSize: 0, FileType: ".pdf"})
	})
	require.Error(t, err, "zero file size violates the schema")

	_, err = claims.FindClaim(ctx, claimID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestLecturerRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewLecturerRepository(db, zap.NewNop())

	zoe := createLecturer(t, repo, "Zoe@Uni.ac.za")
	createLecturer(t, repo, "adam@uni.ac.za")

	found, err := repo.FindLecturerByEmail(ctx, "zoe@uni.AC.ZA")
	require.NoError(t, err)
	assert.Equal(t, zoe.ID, found.ID)
	assert.Equal(t, "Zoe@Uni.ac.za", found.Email)

	_, err = repo.FindLecturerByEmail(ctx, "nobody@uni.ac.za")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	err = repo.CreateLecturer(ctx, &entity.Lecturer{Name: "Clone", Email: "ZOE@uni.ac.za"})
	assert.ErrorIs(t, err, port.ErrDuplicate)

	all, err := repo.ListLecturers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestClaimRepository_DocumentKeyExists(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	lecturers := NewLecturerRepository(db, zap.NewNop())
	claims := NewClaimRepository(db, zap.NewNop())

	lecturer := createLecturer(t, lecturers, "key@uni.ac.za")
	claim := newClaim(lecturer.ID, time.Time{})
	require.NoError(t, claims.CreateClaim(ctx, claim))
	require.NoError(t, claims.CreateDocument(ctx, &entity.SupportingDocument{
		ClaimID:          claim.ID,
		OriginalFileName: "hours.xlsx",
		StoredFileName:   "k1_hours.xlsx",
		FileSize:         10,
		FileType:         ".xlsx",
	}))

	exists, err := claims.DocumentKeyExists(ctx, "k1_hours.xlsx")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = claims.DocumentKeyExists(ctx, "orphan.pdf")
	require.NoError(t, err)
	assert.False(t, exists)
}
