package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/claim-approval/internal/application/dispatcher"
	"github.com/garyjia/claim-approval/internal/domain/entity"
	"github.com/garyjia/claim-approval/internal/domain/event"
	"github.com/garyjia/claim-approval/internal/domain/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedClaim(t *testing.T, repo *memClaimRepo, lecturerID int64, submitted time.Time) *entity.Claim {
	t.Helper()
	c := &entity.Claim{
		LecturerID:          lecturerID,
		HoursWorked:         10,
		HourlyRate:          decimal.NewFromInt(50),
		SubmittedAt:         submitted,
		Status:              entity.StatusPending,
		CoordinatorDecision: entity.DecisionUndecided,
		ManagerDecision:     entity.DecisionUndecided,
	}
	require.NoError(t, repo.CreateClaim(context.Background(), c))
	return c
}

func messageOf(t *testing.T, err error) string {
	t.Helper()
	var typed *entity.Error
	require.ErrorAs(t, err, &typed)
	return typed.Message
}

func TestReviewService_CoordinatorVerifyThenVerifyAgain(t *testing.T) {
	repo := newMemClaimRepo()
	svc := NewReviewService(repo, nil, zap.NewNop())
	ctx := context.Background()
	claim := seedClaim(t, repo, 1, time.Now())

	updated, err := svc.CoordinatorVerify(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingManagerReview, updated.Status)
	assert.Equal(t, entity.DecisionApproved, updated.CoordinatorDecision)

	_, err = svc.CoordinatorVerify(ctx, claim.ID)
	assert.ErrorIs(t, err, entity.ErrStateConflict)
	assert.Equal(t, workflow.MsgAlreadyReviewed, messageOf(t, err))

	stored, err := repo.FindClaim(ctx, claim.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingManagerReview, stored.Status)
}

func TestReviewService_ManagerRequiresCoordinator(t *testing.T) {
	repo := newMemClaimRepo()
	svc := NewReviewService(repo, nil, zap.NewNop())
	ctx := context.Background()

	pending := seedClaim(t, repo, 1, time.Now())
	_, err := svc.ManagerApprove(ctx, pending.ID)
	assert.ErrorIs(t, err, entity.ErrStateConflict)
	assert.Equal(t, workflow.MsgCoordinatorFirst, messageOf(t, err))

	rejected := seedClaim(t, repo, 1, time.Now())
	_, err = svc.CoordinatorReject(ctx, rejected.ID)
	require.NoError(t, err)
	_, err = svc.ManagerReject(ctx, rejected.ID)
	assert.Equal(t, workflow.MsgCoordinatorFirst, messageOf(t, err))

	stored, err := repo.FindClaim(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejectedByCoordinator, stored.Status)
	assert.Equal(t, entity.DecisionUndecided, stored.ManagerDecision)
}

func TestReviewService_FullPaths(t *testing.T) {
	repo := newMemClaimRepo()
	svc := NewReviewService(repo, nil, zap.NewNop())
	ctx := context.Background()

	approved := seedClaim(t, repo, 1, time.Now())
	_, err := svc.CoordinatorVerify(ctx, approved.ID)
	require.NoError(t, err)
	got, err := svc.ManagerApprove(ctx, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, got.Status)

	_, err = svc.ManagerReject(ctx, approved.ID)
	assert.Equal(t, workflow.MsgAlreadyReviewed, messageOf(t, err))

	rejected := seedClaim(t, repo, 1, time.Now())
	_, err = svc.CoordinatorVerify(ctx, rejected.ID)
	require.NoError(t, err)
	got, err = svc.ManagerReject(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejectedByManager, got.Status)
	assert.Equal(t, entity.DecisionRejected, got.ManagerDecision)
}

func TestReviewService_NotFound(t *testing.T) {
	svc := NewReviewService(newMemClaimRepo(), nil, zap.NewNop())

	_, err := svc.CoordinatorReject(context.Background(), 77)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Equal(t, MsgClaimNotFound, messageOf(t, err))
}

func TestReviewService_StaleSaveIsAlreadyReviewed(t *testing.T) {
	repo := newMemClaimRepo()
	repo.saveClaimFunc = func(ctx context.Context, claim *entity.Claim) error {
		return entity.ErrStaleClaim
	}
	svc := NewReviewService(repo, nil, zap.NewNop())
	claim := seedClaim(t, repo, 1, time.Now())

	_, err := svc.CoordinatorVerify(context.Background(), claim.ID)
	assert.ErrorIs(t, err, entity.ErrStateConflict)
	assert.Equal(t, workflow.MsgAlreadyReviewed, messageOf(t, err))
}

func TestReviewService_RepositoryFailure(t *testing.T) {
	repo := newMemClaimRepo()
	repo.findClaimFunc = func(ctx context.Context, id int64) (*entity.Claim, error) {
		return nil, errors.New("database is locked")
	}
	svc := NewReviewService(repo, nil, zap.NewNop())

	_, err := svc.CoordinatorVerify(context.Background(), 1)
	assert.ErrorIs(t, err, entity.ErrStorage)
}

func TestReviewService_InconsistentRecord(t *testing.T) {
	repo := newMemClaimRepo()
	claim := seedClaim(t, repo, 1, time.Now())
	repo.claims[claim.ID].ManagerDecision = entity.DecisionApproved

	svc := NewReviewService(repo, nil, zap.NewNop())
	_, err := svc.ManagerApprove(context.Background(), claim.ID)
	assert.ErrorIs(t, err, entity.ErrStorage)
	assert.ErrorIs(t, err, workflow.ErrInconsistentDecisions)
}

// Many reviewers race on one pending claim: exactly one wins and every
// other request is told the claim was already reviewed.
func TestReviewService_ConcurrentReviewsOneWinner(t *testing.T) {
	repo := newMemClaimRepo()
	svc := NewReviewService(repo, nil, zap.NewNop())
	claim := seedClaim(t, repo, 1, time.Now())

	const reviewers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			var err error
			if i%2 == 0 {
				_, err = svc.CoordinatorVerify(context.Background(), claim.ID)
			} else {
				_, err = svc.CoordinatorReject(context.Background(), claim.ID)
			}
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, entity.ErrStateConflict) {
				conflicts++
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, reviewers-1, conflicts)

	stored, err := repo.FindClaim(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version, "exactly one write landed")
}

func TestReviewService_Listings(t *testing.T) {
	repo := newMemClaimRepo()
	svc := NewReviewService(repo, nil, zap.NewNop())
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	oldest := seedClaim(t, repo, 1, base)
	middle := seedClaim(t, repo, 2, base.Add(time.Hour))
	newest := seedClaim(t, repo, 1, base.Add(2*time.Hour))
	verified := seedClaim(t, repo, 2, base.Add(3*time.Hour))

	_, err := svc.CoordinatorReject(ctx, middle.ID)
	require.NoError(t, err)
	_, err = svc.CoordinatorVerify(ctx, verified.ID)
	require.NoError(t, err)

	pending, err := svc.PendingForCoordinator(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{oldest.ID, newest.ID}, claimIDs(pending))

	history, err := svc.HistoryForCoordinator(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{verified.ID, middle.ID}, claimIDs(history))

	managerQueue, err := svc.PendingForManager(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{verified.ID}, claimIDs(managerQueue))

	mine, err := svc.ClaimsForLecturer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{newest.ID, oldest.ID}, claimIDs(mine))
}

func TestReviewService_EmitsReviewEvents(t *testing.T) {
	repo := newMemClaimRepo()
	d := dispatcher.NewDispatcher()
	var outcomes []string
	d.Subscribe(event.TypeClaimReviewed, func(ctx context.Context, evt *event.Event) error {
		outcomes = append(outcomes, evt.GetPayloadString(event.KeyAction)+"/"+evt.GetPayloadString(event.KeyOutcome))
		return nil
	})
	svc := NewReviewService(repo, d, zap.NewNop())
	claim := seedClaim(t, repo, 1, time.Now())

	_, _ = svc.CoordinatorVerify(context.Background(), claim.ID)
	_, _ = svc.CoordinatorVerify(context.Background(), claim.ID)

	assert.Equal(t, []string{"coordinator_verify/success", "coordinator_verify/conflict"}, outcomes)
}

func claimIDs(claims []*entity.Claim) []int64 {
	ids := make([]int64, 0, len(claims))
	for _, c := range claims {
		ids = append(ids, c.ID)
	}
	return ids
}
