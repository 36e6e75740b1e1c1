package service

import (
	"context"
	"errors"

	"github.com/garyjia/claim-approval/internal/application/dispatcher"
	"github.com/garyjia/claim-approval/internal/application/port"
	"github.com/garyjia/claim-approval/internal/domain/entity"
	"github.com/garyjia/claim-approval/internal/domain/event"
	"github.com/garyjia/claim-approval/internal/domain/workflow"
	"go.uber.org/zap"
)

// MsgClaimNotFound is reported for review actions on absent claims
const MsgClaimNotFound = "Claim not found."

// Review actions reported on claim.reviewed events
const (
	ActionCoordinatorVerify = "coordinator_verify"
	ActionCoordinatorReject = "coordinator_reject"
	ActionManagerApprove    = "manager_approve"
	ActionManagerReject     = "manager_reject"
)

var actionByTrigger = map[workflow.Trigger]string{
	workflow.TriggerCoordinatorVerify: ActionCoordinatorVerify,
	workflow.TriggerCoordinatorReject: ActionCoordinatorReject,
	workflow.TriggerManagerApprove:    ActionManagerApprove,
	workflow.TriggerManagerReject:     ActionManagerReject,
}

// ReviewActions lists the review actions c accepts next, in trigger order.
func ReviewActions(c *entity.Claim) []string {
	triggers := workflow.AllowedTriggers(workflow.DecisionsOf(c))
	actions := make([]string, 0, len(triggers))
	for _, t := range triggers {
		actions = append(actions, actionByTrigger[t])
	}
	return actions
}

// ReviewService applies coordinator and manager decisions to claims
type ReviewService interface {
	CoordinatorVerify(ctx context.Context, claimID int64) (*entity.Claim, error)
	CoordinatorReject(ctx context.Context, claimID int64) (*entity.Claim, error)
	ManagerApprove(ctx context.Context, claimID int64) (*entity.Claim, error)
	ManagerReject(ctx context.Context, claimID int64) (*entity.Claim, error)

	// PendingForCoordinator lists undecided claims, oldest first.
	PendingForCoordinator(ctx context.Context) ([]*entity.Claim, error)
	// HistoryForCoordinator lists coordinator-decided claims, newest first.
	HistoryForCoordinator(ctx context.Context) ([]*entity.Claim, error)
	// PendingForManager lists coordinator-approved claims awaiting the manager, oldest first.
	PendingForManager(ctx context.Context) ([]*entity.Claim, error)
	// ClaimsForLecturer lists a lecturer's claims, newest first.
	ClaimsForLecturer(ctx context.Context, lecturerID int64) ([]*entity.Claim, error)
}

type reviewServiceImpl struct {
	claimRepo  port.ClaimRepository
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
}

// NewReviewService creates a new ReviewService. dispatcher may be nil.
func NewReviewService(claimRepo port.ClaimRepository, d dispatcher.Dispatcher, logger *zap.Logger) ReviewService {
	return &reviewServiceImpl{
		claimRepo:  claimRepo,
		dispatcher: d,
		logger:     logger,
	}
}

func (s *reviewServiceImpl) CoordinatorVerify(ctx context.Context, claimID int64) (*entity.Claim, error) {
	return s.review(ctx, claimID, workflow.TriggerCoordinatorVerify)
}

func (s *reviewServiceImpl) CoordinatorReject(ctx context.Context, claimID int64) (*entity.Claim, error) {
	return s.review(ctx, claimID, workflow.TriggerCoordinatorReject)
}

func (s *reviewServiceImpl) ManagerApprove(ctx context.Context, claimID int64) (*entity.Claim, error) {
	return s.review(ctx, claimID, workflow.TriggerManagerApprove)
}

func (s *reviewServiceImpl) ManagerReject(ctx context.Context, claimID int64) (*entity.Claim, error) {
	return s.review(ctx, claimID, workflow.TriggerManagerReject)
}

// review loads the claim, runs the trigger through the lifecycle and
// persists the result with a version-conditional write. A concurrent
// reviewer that saved first makes this call fail as already reviewed.
func (s *reviewServiceImpl) review(ctx context.Context, claimID int64, trigger workflow.Trigger) (*entity.Claim, error) {
	action := actionByTrigger[trigger]

	claim, err := s.claimRepo.FindClaim(ctx, claimID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, &entity.Error{Kind: entity.ErrNotFound, Message: MsgClaimNotFound, Err: err}
		}
		s.logger.Error("Failed to load claim for review", zap.Int64("claim_id", claimID), zap.Error(err))
		return nil, entity.NewStorageError("Error loading claim.", err)
	}

	next, state, err := workflow.Apply(ctx, workflow.DecisionsOf(claim), trigger)
	if err != nil {
		s.logger.Info("Review rejected by lifecycle",
			zap.Int64("claim_id", claimID),
			zap.String("action", action),
			zap.String("status", claim.Status),
			zap.Error(err))
		s.emitReview(ctx, claimID, action, "conflict", claim.Status)
		if errors.Is(err, workflow.ErrInconsistentDecisions) {
			return nil, entity.NewStorageError("Claim record is inconsistent.", err)
		}
		return nil, err
	}

	updated := *claim
	updated.CoordinatorDecision = next.Coordinator
	updated.ManagerDecision = next.Manager
	updated.Status = state.String()

	if err := s.claimRepo.SaveClaim(ctx, &updated); err != nil {
		switch {
		case errors.Is(err, entity.ErrStaleClaim):
			s.logger.Info("Review lost to concurrent reviewer",
				zap.Int64("claim_id", claimID),
				zap.String("action", action))
			s.emitReview(ctx, claimID, action, "conflict", claim.Status)
			return nil, &entity.Error{Kind: entity.ErrStateConflict, Message: workflow.MsgAlreadyReviewed, Err: err}
		case errors.Is(err, entity.ErrNotFound):
			return nil, &entity.Error{Kind: entity.ErrNotFound, Message: MsgClaimNotFound, Err: err}
		}
		s.logger.Error("Failed to save review", zap.Int64("claim_id", claimID), zap.Error(err))
		return nil, entity.NewStorageError("Error saving claim.", err)
	}

	s.logger.Info("Claim reviewed",
		zap.Int64("claim_id", claimID),
		zap.String("action", action),
		zap.String("status", updated.Status))
	s.emitReview(ctx, claimID, action, "success", updated.Status)
	return &updated, nil
}

func (s *reviewServiceImpl) PendingForCoordinator(ctx context.Context) ([]*entity.Claim, error) {
	return s.list(ctx, "coordinator pending", port.ClaimQuery{
		CoordinatorDecisions: []entity.Decision{entity.DecisionUndecided},
		Order:                port.OldestFirst,
	})
}

func (s *reviewServiceImpl) HistoryForCoordinator(ctx context.Context) ([]*entity.Claim, error) {
	return s.list(ctx, "coordinator history", port.ClaimQuery{
		CoordinatorDecisions: []entity.Decision{entity.DecisionApproved, entity.DecisionRejected},
		Order:                port.NewestFirst,
	})
}

func (s *reviewServiceImpl) PendingForManager(ctx context.Context) ([]*entity.Claim, error) {
	return s.list(ctx, "manager pending", port.ClaimQuery{
		CoordinatorDecisions: []entity.Decision{entity.DecisionApproved},
		ManagerDecisions:     []entity.Decision{entity.DecisionUndecided},
		Order:                port.OldestFirst,
	})
}

func (s *reviewServiceImpl) ClaimsForLecturer(ctx context.Context, lecturerID int64) ([]*entity.Claim, error) {
	claims, err := s.claimRepo.ListClaimsByLecturer(ctx, lecturerID)
	if err != nil {
		s.logger.Error("Failed to list lecturer claims", zap.Int64("lecturer_id", lecturerID), zap.Error(err))
		return nil, entity.NewStorageError(MsgClaimsFailed, err)
	}
	return claims, nil
}

func (s *reviewServiceImpl) list(ctx context.Context, name string, q port.ClaimQuery) ([]*entity.Claim, error) {
	claims, err := s.claimRepo.ListClaimsByStage(ctx, q)
	if err != nil {
		s.logger.Error("Failed to list claims", zap.String("listing", name), zap.Error(err))
		return nil, entity.NewStorageError(MsgClaimsFailed, err)
	}
	return claims, nil
}

func (s *reviewServiceImpl) emitReview(ctx context.Context, claimID int64, action, outcome, status string) {
	if s.dispatcher == nil {
		return
	}
	evt := event.NewEvent(event.TypeClaimReviewed, claimID, map[string]interface{}{
		event.KeyAction:  action,
		event.KeyOutcome: outcome,
		event.KeyStatus:  status,
	})
	if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
		s.logger.Warn("Failed to dispatch review event", zap.Int64("claim_id", claimID), zap.Error(err))
	}
}
