package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/claim-approval/internal/domain/entity"
)

// ErrInconsistentDecisions is returned for decision pairs no transition can produce,
// such as a manager verdict on a claim the coordinator never approved.
var ErrInconsistentDecisions = errors.New("inconsistent review decisions")

// Decisions is the (coordinator, manager) pair that fully determines a claim's state.
type Decisions struct {
	Coordinator entity.Decision
	Manager     entity.Decision
}

// DecisionsOf reads the decision pair off a claim.
func DecisionsOf(c *entity.Claim) Decisions {
	return Decisions{Coordinator: c.CoordinatorDecision, Manager: c.ManagerDecision}
}

// InitialDecisions is the pair every new claim starts with.
func InitialDecisions() Decisions {
	return Decisions{Coordinator: entity.DecisionUndecided, Manager: entity.DecisionUndecided}
}

var decisionsByState = map[State]Decisions{
	StatePending:               {entity.DecisionUndecided, entity.DecisionUndecided},
	StateRejectedByCoordinator: {entity.DecisionRejected, entity.DecisionUndecided},
	StatePendingManagerReview:  {entity.DecisionApproved, entity.DecisionUndecided},
	StateApproved:              {entity.DecisionApproved, entity.DecisionApproved},
	StateRejectedByManager:     {entity.DecisionApproved, entity.DecisionRejected},
}

// StateOf maps a decision pair to its status label.
func StateOf(d Decisions) (State, error) {
	for state, pair := range decisionsByState {
		if pair == d {
			return state, nil
		}
	}
	return "", fmt.Errorf("%w: coordinator=%s manager=%s", ErrInconsistentDecisions, d.Coordinator, d.Manager)
}

// lifecycle is built in init: Configure consults validStates through an
// interface call, which package variable ordering does not see.
var lifecycle StateMachineBuilder

func init() {
	lifecycle = newLifecycle()
}

func newLifecycle() StateMachineBuilder {
	b := NewBuilder()

	b.Configure(StatePending).
		Permit(TriggerCoordinatorVerify, StatePendingManagerReview).
		Permit(TriggerCoordinatorReject, StateRejectedByCoordinator)

	b.Configure(StatePendingManagerReview).
		Permit(TriggerManagerApprove, StateApproved).
		Permit(TriggerManagerReject, StateRejectedByManager)

	return b
}

// NewClaimMachine returns a lifecycle machine positioned at the claim's current state.
func NewClaimMachine(d Decisions) (StateMachine, error) {
	state, err := StateOf(d)
	if err != nil {
		return nil, err
	}
	return lifecycle.Build(state), nil
}

// AllowedTriggers lists the review actions a claim with decisions d accepts
// next, sorted. Terminal and inconsistent pairs yield an empty list.
func AllowedTriggers(d Decisions) []Trigger {
	machine, err := NewClaimMachine(d)
	if err != nil {
		return []Trigger{}
	}
	return machine.PermittedTriggers()
}

// Apply runs trigger against the decision pair and returns the resulting pair
// and status label. Guard failures come back as entity.ErrStateConflict with
// the reviewer-facing message; d is never modified.
func Apply(ctx context.Context, d Decisions, trigger Trigger) (Decisions, State, error) {
	machine, err := NewClaimMachine(d)
	if err != nil {
		return d, "", err
	}

	from := machine.State()
	if err := machine.Fire(ctx, trigger); err != nil {
		return d, from, guardError(d, trigger, err)
	}

	to := machine.State()
	return decisionsByState[to], to, nil
}

// The coordinator-first guard takes precedence over already-reviewed for
// manager actions.
func guardError(d Decisions, trigger Trigger, cause error) error {
	msg := MsgAlreadyReviewed
	if trigger.IsManagerAction() && d.Coordinator != entity.DecisionApproved {
		msg = MsgCoordinatorFirst
	}
	return &entity.Error{Kind: entity.ErrStateConflict, Message: msg, Err: cause}
}
