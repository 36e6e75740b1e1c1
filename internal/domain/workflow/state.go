package workflow

import "github.com/garyjia/claim-approval/internal/domain/entity"

// State is a claim status label in the two-stage review lifecycle
type State string

const (
	StatePending               State = entity.StatusPending
	StatePendingManagerReview  State = entity.StatusPendingManagerReview
	StateApproved              State = entity.StatusApproved
	StateRejectedByCoordinator State = entity.StatusRejectedByCoordinator
	StateRejectedByManager     State = entity.StatusRejectedByManager
)

var validStates = map[State]bool{
	StatePending:               true,
	StatePendingManagerReview:  true,
	StateApproved:              true,
	StateRejectedByCoordinator: true,
	StateRejectedByManager:     true,
}

var terminalStates = map[State]bool{
	StateApproved:              true,
	StateRejectedByCoordinator: true,
	StateRejectedByManager:     true,
}

// IsTerminal returns true if no transition leaves the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the status label
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known status label
func (s State) IsValid() bool {
	return validStates[s]
}
