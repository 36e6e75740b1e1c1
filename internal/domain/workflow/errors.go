package workflow

import "errors"

// ErrInvalidTransition is returned when a state transition is not allowed
var ErrInvalidTransition = errors.New("invalid state transition")

// Guard failure messages surfaced to reviewers.
const (
	MsgAlreadyReviewed  = "This claim has already been reviewed."
	MsgCoordinatorFirst = "Claim must be verified by coordinator first."
)
