package entity

import "fmt"

// Decision is a reviewer's verdict on a claim. A decided value is final.
type Decision string

const (
	DecisionUndecided Decision = "UNDECIDED"
	DecisionApproved  Decision = "APPROVED"
	DecisionRejected  Decision = "REJECTED"
)

// IsDecided reports whether a reviewer has acted.
func (d Decision) IsDecided() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// IsValid returns true for the three known decisions
func (d Decision) IsValid() bool {
	switch d {
	case DecisionUndecided, DecisionApproved, DecisionRejected:
		return true
	}
	return false
}

// String returns the string representation of the decision
func (d Decision) String() string {
	return string(d)
}

// ParseDecision converts a stored value back into a Decision.
func ParseDecision(s string) (Decision, error) {
	d := Decision(s)
	if !d.IsValid() {
		return "", fmt.Errorf("unknown decision %q", s)
	}
	return d, nil
}
