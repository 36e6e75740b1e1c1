package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Claim is a lecturer's request for payment of worked hours.
type Claim struct {
	ID                  int64                 `json:"id"`
	LecturerID          int64                 `json:"lecturer_id"`
	HoursWorked         int                   `json:"hours_worked"`
	HourlyRate          decimal.Decimal       `json:"hourly_rate"`
	Notes               string                `json:"notes,omitempty"`
	SubmittedAt         time.Time             `json:"submitted_at"`
	Status              string                `json:"status"`
	CoordinatorDecision Decision              `json:"coordinator_decision"`
	ManagerDecision     Decision              `json:"manager_decision"`
	Version             int64                 `json:"-"`
	Documents           []*SupportingDocument `json:"documents,omitempty"`
}

// Total is hours worked times hourly rate. It is never persisted.
func (c *Claim) Total() decimal.Decimal {
	return c.HourlyRate.Mul(decimal.NewFromInt(int64(c.HoursWorked)))
}

// IsTerminal returns true once no further review action can apply.
func (c *Claim) IsTerminal() bool {
	if c.CoordinatorDecision == DecisionRejected {
		return true
	}
	return c.ManagerDecision.IsDecided()
}
