package workflow

// Trigger is a review action that can move a claim between states
type Trigger string

const (
	TriggerCoordinatorVerify Trigger = "COORDINATOR_VERIFY"
	TriggerCoordinatorReject Trigger = "COORDINATOR_REJECT"
	TriggerManagerApprove    Trigger = "MANAGER_APPROVE"
	TriggerManagerReject     Trigger = "MANAGER_REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsManagerAction reports whether the trigger belongs to the second review stage.
func (t Trigger) IsManagerAction() bool {
	return t == TriggerManagerApprove || t == TriggerManagerReject
}
