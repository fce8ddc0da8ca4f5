package workflow

// Trigger represents an action that drives an expense status transition
type Trigger string

const (
	TriggerSubmit      Trigger = "SUBMIT"
	TriggerAutoApprove Trigger = "AUTO_APPROVE"
	TriggerApprove     Trigger = "APPROVE"
	TriggerAdvance     Trigger = "ADVANCE"
	TriggerReject      Trigger = "REJECT"
	TriggerReimburse   Trigger = "REIMBURSE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
