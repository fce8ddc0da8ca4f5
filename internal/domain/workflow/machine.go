package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

// Machine applies workflow transitions to expense snapshots. Every method
// takes the current snapshot and returns a new one; nothing is mutated in
// place, so the storage layer can pair each result with an optimistic
// version check.
type Machine struct {
	lifecycle *Lifecycle
}

// NewMachine creates a machine over the reimbursement lifecycle
func NewMachine() *Machine {
	return &Machine{lifecycle: ExpenseLifecycle()}
}

// Submit moves a draft expense into the approval chain. An empty chain
// auto-approves immediately; otherwise the expense becomes pending with
// step 0 active.
func (m *Machine) Submit(e *entity.Expense, actorID string, now time.Time) (*entity.Expense, error) {
	if actorID != e.EmployeeID {
		return nil, ErrNotOwner
	}
	if e.Status != entity.StatusDraft {
		return nil, fmt.Errorf("%w: cannot submit from status %s", entity.ErrInvalidState, e.Status)
	}

	next := e.Clone()
	next.SubmittedAt = &now

	if len(next.Workflow.Steps) == 0 {
		status, err := m.lifecycle.Fire(next.Status, TriggerAutoApprove)
		if err != nil {
			return nil, err
		}
		next.Status = status
		finalizeApproved(next, now)
		return next, nil
	}

	status, err := m.lifecycle.Fire(next.Status, TriggerSubmit)
	if err != nil {
		return nil, err
	}
	next.Status = status
	next.UpdatedAt = now
	return next, nil
}

// Approve records the active approver's decision. The chain either advances
// to the next step, or finalizes as approved when the last step (or the
// percentage threshold) is reached.
func (m *Machine) Approve(e *entity.Expense, actorID, comments string, now time.Time) (*entity.Expense, error) {
	if err := m.checkActionable(e, actorID); err != nil {
		return nil, err
	}

	next := e.Clone()
	step := next.Workflow.ActiveStep()
	step.Status = entity.StepApproved
	step.Comments = comments
	step.ProcessedAt = &now

	if m.thresholdReached(&next.Workflow) || next.Workflow.CurrentStep+1 >= len(next.Workflow.Steps) {
		status, err := m.lifecycle.Fire(next.Status, TriggerApprove)
		if err != nil {
			return nil, err
		}
		next.Status = status
		finalizeApproved(next, now)
		return next, nil
	}

	status, err := m.lifecycle.Fire(next.Status, TriggerAdvance)
	if err != nil {
		return nil, err
	}
	next.Status = status
	next.Workflow.CurrentStep++
	next.UpdatedAt = now
	return next, nil
}

// Reject records a rejection on the active step and terminates the whole
// chain. Rejection is never partial and never advances to a later step.
func (m *Machine) Reject(e *entity.Expense, actorID, comments string, now time.Time) (*entity.Expense, error) {
	if strings.TrimSpace(comments) == "" {
		return nil, ErrCommentsRequired
	}
	if err := m.checkActionable(e, actorID); err != nil {
		return nil, err
	}

	next := e.Clone()
	step := next.Workflow.ActiveStep()
	step.Status = entity.StepRejected
	step.Comments = comments
	step.ProcessedAt = &now

	status, err := m.lifecycle.Fire(next.Status, TriggerReject)
	if err != nil {
		return nil, err
	}
	next.Status = status
	next.RejectedAt = &now
	next.Workflow.CompletedAt = &now
	next.Workflow.FinalStatus = entity.StatusRejected
	next.UpdatedAt = now
	return next, nil
}

// Reimburse marks an approved expense as paid out. Payment execution itself
// happens outside the engine.
func (m *Machine) Reimburse(e *entity.Expense, now time.Time) (*entity.Expense, error) {
	next := e.Clone()
	status, err := m.lifecycle.Fire(next.Status, TriggerReimburse)
	if err != nil {
		return nil, err
	}
	next.Status = status
	next.UpdatedAt = now
	return next, nil
}

// CurrentApprover returns the approver id of the active step, or empty when
// the chain has none.
func (m *Machine) CurrentApprover(e *entity.Expense) string {
	step := e.Workflow.ActiveStep()
	if step == nil {
		return ""
	}
	return step.ApproverID
}

// NextApprover returns the approver id of the step after the active one
func (m *Machine) NextApprover(e *entity.Expense) string {
	step := e.Workflow.NextStep()
	if step == nil {
		return ""
	}
	return step.ApproverID
}

// CanActOn reports whether the user may approve or reject the expense right
// now: the expense is pending and the user owns the active pending step.
func (m *Machine) CanActOn(e *entity.Expense, userID string) bool {
	if e.Status != entity.StatusPendingApproval {
		return false
	}
	step := e.Workflow.ActiveStep()
	return step != nil && step.Status == entity.StepPending && step.ApproverID == userID
}

// checkActionable validates the shared approve/reject preconditions
func (m *Machine) checkActionable(e *entity.Expense, actorID string) error {
	if e.Status != entity.StatusPendingApproval {
		return fmt.Errorf("%w: cannot act from status %s", entity.ErrInvalidState, e.Status)
	}
	step := e.Workflow.ActiveStep()
	if step == nil || step.Status != entity.StepPending {
		return ErrNoActiveStep
	}
	if step.ApproverID != actorID {
		return ErrNotActiveApprover
	}
	return nil
}

// thresholdReached is true when a percentage policy chain has collected
// enough approvals to finalize early. The freshly approved step must already
// be counted by the caller.
func (m *Machine) thresholdReached(w *entity.ApprovalWorkflow) bool {
	if w.Policy != entity.PolicyPercentage || w.RequiredPercent <= 0 || len(w.Steps) == 0 {
		return false
	}
	return w.ApprovedCount()*100 >= w.RequiredPercent*len(w.Steps)
}

func finalizeApproved(e *entity.Expense, now time.Time) {
	e.ApprovedAt = &now
	e.Workflow.CompletedAt = &now
	e.Workflow.FinalStatus = entity.StatusApproved
	e.UpdatedAt = now
}
