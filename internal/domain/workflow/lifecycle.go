package workflow

import (
	"fmt"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

// Lifecycle is an immutable transition table over expense statuses. It
// answers which trigger may fire from which status and where it leads; the
// per-step bookkeeping lives in the transition functions of this package.
type Lifecycle struct {
	transitions map[entity.ExpenseStatus]map[Trigger]entity.ExpenseStatus
}

// LifecycleBuilder assembles a Lifecycle through fluent configuration
type LifecycleBuilder struct {
	transitions map[entity.ExpenseStatus]map[Trigger]entity.ExpenseStatus
}

// StatusConfiguration configures outgoing transitions for one status
type StatusConfiguration struct {
	builder *LifecycleBuilder
	from    entity.ExpenseStatus
}

// NewLifecycleBuilder creates an empty lifecycle builder
func NewLifecycleBuilder() *LifecycleBuilder {
	return &LifecycleBuilder{
		transitions: make(map[entity.ExpenseStatus]map[Trigger]entity.ExpenseStatus),
	}
}

// Configure returns the configuration for the given status
func (b *LifecycleBuilder) Configure(status entity.ExpenseStatus) *StatusConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}
	if _, ok := b.transitions[status]; !ok {
		b.transitions[status] = make(map[Trigger]entity.ExpenseStatus)
	}
	return &StatusConfiguration{builder: b, from: status}
}

// Permit allows a trigger to move the status to the target status
func (c *StatusConfiguration) Permit(trigger Trigger, to entity.ExpenseStatus) *StatusConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	c.builder.transitions[c.from][trigger] = to
	return c
}

// Build freezes the configuration into an immutable Lifecycle
func (b *LifecycleBuilder) Build() *Lifecycle {
	frozen := make(map[entity.ExpenseStatus]map[Trigger]entity.ExpenseStatus, len(b.transitions))
	for from, byTrigger := range b.transitions {
		inner := make(map[Trigger]entity.ExpenseStatus, len(byTrigger))
		for trigger, to := range byTrigger {
			inner[trigger] = to
		}
		frozen[from] = inner
	}
	return &Lifecycle{transitions: frozen}
}

// CanFire returns true if the trigger is permitted from the given status
func (l *Lifecycle) CanFire(from entity.ExpenseStatus, trigger Trigger) bool {
	byTrigger, ok := l.transitions[from]
	if !ok {
		return false
	}
	_, ok = byTrigger[trigger]
	return ok
}

// Fire resolves the target status for a trigger fired from the given status
func (l *Lifecycle) Fire(from entity.ExpenseStatus, trigger Trigger) (entity.ExpenseStatus, error) {
	byTrigger, ok := l.transitions[from]
	if !ok {
		return "", fmt.Errorf("%w: trigger %s from status %s", ErrInvalidTransition, trigger, from)
	}
	to, ok := byTrigger[trigger]
	if !ok {
		return "", fmt.Errorf("%w: trigger %s from status %s", ErrInvalidTransition, trigger, from)
	}
	return to, nil
}

// PermittedTriggers returns all triggers that can fire from the given status
func (l *Lifecycle) PermittedTriggers(from entity.ExpenseStatus) []Trigger {
	byTrigger, ok := l.transitions[from]
	if !ok {
		return []Trigger{}
	}
	triggers := make([]Trigger, 0, len(byTrigger))
	for trigger := range byTrigger {
		triggers = append(triggers, trigger)
	}
	return triggers
}

// ExpenseLifecycle builds the transition table for the reimbursement
// workflow. Rejected and reimbursed are terminal; approved only admits the
// external reimbursement trigger.
func ExpenseLifecycle() *Lifecycle {
	builder := NewLifecycleBuilder()

	builder.Configure(entity.StatusDraft).
		Permit(TriggerSubmit, entity.StatusPendingApproval).
		Permit(TriggerAutoApprove, entity.StatusApproved)

	builder.Configure(entity.StatusPendingApproval).
		Permit(TriggerAdvance, entity.StatusPendingApproval).
		Permit(TriggerApprove, entity.StatusApproved).
		Permit(TriggerReject, entity.StatusRejected)

	builder.Configure(entity.StatusApproved).
		Permit(TriggerReimburse, entity.StatusReimbursed)

	return builder.Build()
}
