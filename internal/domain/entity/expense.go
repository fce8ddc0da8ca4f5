package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseStatus is the lifecycle status of an expense
type ExpenseStatus string

// Submission moves a draft straight to pending_approval; there is no
// intermediate submitted status.
const (
	StatusDraft           ExpenseStatus = "draft"
	StatusPendingApproval ExpenseStatus = "pending_approval"
	StatusApproved        ExpenseStatus = "approved"
	StatusRejected        ExpenseStatus = "rejected"
	StatusReimbursed      ExpenseStatus = "reimbursed"
)

var validExpenseStatuses = map[ExpenseStatus]bool{
	StatusDraft:           true,
	StatusPendingApproval: true,
	StatusApproved:        true,
	StatusRejected:        true,
	StatusReimbursed:      true,
}

// Terminal with respect to the approval workflow. An approved expense may
// still move to reimbursed through the external payment process.
var terminalExpenseStatuses = map[ExpenseStatus]bool{
	StatusRejected:   true,
	StatusReimbursed: true,
}

// IsValid returns true if the status is a known expense status
func (s ExpenseStatus) IsValid() bool {
	return validExpenseStatuses[s]
}

// IsTerminal returns true if no further workflow action applies
func (s ExpenseStatus) IsTerminal() bool {
	return terminalExpenseStatuses[s]
}

// String returns the string representation of the status
func (s ExpenseStatus) String() string {
	return string(s)
}

// StepStatus is the status of a single approval step
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepApproved StepStatus = "approved"
	StepRejected StepStatus = "rejected"
)

// ApprovalStep is one link in an expense's approval chain. Order is the
// zero-based position that defines evaluation sequence.
type ApprovalStep struct {
	ApproverID  string     `json:"approver_id"`
	Order       int        `json:"order"`
	Status      StepStatus `json:"status"`
	Comments    string     `json:"comments,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// CompletionPolicy determines when a workflow finalizes as approved
type CompletionPolicy string

const (
	// PolicyAll requires every step to approve in order
	PolicyAll CompletionPolicy = "all"
	// PolicyPercentage finalizes once the required share of the approver
	// pool has approved
	PolicyPercentage CompletionPolicy = "percentage"
)

// ApprovalWorkflow is the ordered step chain attached to one expense.
// Steps are set exactly once at creation and never reordered or resized;
// only individual step fields mutate afterward.
type ApprovalWorkflow struct {
	CurrentStep     int              `json:"current_step"`
	Steps           []ApprovalStep   `json:"steps"`
	Policy          CompletionPolicy `json:"policy"`
	RequiredPercent int              `json:"required_percent,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	FinalStatus     ExpenseStatus    `json:"final_status,omitempty"`
}

// ActiveStep returns the step at CurrentStep, or nil if the chain is empty
// or already fully traversed.
func (w *ApprovalWorkflow) ActiveStep() *ApprovalStep {
	if w.CurrentStep < 0 || w.CurrentStep >= len(w.Steps) {
		return nil
	}
	return &w.Steps[w.CurrentStep]
}

// NextStep returns the step after the active one, or nil
func (w *ApprovalWorkflow) NextStep() *ApprovalStep {
	next := w.CurrentStep + 1
	if next < 0 || next >= len(w.Steps) {
		return nil
	}
	return &w.Steps[next]
}

// ApprovedCount returns the number of steps already approved
func (w *ApprovalWorkflow) ApprovedCount() int {
	count := 0
	for _, s := range w.Steps {
		if s.Status == StepApproved {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the workflow
func (w *ApprovalWorkflow) Clone() ApprovalWorkflow {
	out := *w
	out.Steps = make([]ApprovalStep, len(w.Steps))
	copy(out.Steps, w.Steps)
	for i := range out.Steps {
		if w.Steps[i].ProcessedAt != nil {
			t := *w.Steps[i].ProcessedAt
			out.Steps[i].ProcessedAt = &t
		}
	}
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Attachment is a receipt file stored alongside an expense. OCR hints are a
// best-effort annotation and never feed back into workflow logic.
type Attachment struct {
	ID         string
	ExpenseID  string
	FileName   string
	FilePath   string
	MimeType   string
	SizeBytes  int64
	ScanStatus string
	Hints      *ReceiptHints
	CreatedAt  time.Time
}

// Attachment scan statuses
const (
	ScanPending = "pending"
	ScanDone    = "done"
	ScanFailed  = "failed"
)

// ReceiptHints holds structured fields extracted from a receipt image
type ReceiptHints struct {
	Amount   string `json:"amount,omitempty"`
	Currency string `json:"currency,omitempty"`
	Date     string `json:"date,omitempty"`
	Merchant string `json:"merchant,omitempty"`
	Category string `json:"category,omitempty"`
}

// Note is an append-only free-text comment on an expense
type Note struct {
	ID        string
	ExpenseID string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// Expense is one reimbursement request. ConvertedAmount is computed once at
// creation (amount × rate into the organization base currency) and is never
// recomputed by workflow actions. Version backs the optimistic concurrency
// check applied on every workflow transition.
type Expense struct {
	ID              string
	OrganizationID  string
	EmployeeID      string
	Title           string
	Amount          decimal.Decimal
	CurrencyCode    string
	Rate            decimal.Decimal
	ConvertedAmount decimal.Decimal
	Category        string
	Merchant        string
	ExpenseDate     time.Time
	Status          ExpenseStatus
	Workflow        ApprovalWorkflow
	SubmittedAt     *time.Time
	ApprovedAt      *time.Time
	RejectedAt      *time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a deep copy of the expense. Transition functions operate on
// clones so a failed persistence write leaves the caller's snapshot intact.
func (e *Expense) Clone() *Expense {
	out := *e
	out.Workflow = e.Workflow.Clone()
	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	out.SubmittedAt = copyTime(e.SubmittedAt)
	out.ApprovedAt = copyTime(e.ApprovedAt)
	out.RejectedAt = copyTime(e.RejectedAt)
	return &out
}

// ApprovalHistory is one append-only record of a workflow transition
type ApprovalHistory struct {
	ID             int64
	ExpenseID      string
	ActorID        string
	PreviousStatus ExpenseStatus
	NewStatus      ExpenseStatus
	Action         string
	Comments       string
	CreatedAt      time.Time
}
