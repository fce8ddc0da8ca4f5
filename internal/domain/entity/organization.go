package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleType classifies how an approval rule expands into workflow steps
type RuleType string

const (
	RuleTypePercentage RuleType = "percentage"
	RuleTypeSpecific   RuleType = "specific"
	RuleTypeHybrid     RuleType = "hybrid"
)

var validRuleTypes = map[RuleType]bool{
	RuleTypePercentage: true,
	RuleTypeSpecific:   true,
	RuleTypeHybrid:     true,
}

// IsValid returns true if the rule type is known
func (t RuleType) IsValid() bool {
	return validRuleTypes[t]
}

// UsesPercentage reports whether the rule type carries percentage semantics
func (t RuleType) UsesPercentage() bool {
	return t == RuleTypePercentage || t == RuleTypeHybrid
}

// RuleApprover is one entry in a rule's ordered approver list
type RuleApprover struct {
	UserID      string `json:"user_id"`
	AutoApprove bool   `json:"auto_approve"`
}

// ApprovalRule is organization-scoped configuration read by the workflow
// builder at expense creation. Later edits never retouch in-flight expenses.
// Amount bounds are inclusive and expressed in the organization base currency;
// a nil MaxAmount means unbounded. Empty Categories means the rule applies to
// every category. Position defines the organization-wide evaluation order.
type ApprovalRule struct {
	ID             string
	OrganizationID string
	Name           string
	Type           RuleType
	Percentage     int
	Approvers      []RuleApprover
	MinAmount      decimal.Decimal
	MaxAmount      *decimal.Decimal
	Categories     []string
	Position       int
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Matches reports whether the rule applies to a normalized expense snapshot
func (r *ApprovalRule) Matches(convertedAmount decimal.Decimal, category string) bool {
	if !r.IsActive {
		return false
	}
	if convertedAmount.LessThan(r.MinAmount) {
		return false
	}
	if r.MaxAmount != nil && convertedAmount.GreaterThan(*r.MaxAmount) {
		return false
	}
	if len(r.Categories) == 0 {
		return true
	}
	for _, c := range r.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Category is an expense classification configured per organization
type Category struct {
	ID             string
	OrganizationID string
	Name           string
	IsActive       bool
	CreatedAt      time.Time
}

// OrgSettings holds per-organization workflow configuration.
// MaxExpenseAmount and AutoApprovalLimit are base-currency amounts; zero
// means the corresponding behavior is disabled.
type OrgSettings struct {
	IsManagerApproverEnabled bool            `json:"is_manager_approver_enabled"`
	MaxExpenseAmount         decimal.Decimal `json:"max_expense_amount"`
	AutoApprovalLimit        decimal.Decimal `json:"auto_approval_limit"`
}

// Organization owns users, categories, rules and expenses. BaseCurrency is
// the reporting currency every threshold comparison uses.
type Organization struct {
	ID           string
	Name         string
	BaseCurrency string
	Settings     OrgSettings
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
