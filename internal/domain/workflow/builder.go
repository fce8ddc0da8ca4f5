package workflow

import (
	"github.com/shopspring/decimal"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

// BuildInput is the frozen snapshot the builder evaluates. The service layer
// resolves it from the organization configuration at expense-creation time so
// the build is a pure function of its input.
type BuildInput struct {
	ConvertedAmount decimal.Decimal
	Category        string

	ManagerApproverEnabled bool
	ManagerID              *string

	AutoApprovalLimit decimal.Decimal

	Rules []entity.ApprovalRule

	// FallbackAdminID is the first active organization administrator,
	// resolved deterministically by the caller. Empty when the organization
	// has no active admin.
	FallbackAdminID string
}

// Build constructs the approval chain for one expense. It runs exactly once
// per expense, at creation; the resulting step list is frozen thereafter.
//
// Order of evaluation:
//  1. auto-approval limit: amounts at or under a configured limit produce an
//     empty chain, which auto-approves on submission
//  2. manager step, when enabled and the employee has a manager
//  3. first-match rule expansion
//  4. fallback admin step when the chain is still empty
func Build(in BuildInput) entity.ApprovalWorkflow {
	if in.AutoApprovalLimit.IsPositive() && in.ConvertedAmount.LessThanOrEqual(in.AutoApprovalLimit) {
		return entity.ApprovalWorkflow{
			CurrentStep: 0,
			Steps:       []entity.ApprovalStep{},
			Policy:      entity.PolicyAll,
		}
	}

	var steps []entity.ApprovalStep

	if in.ManagerApproverEnabled && in.ManagerID != nil && *in.ManagerID != "" {
		steps = append(steps, entity.ApprovalStep{
			ApproverID: *in.ManagerID,
			Order:      0,
			Status:     entity.StepPending,
		})
	}

	rule := FirstMatch(in.Rules, in.ConvertedAmount, in.Category)
	steps = expandRule(steps, rule)

	if len(steps) == 0 && in.FallbackAdminID != "" {
		steps = append(steps, entity.ApprovalStep{
			ApproverID: in.FallbackAdminID,
			Order:      0,
			Status:     entity.StepPending,
		})
	}

	policy, percent := completionPolicy(rule)

	if steps == nil {
		steps = []entity.ApprovalStep{}
	}

	return entity.ApprovalWorkflow{
		CurrentStep:     0,
		Steps:           steps,
		Policy:          policy,
		RequiredPercent: percent,
	}
}
