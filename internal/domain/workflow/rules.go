package workflow

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

// FirstMatch returns the first active rule applicable to the normalized
// amount and category, evaluated in organization-defined position order.
// Rules are never combined: first match wins.
func FirstMatch(rules []entity.ApprovalRule, convertedAmount decimal.Decimal, category string) *entity.ApprovalRule {
	ordered := make([]entity.ApprovalRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	for i := range ordered {
		if ordered[i].Matches(convertedAmount, category) {
			return &ordered[i]
		}
	}
	return nil
}

// expandRule appends one pending step per rule approver, deduplicating by
// approver identity against steps already in the chain. Returns the extended
// step list.
func expandRule(steps []entity.ApprovalStep, rule *entity.ApprovalRule) []entity.ApprovalStep {
	if rule == nil {
		return steps
	}

	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		seen[s.ApproverID] = true
	}

	switch rule.Type {
	case entity.RuleTypeSpecific, entity.RuleTypeHybrid:
		for _, approver := range rule.Approvers {
			if seen[approver.UserID] {
				continue
			}
			seen[approver.UserID] = true
			steps = append(steps, entity.ApprovalStep{
				ApproverID: approver.UserID,
				Order:      len(steps),
				Status:     entity.StepPending,
			})
		}
	case entity.RuleTypePercentage:
		// Percentage rules shape the completion policy, not the chain.
	}

	return steps
}

// completionPolicy derives the workflow completion policy from the selected
// rule. Percentage semantics are a chain-level threshold over the approver
// pool rather than extra steps.
func completionPolicy(rule *entity.ApprovalRule) (entity.CompletionPolicy, int) {
	if rule == nil || !rule.Type.UsesPercentage() {
		return entity.PolicyAll, 0
	}
	pct := rule.Percentage
	if pct <= 0 || pct > 100 {
		return entity.PolicyAll, 0
	}
	return entity.PolicyPercentage, pct
}
