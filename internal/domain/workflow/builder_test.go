package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

func strPtr(s string) *string { return &s }

func TestBuild_ManagerAlwaysStepZero(t *testing.T) {
	wf := Build(BuildInput{
		ConvertedAmount:        dec("200"),
		Category:               "Travel",
		ManagerApproverEnabled: true,
		ManagerID:              strPtr("mgr-1"),
		Rules: []entity.ApprovalRule{
			{ID: "r", Position: 0, IsActive: true, Type: entity.RuleTypeSpecific,
				Approvers: []entity.RuleApprover{{UserID: "fin-1"}}},
		},
		FallbackAdminID: "admin-1",
	})

	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "mgr-1", wf.Steps[0].ApproverID)
	assert.Equal(t, 0, wf.Steps[0].Order)
	assert.Equal(t, "fin-1", wf.Steps[1].ApproverID)
	assert.Equal(t, 1, wf.Steps[1].Order)
	assert.Equal(t, 0, wf.CurrentStep)
}

func TestBuild_ManagerDisabledSkipsManagerStep(t *testing.T) {
	wf := Build(BuildInput{
		ConvertedAmount:        dec("200"),
		ManagerApproverEnabled: false,
		ManagerID:              strPtr("mgr-1"),
		Rules: []entity.ApprovalRule{
			{ID: "r", Position: 0, IsActive: true, Type: entity.RuleTypeSpecific,
				Approvers: []entity.RuleApprover{{UserID: "fin-1"}}},
		},
	})

	require.Len(t, wf.Steps, 1)
	assert.Equal(t, "fin-1", wf.Steps[0].ApproverID)
}

func TestBuild_FallbackAdminWhenNothingMatches(t *testing.T) {
	wf := Build(BuildInput{
		ConvertedAmount: dec("200"),
		FallbackAdminID: "admin-1",
	})

	require.Len(t, wf.Steps, 1)
	assert.Equal(t, "admin-1", wf.Steps[0].ApproverID)
	assert.Equal(t, entity.StepPending, wf.Steps[0].Status)
}

func TestBuild_NoAdminYieldsEmptyChain(t *testing.T) {
	wf := Build(BuildInput{ConvertedAmount: dec("200")})

	assert.NotNil(t, wf.Steps)
	assert.Empty(t, wf.Steps)
}

func TestBuild_AutoApprovalLimitShortCircuits(t *testing.T) {
	wf := Build(BuildInput{
		ConvertedAmount:        dec("45"),
		AutoApprovalLimit:      dec("50"),
		ManagerApproverEnabled: true,
		ManagerID:              strPtr("mgr-1"),
		FallbackAdminID:        "admin-1",
	})

	assert.Empty(t, wf.Steps, "amounts under the limit need no approvers")
}

func TestBuild_AutoApprovalLimitZeroMeansDisabled(t *testing.T) {
	wf := Build(BuildInput{
		ConvertedAmount: dec("0.01"),
		FallbackAdminID: "admin-1",
	})

	require.Len(t, wf.Steps, 1)
}

func TestBuild_PercentageRuleSetsPolicy(t *testing.T) {
	wf := Build(BuildInput{
		ConvertedAmount:        dec("5000"),
		ManagerApproverEnabled: true,
		ManagerID:              strPtr("mgr-1"),
		Rules: []entity.ApprovalRule{
			{ID: "r", Position: 0, IsActive: true, Type: entity.RuleTypePercentage, Percentage: 60},
		},
	})

	assert.Equal(t, entity.PolicyPercentage, wf.Policy)
	assert.Equal(t, 60, wf.RequiredPercent)
	require.Len(t, wf.Steps, 1, "percentage rule adds no steps beyond the manager")
}

func TestBuild_Deterministic(t *testing.T) {
	in := BuildInput{
		ConvertedAmount:        dec("321.50"),
		Category:               "Travel",
		ManagerApproverEnabled: true,
		ManagerID:              strPtr("mgr-1"),
		Rules: []entity.ApprovalRule{
			{ID: "r1", Position: 1, IsActive: true, Type: entity.RuleTypeHybrid, Percentage: 50,
				Approvers: []entity.RuleApprover{{UserID: "fin-1"}, {UserID: "cfo-1"}}},
			{ID: "r0", Position: 0, IsActive: true, Type: entity.RuleTypeSpecific,
				Categories: []string{"Meals"},
				Approvers:  []entity.RuleApprover{{UserID: "other-1"}}},
		},
		FallbackAdminID: "admin-1",
	}

	first := Build(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Build(in), "build must be a pure function of its input")
	}

	require.Len(t, first.Steps, 3)
	assert.Equal(t, []string{"mgr-1", "fin-1", "cfo-1"}, []string{
		first.Steps[0].ApproverID, first.Steps[1].ApproverID, first.Steps[2].ApproverID,
	})
}

func TestBuild_OrdersStrictlyIncreasing(t *testing.T) {
	wf := Build(BuildInput{
		ConvertedAmount:        dec("900"),
		ManagerApproverEnabled: true,
		ManagerID:              strPtr("mgr-1"),
		Rules: []entity.ApprovalRule{
			{ID: "r", Position: 0, IsActive: true, Type: entity.RuleTypeSpecific,
				Approvers: []entity.RuleApprover{{UserID: "a"}, {UserID: "b"}, {UserID: "c"}}},
		},
	})

	for i, step := range wf.Steps {
		assert.Equal(t, i, step.Order)
		assert.Equal(t, entity.StepPending, step.Status)
	}
}
