package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

func draftExpense(approvers ...string) *entity.Expense {
	steps := make([]entity.ApprovalStep, len(approvers))
	for i, a := range approvers {
		steps[i] = entity.ApprovalStep{ApproverID: a, Order: i, Status: entity.StepPending}
	}
	return &entity.Expense{
		ID:         "exp-1",
		EmployeeID: "emp-1",
		Status:     entity.StatusDraft,
		Workflow: entity.ApprovalWorkflow{
			CurrentStep: 0,
			Steps:       steps,
			Policy:      entity.PolicyAll,
		},
	}
}

func pendingExpense(approvers ...string) *entity.Expense {
	e := draftExpense(approvers...)
	e.Status = entity.StatusPendingApproval
	now := time.Now()
	e.SubmittedAt = &now
	return e
}

func TestMachine_Submit(t *testing.T) {
	m := NewMachine()
	now := time.Now()

	t.Run("moves draft to pending", func(t *testing.T) {
		e := draftExpense("mgr-1")

		got, err := m.Submit(e, "emp-1", now)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPendingApproval, got.Status)
		require.NotNil(t, got.SubmittedAt)
		assert.Equal(t, entity.StatusDraft, e.Status, "input snapshot must stay untouched")
	})

	t.Run("empty chain auto-approves", func(t *testing.T) {
		e := draftExpense()

		got, err := m.Submit(e, "emp-1", now)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusApproved, got.Status)
		assert.Equal(t, entity.StatusApproved, got.Workflow.FinalStatus)
		require.NotNil(t, got.ApprovedAt)
		require.NotNil(t, got.Workflow.CompletedAt)
		assert.Empty(t, got.Workflow.Steps)
	})

	t.Run("rejects non-owner", func(t *testing.T) {
		e := draftExpense("mgr-1")

		_, err := m.Submit(e, "someone-else", now)
		assert.ErrorIs(t, err, ErrNotOwner)
		assert.ErrorIs(t, err, entity.ErrAuthorization)
	})

	t.Run("rejects non-draft", func(t *testing.T) {
		e := pendingExpense("mgr-1")

		_, err := m.Submit(e, "emp-1", now)
		assert.ErrorIs(t, err, entity.ErrInvalidState)
	})
}

func TestMachine_Approve(t *testing.T) {
	m := NewMachine()
	now := time.Now()

	t.Run("advances to next step", func(t *testing.T) {
		e := pendingExpense("mgr-1", "fin-1")

		got, err := m.Approve(e, "mgr-1", "looks fine", now)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPendingApproval, got.Status)
		assert.Equal(t, 1, got.Workflow.CurrentStep)
		assert.Equal(t, entity.StepApproved, got.Workflow.Steps[0].Status)
		assert.Equal(t, "looks fine", got.Workflow.Steps[0].Comments)
		require.NotNil(t, got.Workflow.Steps[0].ProcessedAt)
		assert.Equal(t, entity.StepPending, got.Workflow.Steps[1].Status)
		assert.Empty(t, got.Workflow.FinalStatus)
	})

	t.Run("last step finalizes without advancing", func(t *testing.T) {
		e := pendingExpense("mgr-1")

		got, err := m.Approve(e, "mgr-1", "", now)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusApproved, got.Status)
		assert.Equal(t, 0, got.Workflow.CurrentStep, "currentStep stays put on finalize")
		assert.Equal(t, entity.StatusApproved, got.Workflow.FinalStatus)
		require.NotNil(t, got.ApprovedAt)
		require.NotNil(t, got.Workflow.CompletedAt)
	})

	t.Run("wrong actor fails at every position", func(t *testing.T) {
		e := pendingExpense("mgr-1", "fin-1", "cfo-1")

		for i := 0; i < 3; i++ {
			_, err := m.Approve(e, "intruder", "", now)
			require.ErrorIs(t, err, ErrNotActiveApprover)
			require.ErrorIs(t, err, entity.ErrAuthorization)

			next, err := m.Approve(e, e.Workflow.Steps[i].ApproverID, "", now)
			require.NoError(t, err)
			e = next
		}
		assert.Equal(t, entity.StatusApproved, e.Status)
	})

	t.Run("second approve after terminal fails with invalid state", func(t *testing.T) {
		e := pendingExpense("mgr-1")

		approved, err := m.Approve(e, "mgr-1", "", now)
		require.NoError(t, err)

		_, err = m.Approve(approved, "mgr-1", "", now)
		assert.ErrorIs(t, err, entity.ErrInvalidState)
	})

	t.Run("percentage policy finalizes early", func(t *testing.T) {
		e := pendingExpense("a", "b", "c", "d")
		e.Workflow.Policy = entity.PolicyPercentage
		e.Workflow.RequiredPercent = 50

		step1, err := m.Approve(e, "a", "", now)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPendingApproval, step1.Status, "25% < 50%")

		final, err := m.Approve(step1, "b", "", now)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusApproved, final.Status, "50% meets threshold")
		assert.Equal(t, entity.StatusApproved, final.Workflow.FinalStatus)
		assert.Equal(t, entity.StepPending, final.Workflow.Steps[2].Status, "later steps stay pending")
		assert.Equal(t, entity.StepPending, final.Workflow.Steps[3].Status)
	})
}

func TestMachine_Reject(t *testing.T) {
	m := NewMachine()
	now := time.Now()

	t.Run("terminates the whole chain", func(t *testing.T) {
		e := pendingExpense("mgr-1", "fin-1", "cfo-1")

		afterMgr, err := m.Approve(e, "mgr-1", "ok", now)
		require.NoError(t, err)

		got, err := m.Reject(afterMgr, "fin-1", "missing receipt", now)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusRejected, got.Status)
		assert.Equal(t, entity.StatusRejected, got.Workflow.FinalStatus)
		require.NotNil(t, got.RejectedAt)
		require.NotNil(t, got.Workflow.CompletedAt)
		assert.Equal(t, entity.StepApproved, got.Workflow.Steps[0].Status, "earlier approval is not reverted")
		assert.Equal(t, entity.StepRejected, got.Workflow.Steps[1].Status)
		assert.Equal(t, entity.StepPending, got.Workflow.Steps[2].Status, "later steps untouched")
		assert.Equal(t, 1, got.Workflow.CurrentStep, "rejection never advances")
	})

	t.Run("requires comments", func(t *testing.T) {
		e := pendingExpense("mgr-1")

		_, err := m.Reject(e, "mgr-1", "  ", now)
		assert.ErrorIs(t, err, ErrCommentsRequired)
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("wrong actor fails", func(t *testing.T) {
		e := pendingExpense("mgr-1")

		_, err := m.Reject(e, "intruder", "nope", now)
		assert.ErrorIs(t, err, ErrNotActiveApprover)
	})

	t.Run("terminal expense fails with invalid state", func(t *testing.T) {
		e := pendingExpense("mgr-1")
		rejected, err := m.Reject(e, "mgr-1", "no", now)
		require.NoError(t, err)

		_, err = m.Reject(rejected, "mgr-1", "again", now)
		assert.ErrorIs(t, err, entity.ErrInvalidState)
	})
}

func TestMachine_ScenarioA_FallbackAdminOnly(t *testing.T) {
	m := NewMachine()
	now := time.Now()

	wf := Build(BuildInput{ConvertedAmount: dec("120"), FallbackAdminID: "admin-1"})
	e := draftExpense()
	e.Workflow = wf

	pending, err := m.Submit(e, "emp-1", now)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingApproval, pending.Status)
	assert.Equal(t, "admin-1", m.CurrentApprover(pending))

	approved, err := m.Approve(pending, "admin-1", "", now)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, approved.Status)
	assert.Equal(t, 0, approved.Workflow.CurrentStep)
	assert.Equal(t, entity.StatusApproved, approved.Workflow.FinalStatus)
}

func TestMachine_ScenarioB_ManagerThenRuleApprover(t *testing.T) {
	m := NewMachine()
	now := time.Now()

	wf := Build(BuildInput{
		ConvertedAmount:        dec("800"),
		Category:               "Travel",
		ManagerApproverEnabled: true,
		ManagerID:              strPtr("M"),
		Rules: []entity.ApprovalRule{
			{ID: "travel", Position: 0, IsActive: true, Type: entity.RuleTypeSpecific,
				Categories: []string{"Travel"},
				Approvers:  []entity.RuleApprover{{UserID: "R"}}},
		},
	})
	e := draftExpense()
	e.Workflow = wf

	pending, err := m.Submit(e, "emp-1", now)
	require.NoError(t, err)
	require.Len(t, pending.Workflow.Steps, 2)

	afterM, err := m.Approve(pending, "M", "", now)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingApproval, afterM.Status)
	assert.Equal(t, 1, afterM.Workflow.CurrentStep)
	assert.Equal(t, "R", m.CurrentApprover(afterM))

	final, err := m.Reject(afterM, "R", "over budget", now)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, final.Status)
	assert.Equal(t, entity.StatusRejected, final.Workflow.FinalStatus)
	assert.Equal(t, entity.StepRejected, final.Workflow.Steps[1].Status)
	assert.Equal(t, entity.StepApproved, final.Workflow.Steps[0].Status)
}

func TestMachine_QueryHelpers(t *testing.T) {
	m := NewMachine()

	e := pendingExpense("mgr-1", "fin-1")
	assert.Equal(t, "mgr-1", m.CurrentApprover(e))
	assert.Equal(t, "fin-1", m.NextApprover(e))
	assert.True(t, m.CanActOn(e, "mgr-1"))
	assert.False(t, m.CanActOn(e, "fin-1"))
	assert.False(t, m.CanActOn(e, "emp-1"))

	empty := draftExpense()
	assert.Empty(t, m.CurrentApprover(empty))
	assert.Empty(t, m.NextApprover(empty))
	assert.False(t, m.CanActOn(empty, "mgr-1"), "draft is never actionable")
}

func TestMachine_Reimburse(t *testing.T) {
	m := NewMachine()
	now := time.Now()

	e := pendingExpense("mgr-1")
	approved, err := m.Approve(e, "mgr-1", "", now)
	require.NoError(t, err)

	paid, err := m.Reimburse(approved, now)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReimbursed, paid.Status)

	_, err = m.Reimburse(paid, now)
	assert.ErrorIs(t, err, entity.ErrInvalidState)
}
