package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

// Mock repositories in the function-field style: zero-value mocks behave
// sensibly, individual tests override what they care about.

type mockExpenseRepo struct {
	store map[string]*entity.Expense

	createFunc            func(ctx context.Context, e *entity.Expense) error
	updateWithVersionFunc func(ctx context.Context, e *entity.Expense) error
}

func newMockExpenseRepo() *mockExpenseRepo {
	return &mockExpenseRepo{store: map[string]*entity.Expense{}}
}

func (m *mockExpenseRepo) Create(ctx context.Context, e *entity.Expense) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, e)
	}
	m.store[e.ID] = e.Clone()
	return nil
}

func (m *mockExpenseRepo) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	e, ok := m.store[id]
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

func (m *mockExpenseRepo) UpdateWithVersion(ctx context.Context, e *entity.Expense) error {
	if m.updateWithVersionFunc != nil {
		return m.updateWithVersionFunc(ctx, e)
	}
	current, ok := m.store[e.ID]
	if !ok {
		return entity.ErrNotFound
	}
	if current.Version != e.Version {
		return entity.ErrConflict
	}
	next := e.Clone()
	next.Version++
	m.store[e.ID] = next
	e.Version = next.Version
	return nil
}

func (m *mockExpenseRepo) ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]*entity.Expense, error) {
	return nil, nil
}

func (m *mockExpenseRepo) ListByOrganization(ctx context.Context, orgID string, limit, offset int) ([]*entity.Expense, error) {
	return nil, nil
}

func (m *mockExpenseRepo) ListPendingForApprover(ctx context.Context, approverID string, limit, offset int) ([]*entity.Expense, error) {
	return nil, nil
}

type mockUserRepo struct {
	users            map[string]*entity.User
	firstActiveAdmin *entity.User

	createFunc func(ctx context.Context, u *entity.User) error
}

func newMockUserRepo(users ...*entity.User) *mockUserRepo {
	m := &mockUserRepo{users: map[string]*entity.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) Create(ctx context.Context, u *entity.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, u)
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) ListByOrganization(ctx context.Context, orgID string) ([]*entity.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FirstActiveAdmin(ctx context.Context, orgID string) (*entity.User, error) {
	return m.firstActiveAdmin, nil
}

func (m *mockUserRepo) Update(ctx context.Context, u *entity.User) error {
	m.users[u.ID] = u
	return nil
}

type mockOrgRepo struct {
	org        *entity.Organization
	categories map[string]*entity.Category
	rules      []entity.ApprovalRule
}

func (m *mockOrgRepo) Create(ctx context.Context, org *entity.Organization) error {
	m.org = org
	return nil
}

func (m *mockOrgRepo) GetByID(ctx context.Context, id string) (*entity.Organization, error) {
	if m.org != nil && m.org.ID == id {
		return m.org, nil
	}
	return nil, nil
}

func (m *mockOrgRepo) UpdateSettings(ctx context.Context, orgID string, settings entity.OrgSettings) error {
	m.org.Settings = settings
	return nil
}

func (m *mockOrgRepo) CreateCategory(ctx context.Context, c *entity.Category) error {
	if m.categories == nil {
		m.categories = map[string]*entity.Category{}
	}
	m.categories[c.Name] = c
	return nil
}

func (m *mockOrgRepo) GetCategory(ctx context.Context, orgID, name string) (*entity.Category, error) {
	return m.categories[name], nil
}

func (m *mockOrgRepo) ListCategories(ctx context.Context, orgID string) ([]*entity.Category, error) {
	return nil, nil
}

func (m *mockOrgRepo) SetCategoryActive(ctx context.Context, id string, active bool) error {
	return nil
}

func (m *mockOrgRepo) CreateRule(ctx context.Context, r *entity.ApprovalRule) error {
	m.rules = append(m.rules, *r)
	return nil
}

func (m *mockOrgRepo) ListRules(ctx context.Context, orgID string) ([]entity.ApprovalRule, error) {
	return m.rules, nil
}

func (m *mockOrgRepo) SetRuleActive(ctx context.Context, id string, active bool) error { return nil }

type mockHistoryRepo struct {
	records []*entity.ApprovalHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, h *entity.ApprovalHistory) error {
	m.records = append(m.records, h)
	return nil
}

func (m *mockHistoryRepo) ListByExpense(ctx context.Context, expenseID string) ([]*entity.ApprovalHistory, error) {
	return m.records, nil
}

type mockNoteRepo struct {
	notes []*entity.Note
}

func (m *mockNoteRepo) Create(ctx context.Context, n *entity.Note) error {
	m.notes = append(m.notes, n)
	return nil
}

func (m *mockNoteRepo) ListByExpense(ctx context.Context, expenseID string) ([]*entity.Note, error) {
	return m.notes, nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	expenses *mockExpenseRepo
	users    *mockUserRepo
	orgs     *mockOrgRepo
	history  *mockHistoryRepo
	notes    *mockNoteRepo
	svc      ExpenseService
}

func newFixture(t *testing.T, org *entity.Organization, users ...*entity.User) *fixture {
	t.Helper()

	f := &fixture{
		expenses: newMockExpenseRepo(),
		users:    newMockUserRepo(users...),
		orgs: &mockOrgRepo{
			org: org,
			categories: map[string]*entity.Category{
				"Travel": {ID: "cat-travel", OrganizationID: org.ID, Name: "Travel", IsActive: true},
				"Legacy": {ID: "cat-legacy", OrganizationID: org.ID, Name: "Legacy", IsActive: false},
			},
		},
		history: &mockHistoryRepo{},
		notes:   &mockNoteRepo{},
	}
	normalizer := NewCurrencyNormalizer(&mockRates{}, zap.NewNop())
	f.svc = NewExpenseService(f.expenses, f.users, f.orgs, f.history, f.notes,
		&mockTxManager{}, normalizer, zap.NewNop())
	return f
}

func testOrg() *entity.Organization {
	return &entity.Organization{
		ID:           "org-1",
		Name:         "Acme",
		BaseCurrency: "USD",
		Settings: entity.OrgSettings{
			IsManagerApproverEnabled: true,
			MaxExpenseAmount:         decimal.RequireFromString("10000"),
		},
	}
}

func employee(id string, managerID *string) *entity.User {
	return &entity.User{
		ID: id, OrganizationID: "org-1", Role: entity.RoleEmployee,
		ManagerID: managerID, IsActive: true,
	}
}

func validInput() CreateExpenseInput {
	return CreateExpenseInput{
		EmployeeID:     "emp-1",
		OrganizationID: "org-1",
		Title:          "Flight to Berlin",
		Amount:         decimal.RequireFromString("450"),
		CurrencyCode:   "USD",
		Category:       "Travel",
		ExpenseDate:    time.Now(),
	}
}

func TestExpenseService_CreateExpense(t *testing.T) {
	ctx := context.Background()
	mgr := "mgr-1"

	t.Run("builds workflow with manager step", func(t *testing.T) {
		f := newFixture(t, testOrg(), employee("emp-1", &mgr))

		expense, err := f.svc.CreateExpense(ctx, validInput())
		require.NoError(t, err)
		assert.Equal(t, entity.StatusDraft, expense.Status)
		require.Len(t, expense.Workflow.Steps, 1)
		assert.Equal(t, "mgr-1", expense.Workflow.Steps[0].ApproverID)
		assert.True(t, expense.ConvertedAmount.Equal(decimal.RequireFromString("450")))
		assert.True(t, expense.Rate.Equal(decimal.NewFromInt(1)))
		require.Len(t, f.history.records, 1)
		assert.Equal(t, "CREATE", f.history.records[0].Action)
	})

	t.Run("rejects inactive category", func(t *testing.T) {
		f := newFixture(t, testOrg(), employee("emp-1", &mgr))
		in := validInput()
		in.Category = "Legacy"

		_, err := f.svc.CreateExpense(ctx, in)
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		f := newFixture(t, testOrg(), employee("emp-1", &mgr))
		in := validInput()
		in.Category = "Crypto"

		_, err := f.svc.CreateExpense(ctx, in)
		assert.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("scenario C: limit exceeded fails before any workflow", func(t *testing.T) {
		f := newFixture(t, testOrg(), employee("emp-1", &mgr))
		in := validInput()
		in.Amount = decimal.RequireFromString("10000.01")

		_, err := f.svc.CreateExpense(ctx, in)
		assert.ErrorIs(t, err, entity.ErrValidation)
		assert.Empty(t, f.expenses.store, "nothing persisted")
	})

	t.Run("unknown organization", func(t *testing.T) {
		f := newFixture(t, testOrg(), employee("emp-1", &mgr))
		in := validInput()
		in.OrganizationID = "org-ghost"

		_, err := f.svc.CreateExpense(ctx, in)
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("fallback admin when no manager and no rules", func(t *testing.T) {
		f := newFixture(t, testOrg(), employee("emp-1", nil))
		f.users.firstActiveAdmin = &entity.User{ID: "admin-1", OrganizationID: "org-1", Role: entity.RoleAdmin, IsActive: true}

		expense, err := f.svc.CreateExpense(ctx, validInput())
		require.NoError(t, err)
		require.Len(t, expense.Workflow.Steps, 1)
		assert.Equal(t, "admin-1", expense.Workflow.Steps[0].ApproverID)
	})

	t.Run("auto approval limit yields empty chain", func(t *testing.T) {
		org := testOrg()
		org.Settings.AutoApprovalLimit = decimal.RequireFromString("500")
		f := newFixture(t, org, employee("emp-1", &mgr))

		expense, err := f.svc.CreateExpense(ctx, validInput())
		require.NoError(t, err)
		assert.Empty(t, expense.Workflow.Steps)
	})
}

func TestExpenseService_FullApprovalFlow(t *testing.T) {
	ctx := context.Background()
	mgr := "mgr-1"
	f := newFixture(t, testOrg(), employee("emp-1", &mgr))
	f.orgs.rules = []entity.ApprovalRule{
		{ID: "r-travel", OrganizationID: "org-1", Position: 0, IsActive: true,
			Type: entity.RuleTypeSpecific, Categories: []string{"Travel"},
			Approvers: []entity.RuleApprover{{UserID: "fin-1"}}},
	}

	created, err := f.svc.CreateExpense(ctx, validInput())
	require.NoError(t, err)
	require.Len(t, created.Workflow.Steps, 2)

	// wrong owner cannot submit
	_, err = f.svc.SubmitExpense(ctx, created.ID, "mgr-1")
	require.ErrorIs(t, err, entity.ErrAuthorization)

	pending, err := f.svc.SubmitExpense(ctx, created.ID, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingApproval, pending.Status)

	// approver order is enforced
	_, err = f.svc.ApproveExpense(ctx, created.ID, "fin-1", "")
	require.ErrorIs(t, err, entity.ErrAuthorization)

	ok, err := f.svc.CanApprove(ctx, created.ID, "mgr-1")
	require.NoError(t, err)
	assert.True(t, ok)

	afterMgr, err := f.svc.ApproveExpense(ctx, created.ID, "mgr-1", "ok")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPendingApproval, afterMgr.Status)
	assert.Equal(t, 1, afterMgr.Workflow.CurrentStep)

	current, err := f.svc.CurrentApprover(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "fin-1", current)

	final, err := f.svc.ApproveExpense(ctx, created.ID, "fin-1", "approved")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, final.Status)
	assert.Equal(t, entity.StatusApproved, final.Workflow.FinalStatus)

	// terminal state is idempotent: a second approve fails with invalid state
	_, err = f.svc.ApproveExpense(ctx, created.ID, "fin-1", "again")
	assert.ErrorIs(t, err, entity.ErrInvalidState)

	// history captured every transition
	actions := make([]string, 0, len(f.history.records))
	for _, h := range f.history.records {
		actions = append(actions, h.Action)
	}
	assert.Equal(t, []string{"CREATE", "SUBMIT", "APPROVE", "APPROVE"}, actions)
}

func TestExpenseService_RejectFlow(t *testing.T) {
	ctx := context.Background()
	mgr := "mgr-1"
	f := newFixture(t, testOrg(), employee("emp-1", &mgr))

	created, err := f.svc.CreateExpense(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.SubmitExpense(ctx, created.ID, "emp-1")
	require.NoError(t, err)

	// comments are mandatory on rejection
	_, err = f.svc.RejectExpense(ctx, created.ID, "mgr-1", "")
	require.ErrorIs(t, err, entity.ErrValidation)

	rejected, err := f.svc.RejectExpense(ctx, created.ID, "mgr-1", "no receipt")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, rejected.Status)
	assert.Equal(t, entity.StatusRejected, rejected.Workflow.FinalStatus)

	_, err = f.svc.RejectExpense(ctx, created.ID, "mgr-1", "again")
	assert.ErrorIs(t, err, entity.ErrInvalidState)
}

func TestExpenseService_ZeroStepAutoApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testOrg(), employee("emp-1", nil))
	// no manager, no rules, no admin: chain is empty

	created, err := f.svc.CreateExpense(ctx, validInput())
	require.NoError(t, err)
	require.Empty(t, created.Workflow.Steps)

	approved, err := f.svc.SubmitExpense(ctx, created.ID, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, approved.Status)
	assert.Equal(t, entity.StatusApproved, approved.Workflow.FinalStatus)
	require.NotNil(t, approved.ApprovedAt)
}

func TestExpenseService_VersionConflictSurfaces(t *testing.T) {
	ctx := context.Background()
	mgr := "mgr-1"
	f := newFixture(t, testOrg(), employee("emp-1", &mgr))

	created, err := f.svc.CreateExpense(ctx, validInput())
	require.NoError(t, err)

	f.expenses.updateWithVersionFunc = func(ctx context.Context, e *entity.Expense) error {
		return entity.ErrConflict
	}

	_, err = f.svc.SubmitExpense(ctx, created.ID, "emp-1")
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestExpenseService_ConvertedAmountFrozen(t *testing.T) {
	ctx := context.Background()
	mgr := "mgr-1"
	f := newFixture(t, testOrg(), employee("emp-1", &mgr))

	created, err := f.svc.CreateExpense(ctx, validInput())
	require.NoError(t, err)

	submitted, err := f.svc.SubmitExpense(ctx, created.ID, "emp-1")
	require.NoError(t, err)
	approved, err := f.svc.ApproveExpense(ctx, created.ID, "mgr-1", "")
	require.NoError(t, err)

	assert.True(t, submitted.ConvertedAmount.Equal(created.ConvertedAmount))
	assert.True(t, approved.ConvertedAmount.Equal(created.ConvertedAmount))
	assert.Equal(t, len(created.Workflow.Steps), len(approved.Workflow.Steps),
		"steps are never resized after creation")
}

func TestExpenseService_Notes(t *testing.T) {
	ctx := context.Background()
	mgr := "mgr-1"
	f := newFixture(t, testOrg(), employee("emp-1", &mgr))

	created, err := f.svc.CreateExpense(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.AddNote(ctx, created.ID, "emp-1", "  ")
	assert.ErrorIs(t, err, entity.ErrValidation)

	note, err := f.svc.AddNote(ctx, created.ID, "emp-1", "taxi receipt attached")
	require.NoError(t, err)
	assert.Equal(t, "taxi receipt attached", note.Body)

	notes, err := f.svc.ListNotes(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}
