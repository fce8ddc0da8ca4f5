package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
	"github.com/finovate/expenseflow/internal/domain/workflow"
)

// CreateExpenseInput carries everything needed to create a draft expense
type CreateExpenseInput struct {
	EmployeeID     string
	OrganizationID string
	Title          string
	Amount         decimal.Decimal
	CurrencyCode   string
	Category       string
	ExpenseDate    time.Time
	Merchant       string
}

// ExpenseService owns the expense lifecycle. Creation normalizes the
// currency and builds the approval chain; submit/approve/reject route
// through the workflow machine and persist each transition with an
// optimistic version check.
type ExpenseService interface {
	CreateExpense(ctx context.Context, in CreateExpenseInput) (*entity.Expense, error)
	SubmitExpense(ctx context.Context, expenseID, actorID string) (*entity.Expense, error)
	ApproveExpense(ctx context.Context, expenseID, actorID, comments string) (*entity.Expense, error)
	RejectExpense(ctx context.Context, expenseID, actorID, comments string) (*entity.Expense, error)
	MarkReimbursed(ctx context.Context, expenseID string) (*entity.Expense, error)

	GetExpense(ctx context.Context, expenseID string) (*entity.Expense, error)
	ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]*entity.Expense, error)
	ListByOrganization(ctx context.Context, orgID string, limit, offset int) ([]*entity.Expense, error)
	ListPendingForApprover(ctx context.Context, approverID string, limit, offset int) ([]*entity.Expense, error)

	CanApprove(ctx context.Context, expenseID, userID string) (bool, error)
	CurrentApprover(ctx context.Context, expenseID string) (string, error)
	History(ctx context.Context, expenseID string) ([]*entity.ApprovalHistory, error)

	AddNote(ctx context.Context, expenseID, authorID, body string) (*entity.Note, error)
	ListNotes(ctx context.Context, expenseID string) ([]*entity.Note, error)
}

type expenseServiceImpl struct {
	expenseRepo port.ExpenseRepository
	userRepo    port.UserRepository
	orgRepo     port.OrganizationRepository
	historyRepo port.HistoryRepository
	noteRepo    port.NoteRepository
	txManager   port.TransactionManager
	normalizer  *CurrencyNormalizer
	machine     *workflow.Machine
	logger      *zap.Logger
}

// NewExpenseService creates the expense service
func NewExpenseService(
	expenseRepo port.ExpenseRepository,
	userRepo port.UserRepository,
	orgRepo port.OrganizationRepository,
	historyRepo port.HistoryRepository,
	noteRepo port.NoteRepository,
	txManager port.TransactionManager,
	normalizer *CurrencyNormalizer,
	logger *zap.Logger,
) ExpenseService {
	return &expenseServiceImpl{
		expenseRepo: expenseRepo,
		userRepo:    userRepo,
		orgRepo:     orgRepo,
		historyRepo: historyRepo,
		noteRepo:    noteRepo,
		txManager:   txManager,
		normalizer:  normalizer,
		machine:     workflow.NewMachine(),
		logger:      logger,
	}
}

// CreateExpense validates input, normalizes the amount into the organization
// base currency, builds the approval chain and persists the draft. The
// converted amount and the step list are frozen here and never recomputed.
func (s *expenseServiceImpl) CreateExpense(ctx context.Context, in CreateExpenseInput) (*entity.Expense, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", entity.ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", entity.ErrValidation)
	}

	org, err := s.orgRepo.GetByID(ctx, in.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, fmt.Errorf("%w: organization %s", entity.ErrNotFound, in.OrganizationID)
	}

	category, err := s.orgRepo.GetCategory(ctx, in.OrganizationID, in.Category)
	if err != nil {
		return nil, err
	}
	if category == nil || !category.IsActive {
		return nil, fmt.Errorf("%w: unknown or inactive category %q", entity.ErrValidation, in.Category)
	}

	employee, err := s.userRepo.GetByID(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	if employee == nil || employee.OrganizationID != in.OrganizationID {
		return nil, fmt.Errorf("%w: employee %s", entity.ErrNotFound, in.EmployeeID)
	}

	converted, rate := s.normalizer.Normalize(ctx, in.Amount, in.CurrencyCode, org.BaseCurrency)

	if org.Settings.MaxExpenseAmount.IsPositive() && converted.GreaterThan(org.Settings.MaxExpenseAmount) {
		return nil, fmt.Errorf("%w: amount %s exceeds organization limit %s",
			entity.ErrValidation, converted.String(), org.Settings.MaxExpenseAmount.String())
	}

	rules, err := s.orgRepo.ListRules(ctx, in.OrganizationID)
	if err != nil {
		return nil, err
	}

	fallbackAdminID := ""
	if admin, err := s.userRepo.FirstActiveAdmin(ctx, in.OrganizationID); err != nil {
		return nil, err
	} else if admin != nil {
		fallbackAdminID = admin.ID
	}

	now := time.Now().UTC()
	expense := &entity.Expense{
		ID:              uuid.NewString(),
		OrganizationID:  in.OrganizationID,
		EmployeeID:      in.EmployeeID,
		Title:           strings.TrimSpace(in.Title),
		Amount:          in.Amount,
		CurrencyCode:    normalizeCurrencyCode(in.CurrencyCode),
		Rate:            rate,
		ConvertedAmount: converted,
		Category:        category.Name,
		Merchant:        strings.TrimSpace(in.Merchant),
		ExpenseDate:     in.ExpenseDate,
		Status:          entity.StatusDraft,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	expense.Workflow = workflow.Build(workflow.BuildInput{
		ConvertedAmount:        converted,
		Category:               category.Name,
		ManagerApproverEnabled: org.Settings.IsManagerApproverEnabled,
		ManagerID:              employee.ManagerID,
		AutoApprovalLimit:      org.Settings.AutoApprovalLimit,
		Rules:                  rules,
		FallbackAdminID:        fallbackAdminID,
	})

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.expenseRepo.Create(txCtx, expense); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		history := &entity.ApprovalHistory{
			ExpenseID:      expense.ID,
			ActorID:        in.EmployeeID,
			PreviousStatus: "",
			NewStatus:      entity.StatusDraft,
			Action:         "CREATE",
			CreatedAt:      now,
		}
		if err := s.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create expense", zap.Error(err), zap.String("employee_id", in.EmployeeID))
		return nil, err
	}

	s.logger.Info("Expense created",
		zap.String("expense_id", expense.ID),
		zap.String("employee_id", in.EmployeeID),
		zap.String("converted_amount", converted.String()),
		zap.Int("steps", len(expense.Workflow.Steps)))
	return expense, nil
}

// SubmitExpense moves a draft expense into its approval chain
func (s *expenseServiceImpl) SubmitExpense(ctx context.Context, expenseID, actorID string) (*entity.Expense, error) {
	return s.transition(ctx, expenseID, "SUBMIT", func(e *entity.Expense, now time.Time) (*entity.Expense, error) {
		return s.machine.Submit(e, actorID, now)
	}, actorID, "")
}

// ApproveExpense records the active approver's approval
func (s *expenseServiceImpl) ApproveExpense(ctx context.Context, expenseID, actorID, comments string) (*entity.Expense, error) {
	return s.transition(ctx, expenseID, "APPROVE", func(e *entity.Expense, now time.Time) (*entity.Expense, error) {
		return s.machine.Approve(e, actorID, comments, now)
	}, actorID, comments)
}

// RejectExpense records the active approver's rejection and terminates the chain
func (s *expenseServiceImpl) RejectExpense(ctx context.Context, expenseID, actorID, comments string) (*entity.Expense, error) {
	return s.transition(ctx, expenseID, "REJECT", func(e *entity.Expense, now time.Time) (*entity.Expense, error) {
		return s.machine.Reject(e, actorID, comments, now)
	}, actorID, comments)
}

// MarkReimbursed records payout of an approved expense
func (s *expenseServiceImpl) MarkReimbursed(ctx context.Context, expenseID string) (*entity.Expense, error) {
	return s.transition(ctx, expenseID, "REIMBURSE", func(e *entity.Expense, now time.Time) (*entity.Expense, error) {
		return s.machine.Reimburse(e, now)
	}, "system", "")
}

// transition is the shared read-transform-write path: load the snapshot,
// apply the machine, persist the result under the version check, and append
// a history record in the same transaction.
func (s *expenseServiceImpl) transition(
	ctx context.Context,
	expenseID, action string,
	apply func(e *entity.Expense, now time.Time) (*entity.Expense, error),
	actorID, comments string,
) (*entity.Expense, error) {
	expense, err := s.loadExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next, err := apply(expense, now)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.expenseRepo.UpdateWithVersion(txCtx, next); err != nil {
			return err
		}
		history := &entity.ApprovalHistory{
			ExpenseID:      expenseID,
			ActorID:        actorID,
			PreviousStatus: expense.Status,
			NewStatus:      next.Status,
			Action:         action,
			Comments:       comments,
			CreatedAt:      now,
		}
		if err := s.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Workflow transition failed",
			zap.String("expense_id", expenseID),
			zap.String("action", action),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Workflow transition applied",
		zap.String("expense_id", expenseID),
		zap.String("action", action),
		zap.String("from", expense.Status.String()),
		zap.String("to", next.Status.String()),
		zap.String("actor_id", actorID))
	return next, nil
}

// GetExpense retrieves one expense
func (s *expenseServiceImpl) GetExpense(ctx context.Context, expenseID string) (*entity.Expense, error) {
	return s.loadExpense(ctx, expenseID)
}

// ListByEmployee lists an employee's expenses, newest first
func (s *expenseServiceImpl) ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]*entity.Expense, error) {
	return s.expenseRepo.ListByEmployee(ctx, employeeID, limit, offset)
}

// ListByOrganization lists an organization's expenses, newest first
func (s *expenseServiceImpl) ListByOrganization(ctx context.Context, orgID string, limit, offset int) ([]*entity.Expense, error) {
	return s.expenseRepo.ListByOrganization(ctx, orgID, limit, offset)
}

// ListPendingForApprover lists expenses whose active step awaits the approver
func (s *expenseServiceImpl) ListPendingForApprover(ctx context.Context, approverID string, limit, offset int) ([]*entity.Expense, error) {
	return s.expenseRepo.ListPendingForApprover(ctx, approverID, limit, offset)
}

// CanApprove reports whether the user may act on the expense right now
func (s *expenseServiceImpl) CanApprove(ctx context.Context, expenseID, userID string) (bool, error) {
	expense, err := s.loadExpense(ctx, expenseID)
	if err != nil {
		return false, err
	}
	return s.machine.CanActOn(expense, userID), nil
}

// CurrentApprover returns the active step's approver id, empty when none
func (s *expenseServiceImpl) CurrentApprover(ctx context.Context, expenseID string) (string, error) {
	expense, err := s.loadExpense(ctx, expenseID)
	if err != nil {
		return "", err
	}
	return s.machine.CurrentApprover(expense), nil
}

// History lists the append-only transition log of an expense
func (s *expenseServiceImpl) History(ctx context.Context, expenseID string) ([]*entity.ApprovalHistory, error) {
	if _, err := s.loadExpense(ctx, expenseID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByExpense(ctx, expenseID)
}

// AddNote appends a free-text note to an expense
func (s *expenseServiceImpl) AddNote(ctx context.Context, expenseID, authorID, body string) (*entity.Note, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: note body is required", entity.ErrValidation)
	}
	if _, err := s.loadExpense(ctx, expenseID); err != nil {
		return nil, err
	}

	note := &entity.Note{
		ID:        uuid.NewString(),
		ExpenseID: expenseID,
		AuthorID:  authorID,
		Body:      strings.TrimSpace(body),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// ListNotes lists an expense's notes, oldest first
func (s *expenseServiceImpl) ListNotes(ctx context.Context, expenseID string) ([]*entity.Note, error) {
	if _, err := s.loadExpense(ctx, expenseID); err != nil {
		return nil, err
	}
	return s.noteRepo.ListByExpense(ctx, expenseID)
}

func (s *expenseServiceImpl) loadExpense(ctx context.Context, expenseID string) (*entity.Expense, error) {
	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, fmt.Errorf("%w: expense %s", entity.ErrNotFound, expenseID)
	}
	return expense, nil
}
