package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

// CreateOrganizationInput carries the organization fields plus the initial
// admin account. Every other route requires an authenticated member, so the
// first admin has to be born with the organization itself.
type CreateOrganizationInput struct {
	Name          string
	BaseCurrency  string
	AdminEmail    string
	AdminName     string
	AdminPassword string
}

// OrganizationService manages organization configuration: settings,
// categories and approval rules. Rule edits apply only to expenses created
// afterwards; in-flight workflows keep the chain built at creation.
type OrganizationService interface {
	CreateOrganization(ctx context.Context, in CreateOrganizationInput) (*entity.Organization, *entity.User, error)
	GetOrganization(ctx context.Context, orgID string) (*entity.Organization, error)
	UpdateSettings(ctx context.Context, orgID string, settings entity.OrgSettings) error

	AddCategory(ctx context.Context, orgID, name string) (*entity.Category, error)
	ListCategories(ctx context.Context, orgID string) ([]*entity.Category, error)
	SetCategoryActive(ctx context.Context, orgID, categoryID string, active bool) error

	AddRule(ctx context.Context, rule *entity.ApprovalRule) (*entity.ApprovalRule, error)
	ListRules(ctx context.Context, orgID string) ([]entity.ApprovalRule, error)
	SetRuleActive(ctx context.Context, orgID, ruleID string, active bool) error
}

type orgServiceImpl struct {
	orgRepo   port.OrganizationRepository
	userRepo  port.UserRepository
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewOrganizationService creates the organization service
func NewOrganizationService(
	orgRepo port.OrganizationRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
) OrganizationService {
	return &orgServiceImpl{orgRepo: orgRepo, userRepo: userRepo, txManager: txManager, logger: logger}
}

// CreateOrganization creates an organization with default settings and its
// initial admin user in one transaction. A failure on either side leaves
// neither record behind.
func (s *orgServiceImpl) CreateOrganization(ctx context.Context, in CreateOrganizationInput) (*entity.Organization, *entity.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: organization name is required", entity.ErrValidation)
	}
	baseCurrency := normalizeCurrencyCode(in.BaseCurrency)
	if len(baseCurrency) != 3 {
		return nil, nil, fmt.Errorf("%w: base currency must be a 3-letter code", entity.ErrValidation)
	}

	adminEmail := strings.ToLower(strings.TrimSpace(in.AdminEmail))
	if adminEmail == "" || !strings.Contains(adminEmail, "@") {
		return nil, nil, fmt.Errorf("%w: valid admin email is required", entity.ErrValidation)
	}
	if len(in.AdminPassword) < 8 {
		return nil, nil, fmt.Errorf("%w: admin password must be at least 8 characters", entity.ErrValidation)
	}
	if existing, err := s.userRepo.GetByEmail(ctx, adminEmail); err != nil {
		return nil, nil, err
	} else if existing != nil {
		return nil, nil, fmt.Errorf("%w: email %s already registered", entity.ErrValidation, adminEmail)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	org := &entity.Organization{
		ID:           uuid.NewString(),
		Name:         name,
		BaseCurrency: baseCurrency,
		Settings: entity.OrgSettings{
			IsManagerApproverEnabled: true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	admin := &entity.User{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		Email:          adminEmail,
		Name:           strings.TrimSpace(in.AdminName),
		PasswordHash:   string(hash),
		Role:           entity.RoleAdmin,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orgRepo.Create(ctx, org); err != nil {
			return err
		}
		return s.userRepo.Create(ctx, admin)
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Organization created",
		zap.String("org_id", org.ID),
		zap.String("name", name),
		zap.String("admin_id", admin.ID))
	return org, admin, nil
}

// GetOrganization retrieves one organization
func (s *orgServiceImpl) GetOrganization(ctx context.Context, orgID string) (*entity.Organization, error) {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, fmt.Errorf("%w: organization %s", entity.ErrNotFound, orgID)
	}
	return org, nil
}

// UpdateSettings replaces the organization's workflow settings
func (s *orgServiceImpl) UpdateSettings(ctx context.Context, orgID string, settings entity.OrgSettings) error {
	if settings.MaxExpenseAmount.IsNegative() || settings.AutoApprovalLimit.IsNegative() {
		return fmt.Errorf("%w: limits must not be negative", entity.ErrValidation)
	}
	if _, err := s.GetOrganization(ctx, orgID); err != nil {
		return err
	}
	if err := s.orgRepo.UpdateSettings(ctx, orgID, settings); err != nil {
		return err
	}
	s.logger.Info("Organization settings updated", zap.String("org_id", orgID))
	return nil
}

// AddCategory creates an active expense category
func (s *orgServiceImpl) AddCategory(ctx context.Context, orgID, name string) (*entity.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", entity.ErrValidation)
	}
	if _, err := s.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	if existing, err := s.orgRepo.GetCategory(ctx, orgID, name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: category %q already exists", entity.ErrValidation, name)
	}

	category := &entity.Category{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Name:           name,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.orgRepo.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// ListCategories lists the organization's categories
func (s *orgServiceImpl) ListCategories(ctx context.Context, orgID string) ([]*entity.Category, error) {
	return s.orgRepo.ListCategories(ctx, orgID)
}

// SetCategoryActive toggles a category. Deactivation only affects expenses
// created afterwards.
func (s *orgServiceImpl) SetCategoryActive(ctx context.Context, orgID, categoryID string, active bool) error {
	if _, err := s.GetOrganization(ctx, orgID); err != nil {
		return err
	}
	return s.orgRepo.SetCategoryActive(ctx, categoryID, active)
}

// AddRule appends an approval rule at the end of the evaluation order
func (s *orgServiceImpl) AddRule(ctx context.Context, rule *entity.ApprovalRule) (*entity.ApprovalRule, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: rule is required", entity.ErrValidation)
	}
	if !rule.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown rule type %q", entity.ErrValidation, rule.Type)
	}
	if rule.Type.UsesPercentage() && (rule.Percentage <= 0 || rule.Percentage > 100) {
		return nil, fmt.Errorf("%w: percentage must be in (0,100]", entity.ErrValidation)
	}
	if (rule.Type == entity.RuleTypeSpecific || rule.Type == entity.RuleTypeHybrid) && len(rule.Approvers) == 0 {
		return nil, fmt.Errorf("%w: %s rule needs at least one approver", entity.ErrValidation, rule.Type)
	}
	if rule.MaxAmount != nil && rule.MaxAmount.LessThan(rule.MinAmount) {
		return nil, fmt.Errorf("%w: max amount below min amount", entity.ErrValidation)
	}
	if _, err := s.GetOrganization(ctx, rule.OrganizationID); err != nil {
		return nil, err
	}

	for _, approver := range rule.Approvers {
		user, err := s.userRepo.GetByID(ctx, approver.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil || user.OrganizationID != rule.OrganizationID {
			return nil, fmt.Errorf("%w: approver %s is not an organization member", entity.ErrValidation, approver.UserID)
		}
	}

	existing, err := s.orgRepo.ListRules(ctx, rule.OrganizationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rule.ID = uuid.NewString()
	rule.Position = len(existing)
	rule.IsActive = true
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := s.orgRepo.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("Approval rule created",
		zap.String("org_id", rule.OrganizationID),
		zap.String("rule_id", rule.ID),
		zap.String("type", string(rule.Type)))
	return rule, nil
}

// ListRules lists the organization's rules in evaluation order
func (s *orgServiceImpl) ListRules(ctx context.Context, orgID string) ([]entity.ApprovalRule, error) {
	return s.orgRepo.ListRules(ctx, orgID)
}

// SetRuleActive toggles a rule without touching in-flight workflows
func (s *orgServiceImpl) SetRuleActive(ctx context.Context, orgID, ruleID string, active bool) error {
	if _, err := s.GetOrganization(ctx, orgID); err != nil {
		return err
	}
	return s.orgRepo.SetRuleActive(ctx, ruleID, active)
}
