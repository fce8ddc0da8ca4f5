package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

const ruleColumns = `id, organization_id, name, type, percentage, approvers,
	min_amount, max_amount, categories, position, is_active, created_at, updated_at`

// OrganizationRepository implements port.OrganizationRepository on sqlite.
// Settings, rule approver lists and rule category filters travel as JSON
// columns.
type OrganizationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB, logger *zap.Logger) port.OrganizationRepository {
	return &OrganizationRepository{db: db, logger: logger}
}

// Create inserts a new organization
func (r *OrganizationRepository) Create(ctx context.Context, org *entity.Organization) error {
	settingsJSON, err := json.Marshal(org.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	query := `
		INSERT INTO organizations (id, name, base_currency, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		org.ID, org.Name, org.BaseCurrency, string(settingsJSON), org.CreatedAt, org.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create organization", zap.String("org_id", org.ID), zap.Error(err))
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// GetByID retrieves an organization, or nil when absent
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*entity.Organization, error) {
	query := `SELECT id, name, base_currency, settings, created_at, updated_at
		FROM organizations WHERE id = ?`

	var (
		org          entity.Organization
		settingsJSON string
	)
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.BaseCurrency, &settingsJSON, &org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get organization", zap.String("org_id", id), zap.Error(err))
		return nil, fmt.Errorf("get organization: %w", err)
	}

	if err := json.Unmarshal([]byte(settingsJSON), &org.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &org, nil
}

// UpdateSettings replaces the organization's workflow settings
func (r *OrganizationRepository) UpdateSettings(ctx context.Context, orgID string, settings entity.OrgSettings) error {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	query := `UPDATE organizations SET settings = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, string(settingsJSON), orgID)
	if err != nil {
		r.logger.Error("Failed to update settings", zap.String("org_id", orgID), zap.Error(err))
		return fmt.Errorf("update settings: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: organization %s", entity.ErrNotFound, orgID)
	}
	return nil
}

// CreateCategory inserts an expense category
func (r *OrganizationRepository) CreateCategory(ctx context.Context, category *entity.Category) error {
	query := `
		INSERT INTO categories (id, organization_id, name, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		category.ID, category.OrganizationID, category.Name, category.IsActive, category.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create category",
			zap.String("org_id", category.OrganizationID),
			zap.String("name", category.Name),
			zap.Error(err))
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

// GetCategory retrieves a category by organization and name, or nil
func (r *OrganizationRepository) GetCategory(ctx context.Context, orgID, name string) (*entity.Category, error) {
	query := `SELECT id, organization_id, name, is_active, created_at
		FROM categories WHERE organization_id = ? AND name = ?`

	var c entity.Category
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, orgID, name).Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.IsActive, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

// ListCategories lists the organization's categories ordered by name
func (r *OrganizationRepository) ListCategories(ctx context.Context, orgID string) ([]*entity.Category, error) {
	query := `SELECT id, organization_id, name, is_active, created_at
		FROM categories WHERE organization_id = ? ORDER BY name`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*entity.Category
	for rows.Next() {
		var c entity.Category
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

// SetCategoryActive toggles a category's active flag
func (r *OrganizationRepository) SetCategoryActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE categories SET is_active = ? WHERE id = ?`
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set category active: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: category %s", entity.ErrNotFound, id)
	}
	return nil
}

// CreateRule inserts an approval rule
func (r *OrganizationRepository) CreateRule(ctx context.Context, rule *entity.ApprovalRule) error {
	approversJSON, err := json.Marshal(rule.Approvers)
	if err != nil {
		return fmt.Errorf("marshal approvers: %w", err)
	}
	categoriesJSON, err := json.Marshal(rule.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	var maxAmount sql.NullString
	if rule.MaxAmount != nil {
		maxAmount = sql.NullString{String: rule.MaxAmount.String(), Valid: true}
	}

	query := `
		INSERT INTO approval_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		rule.ID,
		rule.OrganizationID,
		rule.Name,
		string(rule.Type),
		rule.Percentage,
		string(approversJSON),
		rule.MinAmount.String(),
		maxAmount,
		string(categoriesJSON),
		rule.Position,
		rule.IsActive,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval rule",
			zap.String("org_id", rule.OrganizationID),
			zap.String("name", rule.Name),
			zap.Error(err))
		return fmt.Errorf("create approval rule: %w", err)
	}
	return nil
}

// ListRules lists the organization's approval rules ordered by position.
// Inactive rules are included so admins can inspect and re-enable them.
func (r *OrganizationRepository) ListRules(ctx context.Context, orgID string) ([]entity.ApprovalRule, error) {
	query := `SELECT ` + ruleColumns + `
		FROM approval_rules WHERE organization_id = ? ORDER BY position, id`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, orgID)
	if err != nil {
		r.logger.Error("Failed to list approval rules", zap.String("org_id", orgID), zap.Error(err))
		return nil, fmt.Errorf("list approval rules: %w", err)
	}
	defer rows.Close()

	var rules []entity.ApprovalRule
	for rows.Next() {
		var (
			rule           entity.ApprovalRule
			ruleType       string
			approversJSON  string
			minAmount      string
			maxAmount      sql.NullString
			categoriesJSON string
		)
		err := rows.Scan(
			&rule.ID,
			&rule.OrganizationID,
			&rule.Name,
			&ruleType,
			&rule.Percentage,
			&approversJSON,
			&minAmount,
			&maxAmount,
			&categoriesJSON,
			&rule.Position,
			&rule.IsActive,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan approval rule: %w", err)
		}

		rule.Type = entity.RuleType(ruleType)
		if err := json.Unmarshal([]byte(approversJSON), &rule.Approvers); err != nil {
			return nil, fmt.Errorf("unmarshal approvers: %w", err)
		}
		if err := json.Unmarshal([]byte(categoriesJSON), &rule.Categories); err != nil {
			return nil, fmt.Errorf("unmarshal categories: %w", err)
		}
		if rule.MinAmount, err = scanDecimal(minAmount); err != nil {
			return nil, err
		}
		if maxAmount.Valid {
			bound, err := scanDecimal(maxAmount.String)
			if err != nil {
				return nil, err
			}
			rule.MaxAmount = &bound
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SetRuleActive toggles a rule's active flag
func (r *OrganizationRepository) SetRuleActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE approval_rules SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set rule active: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: approval rule %s", entity.ErrNotFound, id)
	}
	return nil
}

// Verify interface compliance
var _ port.OrganizationRepository = (*OrganizationRepository)(nil)
