package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

const userColumns = `id, organization_id, email, name, password_hash, role,
	manager_id, is_active, created_at, updated_at`

// UserRepository implements port.UserRepository on sqlite
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var managerID sql.NullString
	if user.ManagerID != nil {
		managerID = sql.NullString{String: *user.ManagerID, Valid: true}
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		user.ID,
		user.OrganizationID,
		user.Email,
		user.Name,
		user.PasswordHash,
		string(user.Role),
		managerID,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID, or nil when absent
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a user by email, or nil when absent
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return r.getOne(ctx, query, email)
}

// ListByOrganization lists the organization's members ordered by name
func (r *UserRepository) ListByOrganization(ctx context.Context, orgID string) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE organization_id = ? ORDER BY name, id`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, orgID)
	if err != nil {
		r.logger.Error("Failed to list users", zap.String("org_id", orgID), zap.Error(err))
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// FirstActiveAdmin returns the active admin with the lexically smallest id,
// or nil when the organization has none
func (r *UserRepository) FirstActiveAdmin(ctx context.Context, orgID string) (*entity.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE organization_id = ? AND role = ? AND is_active = TRUE
		ORDER BY id LIMIT 1`
	return r.getOne(ctx, query, orgID, string(entity.RoleAdmin))
}

// Update writes a user's mutable fields
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	query := `
		UPDATE users
		SET email = ?, name = ?, password_hash = ?, role = ?,
			manager_id = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	var managerID sql.NullString
	if user.ManagerID != nil {
		managerID = sql.NullString{String: *user.ManagerID, Valid: true}
	}

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		user.Email,
		user.Name,
		user.PasswordHash,
		string(user.Role),
		managerID,
		user.IsActive,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update user", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.User, error) {
	user, err := scanUser(getExecutor(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Error(err))
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*entity.User, error) {
	var (
		user      entity.User
		role      string
		managerID sql.NullString
	)

	err := row.Scan(
		&user.ID,
		&user.OrganizationID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&role,
		&managerID,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Role = entity.Role(role)
	if managerID.Valid {
		user.ManagerID = &managerID.String
	}
	return &user, nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
