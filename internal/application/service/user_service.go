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

// CreateUserInput carries the fields an admin supplies for a new member
type CreateUserInput struct {
	OrganizationID string
	Email          string
	Name           string
	Password       string
	Role           entity.Role
	ManagerID      *string
}

// UserService manages organization members and reporting lines
type UserService interface {
	CreateUser(ctx context.Context, in CreateUserInput) (*entity.User, error)
	GetUser(ctx context.Context, userID string) (*entity.User, error)
	ListUsers(ctx context.Context, orgID string) ([]*entity.User, error)
	AssignManager(ctx context.Context, userID string, managerID *string) error
	SetActive(ctx context.Context, userID string, active bool) error
}

type userServiceImpl struct {
	userRepo port.UserRepository
	orgRepo  port.OrganizationRepository
	logger   *zap.Logger
}

// NewUserService creates the user service
func NewUserService(userRepo port.UserRepository, orgRepo port.OrganizationRepository, logger *zap.Logger) UserService {
	return &userServiceImpl{userRepo: userRepo, orgRepo: orgRepo, logger: logger}
}

// CreateUser registers an organization member with a bcrypt password hash
func (s *userServiceImpl) CreateUser(ctx context.Context, in CreateUserInput) (*entity.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", entity.ErrValidation)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", entity.ErrValidation)
	}
	if !in.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", entity.ErrValidation, in.Role)
	}

	org, err := s.orgRepo.GetByID(ctx, in.OrganizationID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, fmt.Errorf("%w: organization %s", entity.ErrNotFound, in.OrganizationID)
	}

	if existing, err := s.userRepo.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: email %s already registered", entity.ErrValidation, email)
	}

	if in.ManagerID != nil {
		if err := s.validateManager(ctx, in.OrganizationID, *in.ManagerID); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &entity.User{
		ID:             uuid.NewString(),
		OrganizationID: in.OrganizationID,
		Email:          email,
		Name:           strings.TrimSpace(in.Name),
		PasswordHash:   string(hash),
		Role:           in.Role,
		ManagerID:      in.ManagerID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User created",
		zap.String("user_id", user.ID),
		zap.String("org_id", in.OrganizationID),
		zap.String("role", string(in.Role)))
	return user, nil
}

// GetUser retrieves one member
func (s *userServiceImpl) GetUser(ctx context.Context, userID string) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", entity.ErrNotFound, userID)
	}
	return user, nil
}

// ListUsers lists the organization's members
func (s *userServiceImpl) ListUsers(ctx context.Context, orgID string) ([]*entity.User, error) {
	return s.userRepo.ListByOrganization(ctx, orgID)
}

// AssignManager sets or clears a member's reporting manager. Affects only
// workflows built after the change.
func (s *userServiceImpl) AssignManager(ctx context.Context, userID string, managerID *string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if managerID != nil {
		if *managerID == userID {
			return fmt.Errorf("%w: user cannot manage themselves", entity.ErrValidation)
		}
		if err := s.validateManager(ctx, user.OrganizationID, *managerID); err != nil {
			return err
		}
	}

	user.ManagerID = managerID
	user.UpdatedAt = time.Now().UTC()
	return s.userRepo.Update(ctx, user)
}

// SetActive toggles a member's active flag
func (s *userServiceImpl) SetActive(ctx context.Context, userID string, active bool) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	user.IsActive = active
	user.UpdatedAt = time.Now().UTC()
	return s.userRepo.Update(ctx, user)
}

func (s *userServiceImpl) validateManager(ctx context.Context, orgID, managerID string) error {
	manager, err := s.userRepo.GetByID(ctx, managerID)
	if err != nil {
		return err
	}
	if manager == nil || manager.OrganizationID != orgID || !manager.IsActive {
		return fmt.Errorf("%w: manager %s is not an active organization member", entity.ErrValidation, managerID)
	}
	return nil
}
