package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/finovate/expenseflow/internal/domain/entity"
)

type mockUserRepo struct {
	getByEmailFunc func(ctx context.Context, email string) (*entity.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error { return nil }
func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return nil, nil
}
func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	if m.getByEmailFunc != nil {
		return m.getByEmailFunc(ctx, email)
	}
	return nil, nil
}
func (m *mockUserRepo) ListByOrganization(ctx context.Context, orgID string) ([]*entity.User, error) {
	return nil, nil
}
func (m *mockUserRepo) FirstActiveAdmin(ctx context.Context, orgID string) (*entity.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Update(ctx context.Context, user *entity.User) error { return nil }

func testUser(t *testing.T, password string) *entity.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &entity.User{
		ID:             "user-1",
		OrganizationID: "org-1",
		Email:          "alex@example.com",
		PasswordHash:   string(hash),
		Role:           entity.RoleManager,
		IsActive:       true,
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour, "expenseflow")
	user := testUser(t, "correct horse")

	token, err := tm.Issue(user, time.Now().UTC())
	require.NoError(t, err)

	claims, err := tm.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, entity.RoleManager, claims.Role)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm := NewTokenManager("0123456789abcdef0123456789abcdef", time.Minute, "expenseflow")
	user := testUser(t, "pw")

	token, err := tm.Issue(user, time.Now().UTC().Add(-2*time.Minute))
	require.NoError(t, err)

	_, err = tm.Validate(token)
	assert.ErrorIs(t, err, entity.ErrAuthorization)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour, "expenseflow")
	verifier := NewTokenManager("ffffffffffffffffffffffffffffffff", time.Hour, "expenseflow")

	token, err := issuer.Issue(testUser(t, "pw"), time.Now().UTC())
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, entity.ErrAuthorization)
}

func TestAuthenticator_Login(t *testing.T) {
	tm := NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour, "expenseflow")
	user := testUser(t, "correct horse")
	repo := &mockUserRepo{getByEmailFunc: func(ctx context.Context, email string) (*entity.User, error) {
		if email == user.Email {
			return user, nil
		}
		return nil, nil
	}}
	a := NewAuthenticator(repo, tm)

	t.Run("valid credentials", func(t *testing.T) {
		token, got, err := a.Login(context.Background(), user.Email, "correct horse")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := a.Login(context.Background(), user.Email, "wrong")
		assert.ErrorIs(t, err, entity.ErrAuthorization)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := a.Login(context.Background(), "nobody@example.com", "correct horse")
		assert.ErrorIs(t, err, entity.ErrAuthorization)
	})

	t.Run("inactive user", func(t *testing.T) {
		inactive := testUser(t, "pw")
		inactive.IsActive = false
		repo := &mockUserRepo{getByEmailFunc: func(ctx context.Context, email string) (*entity.User, error) {
			return inactive, nil
		}}
		_, _, err := NewAuthenticator(repo, tm).Login(context.Background(), inactive.Email, "pw")
		assert.ErrorIs(t, err, entity.ErrAuthorization)
	})
}

func TestPermissions(t *testing.T) {
	tests := []struct {
		role entity.Role
		perm Permission
		want bool
	}{
		{entity.RoleEmployee, PermSubmitExpenses, true},
		{entity.RoleEmployee, PermApproveExpenses, false},
		{entity.RoleEmployee, PermManageRules, false},
		{entity.RoleManager, PermApproveExpenses, true},
		{entity.RoleManager, PermManageUsers, false},
		{entity.RoleAdmin, PermManageRules, true},
		{entity.RoleAdmin, PermOverride, true},
		{entity.Role("ghost"), PermSubmitExpenses, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasPermission(tt.role, tt.perm),
			"role %s perm %s", tt.role, tt.perm)
	}
}

func TestPermissionsFor_ReturnsCopy(t *testing.T) {
	perms := PermissionsFor(entity.RoleEmployee)
	require.NotEmpty(t, perms)
	perms[0] = Permission("tampered")
	assert.NotEqual(t, Permission("tampered"), PermissionsFor(entity.RoleEmployee)[0])
}
