package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/finovate/expenseflow/internal/application/port"
	"github.com/finovate/expenseflow/internal/domain/entity"
)

// Claims is the JWT payload carried by every authenticated request
type Claims struct {
	UserID         string      `json:"uid"`
	OrganizationID string      `json:"org"`
	Role           entity.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 access tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenManager creates a token manager
func NewTokenManager(secret string, ttl time.Duration, issuer string) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, issuer: issuer}
}

// Issue signs an access token for the user
func (m *TokenManager) Issue(user *entity.User, now time.Time) (string, error) {
	claims := Claims{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token, returning its claims
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrAuthorization, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", entity.ErrAuthorization)
	}
	return claims, nil
}

// Authenticator verifies credentials and issues tokens
type Authenticator struct {
	userRepo port.UserRepository
	tokens   *TokenManager
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(userRepo port.UserRepository, tokens *TokenManager) *Authenticator {
	return &Authenticator{userRepo: userRepo, tokens: tokens}
}

// Login checks the email and password and returns a signed token plus the
// authenticated user. Unknown emails and bad passwords yield the same error.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, *entity.User, error) {
	user, err := a.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !user.IsActive {
		return "", nil, fmt.Errorf("%w: invalid credentials", entity.ErrAuthorization)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("%w: invalid credentials", entity.ErrAuthorization)
	}

	token, err := a.tokens.Issue(user, time.Now().UTC())
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
