package entity

import "time"

// Role determines the permission set resolved at the access-control boundary
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleManager:  true,
	RoleEmployee: true,
}

// IsValid returns true if the role is a known role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// User is an organization member. ManagerID is the reporting-manager link
// used by the workflow builder when manager approval is enabled.
type User struct {
	ID             string
	OrganizationID string
	Email          string
	Name           string
	PasswordHash   string
	Role           Role
	ManagerID      *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
