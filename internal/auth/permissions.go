package auth

import "github.com/finovate/expenseflow/internal/domain/entity"

// Permission names an operation a request may perform. The HTTP layer gates
// endpoints on permissions rather than on raw roles.
type Permission string

// Permission tokens
const (
	PermSubmitExpenses  Permission = "submit_expenses"
	PermViewOwn         Permission = "view_own_expenses"
	PermApproveExpenses Permission = "approve_expenses"
	PermViewTeam        Permission = "view_team_expenses"
	PermViewAll         Permission = "view_all_expenses"
	PermManageOrg       Permission = "manage_organization"
	PermManageUsers     Permission = "manage_users"
	PermManageRules     Permission = "manage_rules"
	PermOverride        Permission = "override_approvals"
	PermReports         Permission = "view_reports"
)

// rolePermissions maps each role to what it may do. Admins hold every
// permission, managers add approval and team visibility on top of the
// employee set.
var rolePermissions = map[entity.Role][]Permission{
	entity.RoleEmployee: {
		PermSubmitExpenses,
		PermViewOwn,
	},
	entity.RoleManager: {
		PermSubmitExpenses,
		PermViewOwn,
		PermApproveExpenses,
		PermViewTeam,
	},
	entity.RoleAdmin: {
		PermSubmitExpenses,
		PermViewOwn,
		PermApproveExpenses,
		PermViewTeam,
		PermViewAll,
		PermManageOrg,
		PermManageUsers,
		PermManageRules,
		PermOverride,
		PermReports,
	},
}

// HasPermission reports whether the role grants the permission
func HasPermission(role entity.Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsFor returns the role's permission set
func PermissionsFor(role entity.Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
