package auth

import "slices"

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermEventsRead     Permission = "events:read"
	PermEventsManage   Permission = "events:manage"
	PermChurchRead     Permission = "church:read"
	PermAccountsManage Permission = "accounts:manage"
	PermAuditRead      Permission = "audit:read"
	PermTenantsAssign  Permission = "tenants:assign"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
// Tenant scoping is applied separately by AssertSameTenant.
var rolePermissions = map[Role][]Permission{
	RoleUser: {
		PermEventsRead,
		PermChurchRead,
	},
	RoleAdmin: {
		PermEventsRead,
		PermEventsManage,
		PermChurchRead,
		PermAccountsManage,
		PermAuditRead,
	},
	RoleSuperAdmin: {
		PermEventsRead,
		PermEventsManage,
		PermChurchRead,
		PermAccountsManage,
		PermAuditRead,
		PermTenantsAssign,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	return slices.Clone(perms)
}

// RolesWith returns every role granted perm, in ValidRoles order. Routes
// are declared by permission and the role middleware receives this set.
func RolesWith(perm Permission) []Role {
	var roles []Role
	for _, r := range ValidRoles {
		if HasPermission(r, perm) {
			roles = append(roles, r)
		}
	}
	return roles
}

// CanAssignRole reports whether actor may grant target. Only a superadmin
// can mint another superadmin.
func CanAssignRole(actor, target Role) bool {
	if !IsValidRole(target) {
		return false
	}
	if target == RoleSuperAdmin {
		return actor == RoleSuperAdmin
	}
	return HasPermission(actor, PermAccountsManage)
}
