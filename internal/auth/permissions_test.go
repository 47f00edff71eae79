package auth

import (
	"slices"
	"testing"
)

func TestHasPermission_SuperAdmin(t *testing.T) {
	// Superadmin should have all permissions
	allPerms := []Permission{
		PermEventsRead, PermEventsManage, PermChurchRead,
		PermAccountsManage, PermAuditRead, PermTenantsAssign,
	}

	for _, perm := range allPerms {
		if !HasPermission(RoleSuperAdmin, perm) {
			t.Errorf("superadmin should have %s", perm)
		}
	}
}

func TestHasPermission_Admin(t *testing.T) {
	should := []Permission{
		PermEventsRead, PermEventsManage, PermChurchRead,
		PermAccountsManage, PermAuditRead,
	}
	shouldNot := []Permission{PermTenantsAssign}

	for _, perm := range should {
		if !HasPermission(RoleAdmin, perm) {
			t.Errorf("admin should have %s", perm)
		}
	}
	for _, perm := range shouldNot {
		if HasPermission(RoleAdmin, perm) {
			t.Errorf("admin should NOT have %s", perm)
		}
	}
}

func TestHasPermission_User(t *testing.T) {
	should := []Permission{PermEventsRead, PermChurchRead}
	shouldNot := []Permission{
		PermEventsManage, PermAccountsManage,
		PermAuditRead, PermTenantsAssign,
	}

	for _, perm := range should {
		if !HasPermission(RoleUser, perm) {
			t.Errorf("user should have %s", perm)
		}
	}
	for _, perm := range shouldNot {
		if HasPermission(RoleUser, perm) {
			t.Errorf("user should NOT have %s", perm)
		}
	}
}

func TestHasPermission_InvalidRole(t *testing.T) {
	if HasPermission(Role("nonexistent"), PermEventsRead) {
		t.Error("unknown role should have no permissions")
	}
}

func TestPermissionsForRole(t *testing.T) {
	perms := PermissionsForRole(RoleAdmin)
	if len(perms) == 0 {
		t.Fatal("PermissionsForRole(admin) should return permissions")
	}

	// Should return a copy, not the original slice
	perms[0] = "modified"
	original := PermissionsForRole(RoleAdmin)
	if original[0] == "modified" {
		t.Error("PermissionsForRole should return a copy, not the original")
	}
}

func TestPermissionsForRole_Unknown(t *testing.T) {
	if perms := PermissionsForRole(Role("unknown")); perms != nil {
		t.Error("PermissionsForRole(unknown) should return nil")
	}
}

func TestRolesWith(t *testing.T) {
	tests := []struct {
		perm Permission
		want []Role
	}{
		{PermEventsRead, []Role{RoleUser, RoleAdmin, RoleSuperAdmin}},
		{PermEventsManage, []Role{RoleAdmin, RoleSuperAdmin}},
		{PermAccountsManage, []Role{RoleAdmin, RoleSuperAdmin}},
		{PermTenantsAssign, []Role{RoleSuperAdmin}},
		{Permission("nothing"), nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.perm), func(t *testing.T) {
			got := RolesWith(tt.perm)
			if !slices.Equal(got, tt.want) {
				t.Errorf("RolesWith(%s) = %v, want %v", tt.perm, got, tt.want)
			}
		})
	}
}

func TestCanAssignRole(t *testing.T) {
	tests := []struct {
		actor, target Role
		want          bool
	}{
		{RoleSuperAdmin, RoleSuperAdmin, true},
		{RoleSuperAdmin, RoleAdmin, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleUser, true},
		{RoleAdmin, RoleSuperAdmin, false},
		{RoleUser, RoleUser, false},
		{RoleAdmin, Role("guest"), false},
	}

	for _, tt := range tests {
		if got := CanAssignRole(tt.actor, tt.target); got != tt.want {
			t.Errorf("CanAssignRole(%s, %s) = %v, want %v", tt.actor, tt.target, got, tt.want)
		}
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAdmin, RoleSuperAdmin} {
		if !IsValidRole(r) {
			t.Errorf("%s should be a valid role", r)
		}
	}
	for _, r := range []Role{"guest", "owner", ""} {
		if IsValidRole(r) {
			t.Errorf("%q should NOT be a valid role", r)
		}
	}
}
