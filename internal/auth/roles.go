// Package auth provides the per-role password gate and session handling
// for the surveillance workflow.
package auth

// Role represents one of the three workflow roles.
type Role string

const (
	// RoleClinician registers suspected cases (phase 1)
	RoleClinician Role = "clinician"
	// RoleEpidemiologist investigates and finalizes cases (phase 2)
	RoleEpidemiologist Role = "epidemiologist"
	// RoleAdmin reads the linelist and aggregates (phase 3)
	RoleAdmin Role = "admin"
)

// Roles lists every workflow role
var Roles = []Role{RoleClinician, RoleEpidemiologist, RoleAdmin}

// Valid reports whether the role is one of the three workflow roles
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Permission represents a specific action on a resource.
type Permission string

const (
	PermCaseRegister   Permission = "case.register"
	PermCaseRead       Permission = "case.read"
	PermCaseFinalize   Permission = "case.finalize"
	PermLinelistRead   Permission = "linelist.read"
	PermLinelistExport Permission = "linelist.export"
)

// RolePermissions maps roles to their permissions.
var RolePermissions = map[Role][]Permission{
	RoleClinician: {
		PermCaseRegister, PermCaseRead,
	},
	RoleEpidemiologist: {
		PermCaseRead, PermCaseFinalize,
	},
	RoleAdmin: {
		PermCaseRead, PermLinelistRead, PermLinelistExport,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}
