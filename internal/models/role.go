package models

import "strings"

// Role is a jaTerm user role, highest privilege first in Roles.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleOperator   Role = "OPERATOR"
	RoleDeveloper  Role = "DEVELOPER"
	RoleViewer     Role = "VIEWER"
)

// Roles lists every role, highest privilege first.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleOperator, RoleDeveloper, RoleViewer}

// ParseRole normalises case; unknown names return false.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r.Rank() > 0
}

// Rank is 5 for SUPER_ADMIN down to 1 for VIEWER, 0 when unknown.
func (r Role) Rank() int {
	for i, known := range Roles {
		if r == known {
			return len(Roles) - i
		}
	}
	return 0
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r.IsValid() && r.Rank() >= min.Rank()
}
