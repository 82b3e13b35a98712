package auth

import "jaterm_gateway/internal/models"

// HasPermission reports whether role may reach something gated at required.
// Roles are ordered SUPER_ADMIN > ADMIN > OPERATOR > DEVELOPER > VIEWER.
func HasPermission(role, required models.Role) bool {
	if !role.IsValid() {
		return false
	}
	return role.AtLeast(required)
}

// HasAnyPermission reports whether role satisfies at least one of required.
// An empty list admits every valid role.
func HasAnyPermission(role models.Role, required ...models.Role) bool {
	if len(required) == 0 {
		return role.IsValid()
	}
	for _, r := range required {
		if HasPermission(role, r) {
			return true
		}
	}
	return false
}
