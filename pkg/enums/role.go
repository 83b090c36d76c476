package enums

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles stored per email.
type Role string

const (
	RoleUser       Role = "user"
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
)

var validRoles = []Role{
	RoleUser,
	RoleMember,
	RoleAdmin,
	RoleSuperAdmin,
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// Roles returns every known role in ascending privilege order.
func Roles() []Role {
	out := make([]Role, len(validRoles))
	copy(out, validRoles)
	return out
}

// ParseRole converts raw input into a Role. Matching is case-insensitive so
// "superadmin" and "superAdmin" both resolve.
func ParseRole(value string) (Role, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validRoles {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
