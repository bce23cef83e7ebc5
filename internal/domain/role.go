package domain

import "strings"

// Role is the marketplace role attached to an identity.
type Role string

const (
	RoleClient   Role = "CLIENT_USER"
	RoleTrainer  Role = "PT_USER"
	RoleGymStaff Role = "GYM_STAFF"
	RoleAdmin    Role = "ADMIN"
)

// Roles lists every supported role.
var Roles = []Role{RoleClient, RoleTrainer, RoleGymStaff, RoleAdmin}

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleTrainer, RoleGymStaff, RoleAdmin:
		return true
	}
	return false
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// HomePath is where a user lands after signing in.
func (r Role) HomePath() string {
	switch r {
	case RoleAdmin:
		return "/dashboard/admin"
	case RoleGymStaff:
		return "/dashboard/gym-staff"
	case RoleTrainer:
		return "/dashboard/pt"
	default:
		return "/"
	}
}
