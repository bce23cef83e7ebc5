package auth

import (
	"strings"

	"github.com/easybody/auth-gateway/internal/domain"
)

type protectedRoute struct {
	prefix string
	roles  []domain.Role
}

// protectedRoutes is ordered from most to least specific.
var protectedRoutes = []protectedRoute{
	{prefix: "/dashboard/admin", roles: []domain.Role{domain.RoleAdmin}},
	{prefix: "/dashboard/gym-staff", roles: []domain.Role{domain.RoleGymStaff}},
	{prefix: "/dashboard/pt", roles: []domain.Role{domain.RoleTrainer}},
	{prefix: "/offers/create", roles: []domain.Role{domain.RoleTrainer, domain.RoleGymStaff}},
	{prefix: "/gyms/create", roles: []domain.Role{domain.RoleGymStaff}},
	{prefix: "/trainers/create", roles: []domain.Role{domain.RoleTrainer}},
	{prefix: "/dashboard", roles: domain.Roles},
	{prefix: "/profile", roles: domain.Roles},
}

// RequiredRoles returns the roles allowed on path and whether path is role gated at all.
func RequiredRoles(path string) ([]domain.Role, bool) {
	for _, r := range protectedRoutes {
		if path == r.prefix || strings.HasPrefix(path, r.prefix+"/") {
			return r.roles, true
		}
	}
	return nil, false
}

// RoleAllowed reports whether role may open path. Paths without a role gate are open to everyone.
func RoleAllowed(role domain.Role, path string) bool {
	allowed, gated := RequiredRoles(path)
	if !gated {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
