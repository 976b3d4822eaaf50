package auth

import (
	"fmt"
	"go-moodle-catalog/internal/logger"

	"github.com/casbin/casbin/v2"
)

// defaultPolicies open the public catalog to everyone and the admin area to admins.
var defaultPolicies = [][]string{
	{RoleAnonymous, "/", "GET"},
	{RoleAnonymous, "/cursos", "GET"},
	{RoleAnonymous, "/api/*", "GET"},
	{RoleAnonymous, "/sitemap.xml", "GET"},
	{RoleAnonymous, "/robots.txt", "GET"},
	{RoleAnonymous, "/auth/*", "GET"},
	{RoleAnonymous, "/auth/logout", "POST"},

	{RoleAdmin, "/admin", "GET"},
	{RoleAdmin, "/admin/*", "*"},
}

// SeedDefaultPolicies adds the default policies and grants the admin role to
// subjects. Existing rules are left alone, so it is safe on every start.
func SeedDefaultPolicies(e casbin.IEnforcer, subjects []string, log logger.Logger) error {
	for _, p := range defaultPolicies {
		if has, _ := e.HasPolicy(p); has {
			continue
		}
		if _, err := e.AddPolicy(p); err != nil {
			return fmt.Errorf("failed to add policy %v: %w", p, err)
		}
	}

	// Admins can do everything anonymous users can.
	if has, _ := e.HasRoleForUser(RoleAdmin, RoleAnonymous); !has {
		if _, err := e.AddRoleForUser(RoleAdmin, RoleAnonymous); err != nil {
			return fmt.Errorf("failed to add role %s -> %s: %w", RoleAdmin, RoleAnonymous, err)
		}
	}

	for _, sub := range subjects {
		if sub == "" {
			continue
		}
		if has, _ := e.HasRoleForUser(sub, RoleAdmin); has {
			continue
		}
		if _, err := e.AddRoleForUser(sub, RoleAdmin); err != nil {
			return fmt.Errorf("failed to grant admin to %q: %w", sub, err)
		}
		log.With(map[string]interface{}{"subject": sub}).Info("Granted admin role")
	}
	return nil
}
