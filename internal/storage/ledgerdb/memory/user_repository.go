package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

type UserRepository struct {
	b backend
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*ledgerdb.User, error) {
	var result *ledgerdb.User
	err := r.b.view(func(s *store) error {
		id, ok := s.usersByEmail[email]
		if !ok {
			return nil
		}
		if u, found := s.users[id]; found {
			cp := *u
			result = &cp
		}
		return nil
	})
	return result, err
}

func (r *UserRepository) RolesFor(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var roles []string
	err := r.b.view(func(s *store) error {
		roles = append([]string(nil), s.userRoles[userID]...)
		return nil
	})
	sort.Strings(roles)
	return roles, err
}

func (r *UserRepository) PermissionsFor(ctx context.Context, roles []string) ([]string, error) {
	seen := make(map[string]bool)
	var perms []string
	err := r.b.view(func(s *store) error {
		for _, role := range roles {
			for _, perm := range s.rolePerms[role] {
				if !seen[perm] {
					seen[perm] = true
					perms = append(perms, perm)
				}
			}
		}
		return nil
	})
	sort.Strings(perms)
	return perms, err
}

func (r *UserRepository) PolicyFor(ctx context.Context, permissionCode string) (*ledgerdb.Policy, error) {
	var result *ledgerdb.Policy
	err := r.b.view(func(s *store) error {
		if p, ok := s.policies[permissionCode]; ok {
			cp := *p
			cp.AllowedPlans = append([]string(nil), p.AllowedPlans...)
			cp.AllowedRegions = append([]string(nil), p.AllowedRegions...)
			result = &cp
		}
		return nil
	})
	return result, err
}

// SeedUser registers a user with roles for tests.
func (r *UserRepository) SeedUser(u *ledgerdb.User, roles []string) {
	r.b.mutate(func(s *store) error {
		cp := *u
		s.users[u.ID] = &cp
		s.usersByEmail[u.Email] = u.ID
		s.userRoles[u.ID] = append([]string(nil), roles...)
		return nil
	})
}

// SeedGrants registers role permission grants and an optional policy for tests.
func (r *UserRepository) SeedGrants(rolePerms map[string][]string, policies []ledgerdb.Policy) {
	r.b.mutate(func(s *store) error {
		for role, perms := range rolePerms {
			s.rolePerms[role] = append([]string(nil), perms...)
		}
		for _, p := range policies {
			cp := p
			s.policies[p.PermissionCode] = &cp
		}
		return nil
	})
}
