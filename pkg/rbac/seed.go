package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/scribe/pkg/storage"
)

// RoleDefinition is a role name with the permissions it is seeded with
type RoleDefinition struct {
	Name        string
	Permissions []Permission
}

// DefaultRoles returns the seeded roles in insertion order
func DefaultRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Name: RoleDefault,
		},
		{
			Name: RoleAdmin,
			Permissions: []Permission{
				PermManageUsers,
				PermManageRoles,
				PermManagePermissions,
				PermPostComments,
				PermPutAllComments,
				PermDeleteAllComments,
				PermPostPosts,
				PermPutAllPosts,
				PermDeleteAllPosts,
				PermPostTags,
				PermPutTags,
				PermDeleteTags,
			},
		},
		{
			Name: RoleEditor,
			Permissions: []Permission{
				PermPostComments,
				PermPutOwnComments,
				PermDeleteOwnComments,
				PermPostPosts,
				PermPutOwnPosts,
				PermDeleteOwnPosts,
			},
		},
		{
			Name: RoleCommenter,
			Permissions: []Permission{
				PermPostComments,
				PermPutOwnComments,
				PermDeleteOwnComments,
			},
		},
	}
}

// Seed creates the permission vocabulary and default roles. Existing rows are
// left alone, so Seed is safe to run on every start.
func (s *Store) Seed(ctx context.Context) error {
	return s.inTx(ctx, func(q storage.Querier) error {
		now := time.Now().UTC()
		tx := &Store{db: s.db, q: q, dialect: s.dialect}

		for _, perm := range allPermissions {
			if _, err := q.ExecContext(ctx,
				"INSERT INTO permissions (name, created_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING",
				string(perm), now,
			); err != nil {
				return fmt.Errorf("failed to seed permission %s: %w", perm, err)
			}
		}

		for _, def := range DefaultRoles() {
			role, err := tx.FindRoleByName(ctx, def.Name)
			if errors.Is(err, ErrRoleNotFound) {
				if _, err := tx.CreateRole(ctx, def.Name, def.Permissions); err != nil {
					return fmt.Errorf("failed to seed role %s: %w", def.Name, err)
				}
				continue
			}
			if err != nil {
				return err
			}
			if err := grantPermissions(ctx, q, role.ID, def.Permissions, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// RequireSeededRoles fails when any role referenced by the lifecycle rules is
// missing. Callers treat this as a fatal configuration error.
func (s *Store) RequireSeededRoles(ctx context.Context) error {
	for _, name := range []string{RoleAdmin, RoleEditor, RoleCommenter} {
		if _, err := s.FindRoleByName(ctx, name); err != nil {
			return fmt.Errorf("required role %q is not available: %w", name, err)
		}
	}
	return nil
}
