package validation

import (
	"context"
	"fmt"

	"github.com/platinummonkey/scribe/pkg/rbac"
)

const (
	MsgSoleAdminDisable    = "As the only admin you may not disable your account."
	MsgSoleAdminRemoveRole = "As the only admin you may not remove your admin role."
)

// AdminFacts is the admin state the sole-admin rules are evaluated against
type AdminFacts struct {
	AdminRoleID   int64
	EnabledAdmins int
}

// AdminSource loads the facts. *rbac.Store satisfies it, including one
// bound to a transaction.
type AdminSource interface {
	FindRoleByName(ctx context.Context, name string) (*rbac.Role, error)
	CountEnabledMembers(ctx context.Context, roleID int64) (int, error)
}

// LoadAdminFacts reads the admin role id and the number of enabled admins
func LoadAdminFacts(ctx context.Context, src AdminSource) (AdminFacts, error) {
	role, err := src.FindRoleByName(ctx, rbac.RoleAdmin)
	if err != nil {
		return AdminFacts{}, fmt.Errorf("failed to find admin role: %w", err)
	}
	count, err := src.CountEnabledMembers(ctx, role.ID)
	if err != nil {
		return AdminFacts{}, fmt.Errorf("failed to count admins: %w", err)
	}
	return AdminFacts{AdminRoleID: role.ID, EnabledAdmins: count}, nil
}

// UpdateSubject identifies who is updating whom
type UpdateSubject struct {
	ActorID      int64
	TargetID     int64
	ActorIsAdmin bool
}

// soleAdminSelf reports whether the actor is editing themselves while being
// the only enabled admin
func (f AdminFacts) soleAdminSelf(subj UpdateSubject) bool {
	return subj.ActorIsAdmin && subj.ActorID == subj.TargetID && f.EnabledAdmins == 1
}

// SoleAdminRules applies the two self-service rules that keep at least one
// enabled admin
func SoleAdminRules(facts AdminFacts, subj UpdateSubject, in UserUpdateInput) Errors {
	errs := Errors{}
	if !facts.soleAdminSelf(subj) {
		return errs
	}

	if in.Enabled != nil && !*in.Enabled {
		errs.Add("enabled", MsgSoleAdminDisable)
	}

	if in.Roles != nil && !containsID(*in.Roles, facts.AdminRoleID) {
		errs.Add("roles", MsgSoleAdminRemoveRole)
	}

	return errs
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
