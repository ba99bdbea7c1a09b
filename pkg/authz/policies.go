package authz

import (
	"fmt"

	"github.com/platinummonkey/scribe/pkg/rbac"
)

// policy evaluates one (resource, action) pair for an authenticated actor
type policy func(actor Subject, target Owned) (allowed bool, reason string)

type policyKey struct {
	resource Resource
	action   Action
}

// requirePermission allows actors holding p
func requirePermission(p rbac.Permission) policy {
	return func(actor Subject, _ Owned) (bool, string) {
		if actor.HasPermission(p) {
			return true, fmt.Sprintf("granted %s", p)
		}
		return false, fmt.Sprintf("missing permission %s", p)
	}
}

// requireOwnPermission allows actors holding p who also own the target
func requireOwnPermission(p rbac.Permission) policy {
	return func(actor Subject, target Owned) (bool, string) {
		if !actor.HasPermission(p) {
			return false, fmt.Sprintf("missing permission %s", p)
		}
		if target == nil {
			return false, "target required for ownership check"
		}
		if target.OwnerID() != actor.ID() {
			return false, "actor does not own the target"
		}
		return true, fmt.Sprintf("granted %s on owned target", p)
	}
}

// requireSelf allows actors acting on their own user record
func requireSelf(actor Subject, target Owned) (bool, string) {
	if target == nil {
		return false, "target required for self check"
	}
	if target.OwnerID() != actor.ID() {
		return false, "actors may only act on their own account"
	}
	return true, "self"
}

// "all" permission variants are deliberately absent: only the admin
// override reaches other users' content.
var policies = map[policyKey]policy{
	{ResourcePost, ActionCreate}: requirePermission(rbac.PermPostPosts),
	{ResourcePost, ActionUpdate}: requireOwnPermission(rbac.PermPutOwnPosts),
	{ResourcePost, ActionDelete}: requireOwnPermission(rbac.PermDeleteOwnPosts),

	{ResourceComment, ActionCreate}: requirePermission(rbac.PermPostComments),
	{ResourceComment, ActionUpdate}: requireOwnPermission(rbac.PermPutOwnComments),
	{ResourceComment, ActionDelete}: requireOwnPermission(rbac.PermDeleteOwnComments),

	{ResourceTag, ActionCreate}: requirePermission(rbac.PermPostTags),
	{ResourceTag, ActionUpdate}: requirePermission(rbac.PermPutTags),
	{ResourceTag, ActionDelete}: requirePermission(rbac.PermDeleteTags),

	{ResourceUser, ActionView}:      requireSelf,
	{ResourceUser, ActionUpdate}:    requireSelf,
	{ResourceUser, ActionDelete}:    requireSelf,
	{ResourceUser, ActionViewAny}:   requirePermission(rbac.PermManageUsers),
	{ResourceUser, ActionViewRoles}: requirePermission(rbac.PermManageRoles),
}

func ruleName(resource Resource, action Action) string {
	return string(resource) + "." + string(action)
}
