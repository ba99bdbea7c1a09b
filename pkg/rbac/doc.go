// Package rbac provides the permission vocabulary, roles and role membership
// store for scribe.
//
// # Permissions
//
// Permissions are opaque names grouped by resource and scope. "own" variants
// apply to resources the actor created, "all" variants to any resource:
//
//	manage-users, manage-roles, manage-permissions
//	post-comments, put-own-comments, put-all-comments, delete-own-comments, delete-all-comments
//	post-posts,    put-own-posts,    put-all-posts,    delete-own-posts,    delete-all-posts
//	post-tags, put-tags, delete-tags
//
// The set is fixed. AllPermissions returns it and IsKnown checks membership.
//
// # Roles
//
// A role is a named set of permissions. Users hold any number of roles and
// their effective permissions are the union over those roles:
//
//	roles, err := store.GetUserRoles(ctx, store.DB(), userID)
//	if rbac.HasPermission(roles, rbac.PermPostPosts) {
//		// may create posts
//	}
//
// The seeded roles are admin, editor, commenter and an unused "foo" role. The
// names admin, editor and commenter are referenced literally by the account
// lifecycle rules and must not be renamed.
//
// # Membership
//
// SyncRoles is the only operation that replaces a user's role set. It deletes
// and re-inserts inside one transaction so readers never observe a partially
// applied set. CountMembers and CountEnabledMembers always hit the database.
// They are used by checks that must see live membership.
//
// # Locking
//
// LockRole takes a row lock on a role (postgres only). The account lifecycle
// guard locks the admin role before counting its enabled members, which
// serializes concurrent disable and demote requests.
package rbac
