package rbac

import (
	"sort"
	"time"
)

// Permission names an allowed action
type Permission string

const (
	PermManageUsers       Permission = "manage-users"
	PermManageRoles       Permission = "manage-roles"
	PermManagePermissions Permission = "manage-permissions"

	PermPostComments      Permission = "post-comments"
	PermPutOwnComments    Permission = "put-own-comments"
	PermPutAllComments    Permission = "put-all-comments"
	PermDeleteOwnComments Permission = "delete-own-comments"
	PermDeleteAllComments Permission = "delete-all-comments"

	PermPostPosts      Permission = "post-posts"
	PermPutOwnPosts    Permission = "put-own-posts"
	PermPutAllPosts    Permission = "put-all-posts"
	PermDeleteOwnPosts Permission = "delete-own-posts"
	PermDeleteAllPosts Permission = "delete-all-posts"

	PermPostTags   Permission = "post-tags"
	PermPutTags    Permission = "put-tags"
	PermDeleteTags Permission = "delete-tags"
)

var allPermissions = []Permission{
	PermManageUsers,
	PermManageRoles,
	PermManagePermissions,
	PermPostComments,
	PermPutOwnComments,
	PermPutAllComments,
	PermDeleteOwnComments,
	PermDeleteAllComments,
	PermPostPosts,
	PermPutOwnPosts,
	PermPutAllPosts,
	PermDeleteOwnPosts,
	PermDeleteAllPosts,
	PermPostTags,
	PermPutTags,
	PermDeleteTags,
}

// AllPermissions returns the complete permission vocabulary
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// IsKnown reports whether p belongs to the vocabulary
func IsKnown(p Permission) bool {
	for _, known := range allPermissions {
		if known == p {
			return true
		}
	}
	return false
}

// Role names referenced by the lifecycle rules
const (
	RoleAdmin     = "admin"
	RoleEditor    = "editor"
	RoleCommenter = "commenter"
	RoleDefault   = "foo"
)

// Role is a named set of permissions
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Has reports whether the role grants p
func (r Role) Has(p Permission) bool {
	for _, granted := range r.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

// HasPermission unions permissions across roles
func HasPermission(roles []Role, p Permission) bool {
	for _, role := range roles {
		if role.Has(p) {
			return true
		}
	}
	return false
}

// HasRole reports whether any role carries the given name (case-sensitive)
func HasRole(roles []Role, name string) bool {
	for _, role := range roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

// RoleIDs returns the ids of roles in order
func RoleIDs(roles []Role) []int64 {
	ids := make([]int64, 0, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
	}
	return ids
}

// SortByName orders roles by name, in place
func SortByName(roles []Role) {
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
}

// SortedPermissionNames returns the role's permissions as sorted strings
func (r Role) SortedPermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
