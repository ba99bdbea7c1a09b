package auth

import (
	"time"

	"github.com/platinummonkey/scribe/pkg/rbac"
)

// User represents an account
type User struct {
	ID           int64     `json:"id"`
	DisplayName  string    `json:"displayname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // write-only
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OwnerID makes a user its own owner for self-service checks
func (u *User) OwnerID() int64 {
	return u.ID
}

// AccessToken represents an issued bearer token
type AccessToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"` // Never expose hash
	TokenPrefix string     `json:"token_prefix"`
	Name        string     `json:"name"`
	ExpiresAt   time.Time  `json:"expires_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// Live reports whether the token is neither revoked nor expired at now
func (t *AccessToken) Live(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// AuthContext holds the authenticated actor for a request
type AuthContext struct {
	User  *User
	Roles []rbac.Role
	Token *AccessToken
}

// ID returns the acting user's id
func (ac *AuthContext) ID() int64 {
	if ac == nil || ac.User == nil {
		return 0
	}
	return ac.User.ID
}

// HasRole checks if the actor holds a role by name
func (ac *AuthContext) HasRole(name string) bool {
	if ac == nil {
		return false
	}
	return rbac.HasRole(ac.Roles, name)
}

// HasPermission checks the union of the actor's role permissions
func (ac *AuthContext) HasPermission(p rbac.Permission) bool {
	if ac == nil {
		return false
	}
	return rbac.HasPermission(ac.Roles, p)
}

// IsAdmin is shorthand for HasRole(rbac.RoleAdmin)
func (ac *AuthContext) IsAdmin() bool {
	return ac.HasRole(rbac.RoleAdmin)
}
