package authz

import (
	"errors"
	"time"

	"github.com/platinummonkey/scribe/pkg/rbac"
)

var (
	// ErrUnauthenticated is returned when no actor is present
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the actor is known but denied
	ErrForbidden = errors.New("forbidden")
)

// Resource identifies the kind of object being acted on
type Resource string

const (
	ResourcePost    Resource = "post"
	ResourceComment Resource = "comment"
	ResourceTag     Resource = "tag"
	ResourceUser    Resource = "user"
)

// Action identifies what the actor wants to do
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionView      Action = "view"
	ActionViewAny   Action = "viewAny"
	ActionViewRoles Action = "viewRoles"
)

// Subject is the acting user. An ID of zero or less means nobody is
// authenticated, which lets a nil *auth.AuthContext be passed directly.
type Subject interface {
	ID() int64
	HasRole(name string) bool
	HasPermission(p rbac.Permission) bool
}

// Owned is implemented by targets whose owner matters
type Owned interface {
	OwnerID() int64
}

// Request describes one authorization question
type Request struct {
	Resource Resource
	Action   Action
	Target   Owned
	TargetID int64
}

// Decision is the outcome of Authorize
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	Rule      string    `json:"rule"`
	CheckedAt time.Time `json:"checked_at"`

	unauthenticated bool
}

// Authenticated reports whether an actor was present
func (d Decision) Authenticated() bool {
	return !d.unauthenticated
}

// Err maps a denial onto ErrUnauthenticated or ErrForbidden. It returns nil
// when the request is allowed.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.unauthenticated:
		return ErrUnauthenticated
	default:
		return ErrForbidden
	}
}
