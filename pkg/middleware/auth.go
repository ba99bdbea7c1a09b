package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/contextkeys"
	"github.com/platinummonkey/scribe/pkg/httputil"
	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/rbac"
)

// TokenValidator resolves a presented bearer token
type TokenValidator interface {
	ValidateToken(ctx context.Context, plaintext string) (*auth.AccessToken, error)
}

// UserLoader loads the token's owner
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*auth.User, error)
}

// RoleLoader loads the owner's roles with their permissions
type RoleLoader interface {
	GetUserRoles(ctx context.Context, userID int64) ([]rbac.Role, error)
}

// errUnauthenticated covers every reason a bearer token is not accepted
var errUnauthenticated = errors.New("unauthenticated")

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	tokens   TokenValidator
	users    UserLoader
	roles    RoleLoader
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens TokenValidator, users UserLoader, roles RoleLoader, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		users:    users,
		roles:    roles,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication. In optional mode a
// request without an Authorization header passes through anonymously, but a
// bad token is still rejected.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthenticated(w)
			return
		}

		// Format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteUnauthenticated(w)
			return
		}

		authCtx, err := m.authenticate(r.Context(), strings.TrimSpace(parts[1]))
		if errors.Is(err, errUnauthenticated) {
			httputil.WriteUnauthenticated(w)
			return
		}
		if err != nil {
			httputil.WriteInternalError(w, r, err)
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithUserID(ctx, authCtx.ID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) authenticate(ctx context.Context, plaintext string) (*auth.AuthContext, error) {
	token, err := m.tokens.ValidateToken(ctx, plaintext)
	if errors.Is(err, auth.ErrInvalidToken) {
		return nil, errUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	user, err := m.users.GetByID(ctx, token.UserID)
	if err != nil {
		// Users are never deleted; a dangling token is simply invalid
		observability.FromContext(ctx).WithError(err).
			WithField("token_id", token.ID).
			Warn("Token owner could not be loaded")
		return nil, errUnauthenticated
	}
	if !user.Enabled {
		return nil, errUnauthenticated
	}

	roles, err := m.roles.GetUserRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &auth.AuthContext{
		User:  user,
		Roles: roles,
		Token: token,
	}, nil
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	ctx := r.Context().Value(contextkeys.AuthKey)
	if ctx == nil {
		return nil
	}
	authCtx, ok := ctx.(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}
