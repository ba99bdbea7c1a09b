package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/scribe/pkg/audit"
	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/rbac"
	"github.com/platinummonkey/scribe/pkg/storage"
	"github.com/platinummonkey/scribe/pkg/users"
	"github.com/platinummonkey/scribe/pkg/validation"
)

// Session is the result of a successful login
type Session struct {
	User      *auth.User
	Roles     []rbac.Role
	Token     *auth.AccessToken
	PlainText string
}

// Signup creates an account. The very first account becomes an admin, every
// later one a commenter.
func (g *Guard) Signup(ctx context.Context, displayName, email, password string) (*auth.User, error) {
	ctx, span := observability.StartSpan(ctx, "accounts.Signup")
	defer span.End()

	hash, err := g.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var user *auth.User
	var roleName string
	err = storage.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		roles := g.roles.WithTx(tx)
		userStore := g.users.WithTx(tx)

		admin, _, err := lockAdmins(ctx, roles)
		if err != nil {
			return err
		}

		existing, err := userStore.Count(ctx)
		if err != nil {
			return err
		}

		user, err = userStore.Create(ctx, displayName, email, hash)
		if err != nil {
			return takenError(err)
		}

		role := admin
		if existing > 0 {
			if role, err = roles.FindRoleByName(ctx, rbac.RoleCommenter); err != nil {
				return err
			}
		}
		roleName = role.Name
		return roles.AssignRole(ctx, user.ID, role.ID)
	})
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		span.AddEvent("signup collided with a concurrent account")
		g.outcome(ctx, "signup", outcomeInvalid, nil)
		return nil, err
	}
	if err != nil {
		g.outcome(ctx, "signup", outcomeError, err)
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}

	span.SetAttributes(observability.AttrTargetUserID.Int64(user.ID))
	g.outcome(ctx, "signup", outcomeSuccess, nil)
	g.auditWarn(ctx, g.audit.LogAuthentication(ctx, audit.EventTypeAuthSignup, audit.UserRef(user.ID),
		user.DisplayName, audit.EventStatusSuccess, "signed up with role "+roleName))

	return user, nil
}

// Login checks credentials and issues a token. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (g *Guard) Login(ctx context.Context, email, password string, rememberMe bool) (*Session, error) {
	ctx, span := observability.StartSpan(ctx, "accounts.Login")
	defer span.End()

	user, err := g.users.GetByEmail(ctx, email)
	if errors.Is(err, users.ErrUserNotFound) {
		g.loginFailed(ctx, nil, email, "unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := g.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			g.loginFailed(ctx, audit.UserRef(user.ID), email, "wrong password")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Enabled {
		g.loginFailed(ctx, audit.UserRef(user.ID), email, "account disabled")
		return nil, ErrAccountDisabled
	}

	ttl := SessionTTL
	if rememberMe {
		ttl = RememberTTL
	}

	token, plaintext, err := g.tokens.CreateToken(ctx, user.ID, TokenName, ttl)
	if err != nil {
		return nil, err
	}

	roles, err := g.roles.GetUserRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	rbac.SortByName(roles)

	span.SetAttributes(observability.AttrActorUserID.Int64(user.ID))
	g.outcome(ctx, "login", outcomeSuccess, nil)
	g.auditWarn(ctx, g.audit.LogAuthentication(ctx, audit.EventTypeAuthLogin, audit.UserRef(user.ID),
		user.DisplayName, audit.EventStatusSuccess, fmt.Sprintf("token expires %s", token.ExpiresAt.Format(time.RFC3339))))

	return &Session{
		User:      user,
		Roles:     roles,
		Token:     token,
		PlainText: plaintext,
	}, nil
}

func (g *Guard) loginFailed(ctx context.Context, userID *int64, email, reason string) {
	g.outcome(ctx, "login", outcomeDenied, nil)
	g.auditWarn(ctx, g.audit.LogAuthentication(ctx, audit.EventTypeAuthLoginFailed, userID,
		email, audit.EventStatusFailure, reason))
}

// Logout revokes the token the actor authenticated with
func (g *Guard) Logout(ctx context.Context, actor *auth.AuthContext) error {
	if actor == nil || actor.Token == nil {
		return errors.New("no token to revoke")
	}

	ctx, span := observability.StartSpan(ctx, "accounts.Logout",
		observability.AttrActorUserID.Int64(actor.ID()))
	defer span.End()

	if err := g.tokens.RevokeToken(ctx, actor.Token); err != nil {
		g.outcome(ctx, "logout", outcomeError, err)
		return err
	}

	g.outcome(ctx, "logout", outcomeSuccess, nil)
	g.auditWarn(ctx, g.audit.LogAuthentication(ctx, audit.EventTypeAuthLogout, audit.UserRef(actor.ID()),
		actor.User.DisplayName, audit.EventStatusSuccess, "token revoked"))
	return nil
}
