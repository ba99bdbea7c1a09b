package accounts

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/scribe/pkg/audit"
	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/rbac"
	"github.com/platinummonkey/scribe/pkg/users"
	"github.com/platinummonkey/scribe/pkg/validation"
)

var (
	// ErrSoleAdmin is returned when disabling the last enabled admin
	ErrSoleAdmin = errors.New("the only enabled admin cannot be disabled")
	// ErrInvalidCredentials covers unknown emails and wrong passwords
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned when a disabled user tries to log in
	ErrAccountDisabled = errors.New("account is disabled")
)

// MsgSoleAdminConflict is the roles message of the 409 disable response
const MsgSoleAdminConflict = "As the only admin, you may not disable your account."

const (
	// TokenName labels tokens issued at login
	TokenName = "Personal Access Token"
	// SessionTTL is the lifetime of a login token
	SessionTTL = 24 * time.Hour
	// RememberTTL is the lifetime of a remember-me login token
	RememberTTL = 30 * 24 * time.Hour
)

// Lifecycle outcome labels
const (
	outcomeSuccess  = "success"
	outcomeConflict = "conflict"
	outcomeInvalid  = "invalid"
	outcomeDenied   = "denied"
	outcomeNoop     = "noop"
	outcomeError    = "error"
)

// Guard runs account mutations that affect the admin invariant
type Guard struct {
	db     *sql.DB
	users  *users.Store
	roles  *rbac.Store
	tokens *auth.TokenManager
	hasher auth.PasswordHasher

	metrics *observability.Metrics
	audit   audit.Logger

	// mu serializes the count-check-act sequences within this process
	mu sync.Mutex
}

// Option configures a Guard
type Option func(*Guard)

// WithMetrics records lifecycle outcomes and token revocations
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithAuditLogger sends lifecycle events to logger
func WithAuditLogger(logger audit.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.audit = logger
		}
	}
}

// NewGuard creates a guard over the given stores
func NewGuard(db *sql.DB, userStore *users.Store, roleStore *rbac.Store, tokens *auth.TokenManager, hasher auth.PasswordHasher, opts ...Option) *Guard {
	g := &Guard{
		db:     db,
		users:  userStore,
		roles:  roleStore,
		tokens: tokens,
		hasher: hasher,
		audit:  audit.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// lockAdmins locks the admin role inside tx and returns it with the current
// number of enabled admins
func lockAdmins(ctx context.Context, roles *rbac.Store) (*rbac.Role, int, error) {
	admin, err := roles.FindRoleByName(ctx, rbac.RoleAdmin)
	if err != nil {
		return nil, 0, err
	}
	if err := roles.LockRole(ctx, admin.ID); err != nil {
		return nil, 0, err
	}
	count, err := roles.CountEnabledMembers(ctx, admin.ID)
	if err != nil {
		return nil, 0, err
	}
	return admin, count, nil
}

// evict drops revoked tokens from the cache after commit. Failures are logged
// and counted only.
func (g *Guard) evict(ctx context.Context, userID int64, hashes []string) {
	if len(hashes) == 0 {
		return
	}
	if err := g.tokens.EvictTokens(ctx, hashes...); err != nil {
		observability.FromContext(ctx).
			WithError(err).
			WithFields(map[string]interface{}{"target_user_id": userID, "tokens": len(hashes)}).
			Warn("Failed to evict revoked tokens from cache")
		g.metrics.RecordEvictionFailure()
	}
}

// outcome counts the result of op and tags the operation's span in ctx with
// the same label. err is set only for unexpected failures.
func (g *Guard) outcome(ctx context.Context, op, outcome string, err error) {
	g.metrics.RecordLifecycleOutcome(op, outcome)
	observability.RecordOutcome(trace.SpanFromContext(ctx), outcome, err)
}

func (g *Guard) auditWarn(ctx context.Context, err error) {
	if err != nil {
		observability.FromContext(ctx).WithError(err).Warn("Failed to write audit event")
	}
}

// takenError turns a displayname or email collision lost to a concurrent
// request into the validation failure the losing request would have seen
func takenError(err error) error {
	var dup *users.DuplicateError
	if errors.As(err, &dup) {
		return validation.Taken(dup.Field)
	}
	return err
}
