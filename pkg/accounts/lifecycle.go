package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/platinummonkey/scribe/pkg/audit"
	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/rbac"
	"github.com/platinummonkey/scribe/pkg/storage"
	"github.com/platinummonkey/scribe/pkg/users"
	"github.com/platinummonkey/scribe/pkg/validation"
)

// Disable turns off the target account and revokes its tokens. Disabling an
// already disabled account succeeds without changes. ErrSoleAdmin is
// returned when the target is the only enabled admin, whoever the actor is.
func (g *Guard) Disable(ctx context.Context, actor *auth.AuthContext, targetID int64) error {
	ctx, span := observability.StartSpan(ctx, "accounts.Disable",
		observability.AttrActorUserID.Int64(actor.ID()),
		observability.AttrTargetUserID.Int64(targetID))
	defer span.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	var revoked []string
	var changed bool
	err := storage.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		roles := g.roles.WithTx(tx)
		userStore := g.users.WithTx(tx)

		admin, enabledAdmins, err := lockAdmins(ctx, roles)
		if err != nil {
			return err
		}

		target, err := userStore.GetByID(ctx, targetID)
		if err != nil {
			return err
		}
		if !target.Enabled {
			return nil
		}

		isAdmin, err := roles.UserHasRole(ctx, targetID, admin.ID)
		if err != nil {
			return err
		}
		if isAdmin && enabledAdmins <= 1 {
			return ErrSoleAdmin
		}

		if changed, err = userStore.SetEnabled(ctx, targetID, false); err != nil {
			return err
		}

		revoked, err = g.tokens.WithTx(tx).RevokeUserTokens(ctx, targetID)
		return err
	})

	switch {
	case errors.Is(err, ErrSoleAdmin):
		span.AddEvent("sole admin conflict")
		g.outcome(ctx, "disable", outcomeConflict, nil)
		g.auditWarn(ctx, g.audit.LogAdminAction(ctx, audit.EventTypeAccountDisableBlocked,
			audit.UserRef(actor.ID()), targetID, nil, MsgSoleAdminConflict))
		return err
	case err != nil:
		g.outcome(ctx, "disable", outcomeError, err)
		return err
	case !changed:
		g.outcome(ctx, "disable", outcomeNoop, nil)
		return nil
	}

	g.evict(ctx, targetID, revoked)
	g.metrics.RecordTokensRevoked(len(revoked))
	g.outcome(ctx, "disable", outcomeSuccess, nil)
	g.auditWarn(ctx, g.audit.LogAdminAction(ctx, audit.EventTypeAccountDisable, audit.UserRef(actor.ID()), targetID,
		&audit.ChangeDetails{
			Before: map[string]interface{}{"enabled": true},
			After:  map[string]interface{}{"enabled": false, "tokens_revoked": len(revoked)},
		}, "account disabled"))

	return nil
}

// ApplyUpdate writes a validated profile update. The sole-admin rules are
// re-checked against a locked, fresh admin count; losing a race to another
// request yields the same validation.Errors the validator would have
// produced. Roles are only synced when the actor is an admin and the list is
// non-empty.
func (g *Guard) ApplyUpdate(ctx context.Context, actor *auth.AuthContext, targetID int64, in validation.UserUpdateInput) (*auth.User, error) {
	ctx, span := observability.StartSpan(ctx, "accounts.ApplyUpdate",
		observability.AttrActorUserID.Int64(actor.ID()),
		observability.AttrTargetUserID.Int64(targetID))
	defer span.End()

	upd := users.Update{
		DisplayName: in.DisplayName,
		Email:       in.Email,
	}
	if in.Password != nil {
		hash, err := g.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var (
		updated     *auth.User
		revoked     []string
		disabled    bool
		beforeRoles []int64
		afterRoles  []int64
	)
	err := storage.WithTx(ctx, g.db, func(tx *sql.Tx) error {
		roles := g.roles.WithTx(tx)
		userStore := g.users.WithTx(tx)

		admin, enabledAdmins, err := lockAdmins(ctx, roles)
		if err != nil {
			return err
		}

		actorIsAdmin, err := roles.UserHasRole(ctx, actor.ID(), admin.ID)
		if err != nil {
			return err
		}

		facts := validation.AdminFacts{AdminRoleID: admin.ID, EnabledAdmins: enabledAdmins}
		subj := validation.UpdateSubject{ActorID: actor.ID(), TargetID: targetID, ActorIsAdmin: actorIsAdmin}
		if errs := validation.SoleAdminRules(facts, subj, in); errs.HasErrors() {
			return errs
		}

		if updated, err = userStore.Update(ctx, targetID, upd); err != nil {
			return takenError(err)
		}

		if in.Enabled != nil {
			changed, err := userStore.SetEnabled(ctx, targetID, *in.Enabled)
			if err != nil {
				return err
			}
			updated.Enabled = *in.Enabled
			if changed && !*in.Enabled {
				disabled = true
				if revoked, err = g.tokens.WithTx(tx).RevokeUserTokens(ctx, targetID); err != nil {
					return err
				}
			}
		}

		if actorIsAdmin && in.Roles != nil && len(*in.Roles) > 0 {
			current, err := roles.GetUserRoles(ctx, targetID)
			if err != nil {
				return err
			}
			beforeRoles = rbac.RoleIDs(current)
			afterRoles = *in.Roles
			if err := roles.SyncRoles(ctx, targetID, afterRoles); err != nil {
				return err
			}
		}

		return nil
	})

	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		span.AddEvent("update rejected by validation rules")
		g.outcome(ctx, "update", outcomeInvalid, nil)
		return nil, err
	case errors.Is(err, users.ErrUserNotFound):
		return nil, err
	case err != nil:
		g.outcome(ctx, "update", outcomeError, err)
		return nil, fmt.Errorf("failed to update user %d: %w", targetID, err)
	}

	g.evict(ctx, targetID, revoked)
	g.metrics.RecordTokensRevoked(len(revoked))
	g.outcome(ctx, "update", outcomeSuccess, nil)

	g.auditWarn(ctx, g.audit.LogAdminAction(ctx, audit.EventTypeAccountUpdate, audit.UserRef(actor.ID()), targetID,
		&audit.ChangeDetails{After: changedFields(in)}, "account updated"))
	if disabled {
		g.auditWarn(ctx, g.audit.LogAdminAction(ctx, audit.EventTypeAccountDisable, audit.UserRef(actor.ID()), targetID,
			nil, "account disabled by update, "+strconv.Itoa(len(revoked))+" tokens revoked"))
	}
	if afterRoles != nil {
		g.auditWarn(ctx, g.audit.LogAdminAction(ctx, audit.EventTypeAuthzRoleChange, audit.UserRef(actor.ID()), targetID,
			&audit.ChangeDetails{
				Before: map[string]interface{}{"roles": beforeRoles},
				After:  map[string]interface{}{"roles": afterRoles},
			}, "roles synced"))
	}

	return updated, nil
}

// changedFields lists the fields an update touched. Passwords are never
// recorded.
func changedFields(in validation.UserUpdateInput) map[string]interface{} {
	fields := make(map[string]interface{})
	if in.DisplayName != nil {
		fields["displayname"] = *in.DisplayName
	}
	if in.Email != nil {
		fields["email"] = *in.Email
	}
	if in.Password != nil {
		fields["password"] = "changed"
	}
	if in.Enabled != nil {
		fields["enabled"] = *in.Enabled
	}
	return fields
}
