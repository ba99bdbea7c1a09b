package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/platinummonkey/scribe/pkg/accounts"
	"github.com/platinummonkey/scribe/pkg/audit"
	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/authz"
	"github.com/platinummonkey/scribe/pkg/content"
	"github.com/platinummonkey/scribe/pkg/httputil"
	"github.com/platinummonkey/scribe/pkg/middleware"
	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/rbac"
	"github.com/platinummonkey/scribe/pkg/users"
	"github.com/platinummonkey/scribe/pkg/validation"
)

// MsgForbidden is the 403 body for authenticated actors that are denied
const MsgForbidden = "This action is unauthorized."

// handlerBase holds what every resource handler needs to authorize, validate
// and report a request
type handlerBase struct {
	engine    *authz.Engine
	validator *validation.Validator
	audit     audit.Logger
}

// authorize runs the engine and writes 401 or 403 on denial. The returned
// actor is nil for anonymous requests that were allowed.
func (b *handlerBase) authorize(w http.ResponseWriter, r *http.Request, req authz.Request) (*auth.AuthContext, bool) {
	actor := middleware.GetAuthContext(r)

	decision := b.engine.Authorize(r.Context(), actor, req)
	switch err := decision.Err(); {
	case err == nil:
		return actor, true
	case errors.Is(err, authz.ErrUnauthenticated):
		httputil.WriteUnauthenticated(w)
	default:
		httputil.WriteForbidden(w, MsgForbidden)
	}
	return nil, false
}

// decode reads the request body into dest. A malformed body gets a 400; a
// member with the wrong JSON type is returned for validate to report.
func (b *handlerBase) decode(w http.ResponseWriter, r *http.Request, dest interface{}) (validation.Errors, bool) {
	var members map[string]json.RawMessage
	if !httputil.ParseJSONOrError(w, r, &members) {
		return nil, false
	}
	return validation.Bind(members, dest), true
}

// validate writes one 422 covering both the type mismatches from decode and
// the rule failures in err. It returns false once a response was written.
func (b *handlerBase) validate(w http.ResponseWriter, r *http.Request, types validation.Errors, err error) bool {
	var rules validation.Errors
	if err != nil && !errors.As(err, &rules) {
		b.writeError(w, r, err)
		return false
	}
	if all := validation.WithTypeErrors(rules, types); all.HasErrors() {
		httputil.WriteValidationErrors(w, http.StatusUnprocessableEntity, all)
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP responses
func (b *handlerBase) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		httputil.WriteValidationErrors(w, http.StatusUnprocessableEntity, verrs)
	case errors.Is(err, accounts.ErrSoleAdmin):
		httputil.WriteValidationErrors(w, http.StatusConflict, map[string][]string{
			"roles": {accounts.MsgSoleAdminConflict},
		})
	case errors.Is(err, accounts.ErrInvalidCredentials), errors.Is(err, accounts.ErrAccountDisabled):
		httputil.WriteUnauthenticated(w)
	case errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, rbac.ErrRoleNotFound),
		errors.Is(err, content.ErrPostNotFound),
		errors.Is(err, content.ErrTagNotFound),
		errors.Is(err, content.ErrCommentNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	default:
		httputil.WriteInternalError(w, r, err)
	}
}

// recordChange writes a data.* audit event for a content mutation
func (b *handlerBase) recordChange(r *http.Request, eventType audit.EventType, actor *auth.AuthContext, resource audit.ResourceType, id int64) {
	event := audit.NewEvent(r.Context(), eventType, audit.EventStatusSuccess)
	event.UserID = audit.UserRef(actor.ID())
	event.ResourceType = resource
	event.ResourceID = strconv.FormatInt(id, 10)
	if err := b.audit.Log(r.Context(), event); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("Failed to write audit event")
	}
}
