package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/scribe/pkg/accounts"
	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/authz"
	"github.com/platinummonkey/scribe/pkg/httputil"
	"github.com/platinummonkey/scribe/pkg/middleware"
	"github.com/platinummonkey/scribe/pkg/rbac"
	"github.com/platinummonkey/scribe/pkg/users"
	"github.com/platinummonkey/scribe/pkg/validation"
)

const (
	MsgUserCreated = "User successfully created."
	MsgLoggedOut   = "Successfully logged out."
)

// UserHandlers handles account, session and role HTTP requests
type UserHandlers struct {
	handlerBase
	users *users.Store
	roles *rbac.Store
	guard *accounts.Guard
}

// RegisterRoutes registers user routes. protect wraps routes that need a
// bearer token.
func (h *UserHandlers) RegisterRoutes(router *mux.Router, protect func(http.HandlerFunc) http.Handler) {
	router.HandleFunc("/user", h.signup).Methods("POST")
	router.HandleFunc("/user/login", h.login).Methods("POST")

	router.Handle("/user/logout", protect(h.logout)).Methods("GET")
	router.Handle("/user", protect(h.listUsers)).Methods("GET")
	router.Handle("/user/roles", protect(h.listRoles)).Methods("GET")
	router.Handle("/user/{id:[0-9]+}", protect(h.getUser)).Methods("GET")
	router.Handle("/user/{id:[0-9]+}", protect(h.updateUser)).Methods("PUT")
	router.Handle("/user/{id:[0-9]+}", protect(h.disableUser)).Methods("DELETE")
}

// signup handles POST /user
func (h *UserHandlers) signup(w http.ResponseWriter, r *http.Request) {
	var in validation.SignupInput
	types, ok := h.decode(w, r, &in)
	if !ok {
		return
	}

	if !h.validate(w, r, types, h.validator.Signup(r.Context(), in)) {
		return
	}

	if _, err := h.guard.Signup(r.Context(), *in.DisplayName, *in.Email, *in.Password); err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteMessage(w, http.StatusCreated, MsgUserCreated)
}

// login handles POST /user/login
func (h *UserHandlers) login(w http.ResponseWriter, r *http.Request) {
	var in validation.LoginInput
	types, ok := h.decode(w, r, &in)
	if !ok {
		return
	}

	if !h.validate(w, r, types, h.validator.Login(r.Context(), in)) {
		return
	}

	remember := in.RememberMe != nil && *in.RememberMe
	session, err := h.guard.Login(r.Context(), *in.Email, *in.Password, remember)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Permissions are shown to the user logging in when they are an admin
	viewer := &auth.AuthContext{User: session.User, Roles: session.Roles, Token: session.Token}
	httputil.WriteSuccess(w, loginResource{
		UserID:      session.User.ID,
		DisplayName: session.User.DisplayName,
		Roles:       newRoleResources(session.Roles, viewer),
		AccessToken: session.PlainText,
		TokenType:   "Bearer",
		ExpiresAt:   session.Token.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// logout handles GET /user/logout
func (h *UserHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.Logout(r.Context(), middleware.GetAuthContext(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, MsgLoggedOut)
}

// listUsers handles GET /user
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, authz.Request{Resource: authz.ResourceUser, Action: authz.ActionViewAny})
	if !ok {
		return
	}

	all, err := h.users.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]userResource, 0, len(all))
	for _, user := range all {
		roles, err := h.roles.GetUserRoles(r.Context(), user.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		out = append(out, newUserResource(user, roles, actor))
	}
	httputil.WriteSuccess(w, out)
}

// listRoles handles GET /user/roles
func (h *UserHandlers) listRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, authz.Request{Resource: authz.ResourceUser, Action: authz.ActionViewRoles})
	if !ok {
		return
	}

	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Listed in id order; only a user's own roles are sorted by name
	out := make([]roleResource, 0, len(roles))
	for _, role := range roles {
		out = append(out, newRoleResources([]rbac.Role{role}, actor)...)
	}
	httputil.WriteSuccess(w, out)
}

// loadTarget resolves {id} to a user, writing 404 when it does not exist
func (h *UserHandlers) loadTarget(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return user, true
}

// getUser handles GET /user/{id}
func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	target, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	actor, ok := h.authorize(w, r, authz.Request{
		Resource: authz.ResourceUser,
		Action:   authz.ActionView,
		Target:   target,
		TargetID: target.ID,
	})
	if !ok {
		return
	}

	h.writeUser(w, r, target, actor)
}

// updateUser handles PUT /user/{id}
func (h *UserHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	target, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	actor, ok := h.authorize(w, r, authz.Request{
		Resource: authz.ResourceUser,
		Action:   authz.ActionUpdate,
		Target:   target,
		TargetID: target.ID,
	})
	if !ok {
		return
	}

	var in validation.UserUpdateInput
	types, ok := h.decode(w, r, &in)
	if !ok {
		return
	}

	facts, err := validation.LoadAdminFacts(r.Context(), h.roles)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	subj := validation.UpdateSubject{ActorID: actor.ID(), TargetID: target.ID, ActorIsAdmin: actor.IsAdmin()}
	if !h.validate(w, r, types, h.validator.UserUpdate(r.Context(), in, subj, facts)) {
		return
	}

	updated, err := h.guard.ApplyUpdate(r.Context(), actor, target.ID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeUser(w, r, updated, actor)
}

// disableUser handles DELETE /user/{id}. Accounts are disabled, never
// removed.
func (h *UserHandlers) disableUser(w http.ResponseWriter, r *http.Request) {
	target, ok := h.loadTarget(w, r)
	if !ok {
		return
	}
	actor, ok := h.authorize(w, r, authz.Request{
		Resource: authz.ResourceUser,
		Action:   authz.ActionDelete,
		Target:   target,
		TargetID: target.ID,
	})
	if !ok {
		return
	}

	if err := h.guard.Disable(r.Context(), actor, target.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *UserHandlers) writeUser(w http.ResponseWriter, r *http.Request, user *auth.User, viewer *auth.AuthContext) {
	roles, err := h.roles.GetUserRoles(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newUserResource(user, roles, viewer))
}
