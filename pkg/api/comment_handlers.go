package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/scribe/pkg/audit"
	"github.com/platinummonkey/scribe/pkg/authz"
	"github.com/platinummonkey/scribe/pkg/content"
	"github.com/platinummonkey/scribe/pkg/httputil"
	"github.com/platinummonkey/scribe/pkg/validation"
)

// CommentHandlers handles comment HTTP requests
type CommentHandlers struct {
	handlerBase
	content *content.Store
}

// RegisterRoutes registers comment routes
func (h *CommentHandlers) RegisterRoutes(router *mux.Router, protect func(http.HandlerFunc) http.Handler) {
	router.HandleFunc("/comments/{id:[0-9]+}", h.getComment).Methods("GET")

	router.Handle("/comments", protect(h.createComment)).Methods("POST")
	router.Handle("/comments/{id:[0-9]+}", protect(h.updateComment)).Methods("PUT")
	router.Handle("/comments/{id:[0-9]+}", protect(h.deleteComment)).Methods("DELETE")
}

func (h *CommentHandlers) loadComment(w http.ResponseWriter, r *http.Request) (*content.Comment, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}
	comment, err := h.content.GetComment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return comment, true
}

// getComment handles GET /comments/{id}
func (h *CommentHandlers) getComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.loadComment(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, newCommentResource(comment))
}

// createComment handles POST /comments
func (h *CommentHandlers) createComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, authz.Request{Resource: authz.ResourceComment, Action: authz.ActionCreate})
	if !ok {
		return
	}

	var in validation.CommentInput
	types, ok := h.decode(w, r, &in)
	if !ok {
		return
	}
	if !h.validate(w, r, types, h.validator.CommentCreate(r.Context(), in)) {
		return
	}

	comment, err := h.content.CreateComment(r.Context(), *in.PostID, actor.ID(), *in.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordChange(r, audit.EventTypeDataCreate, actor, audit.ResourceTypeComment, comment.ID)
	httputil.WriteCreated(w, newCommentResource(comment))
}

// updateComment handles PUT /comments/{id}; only the body can change
func (h *CommentHandlers) updateComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.loadComment(w, r)
	if !ok {
		return
	}
	actor, ok := h.authorize(w, r, authz.Request{
		Resource: authz.ResourceComment,
		Action:   authz.ActionUpdate,
		Target:   comment,
		TargetID: comment.ID,
	})
	if !ok {
		return
	}

	var in validation.CommentInput
	types, ok := h.decode(w, r, &in)
	if !ok {
		return
	}
	if !h.validate(w, r, types, h.validator.CommentUpdate(r.Context(), in)) {
		return
	}

	updated, err := h.content.UpdateComment(r.Context(), comment.ID, *in.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordChange(r, audit.EventTypeDataUpdate, actor, audit.ResourceTypeComment, comment.ID)
	httputil.WriteSuccess(w, newCommentResource(updated))
}

// deleteComment handles DELETE /comments/{id}
func (h *CommentHandlers) deleteComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.loadComment(w, r)
	if !ok {
		return
	}
	actor, ok := h.authorize(w, r, authz.Request{
		Resource: authz.ResourceComment,
		Action:   authz.ActionDelete,
		Target:   comment,
		TargetID: comment.ID,
	})
	if !ok {
		return
	}

	if err := h.content.DeleteComment(r.Context(), comment.ID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordChange(r, audit.EventTypeDataDelete, actor, audit.ResourceTypeComment, comment.ID)
	httputil.WriteNoContent(w)
}
