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

// PostHandlers handles post HTTP requests
type PostHandlers struct {
	handlerBase
	content *content.Store
}

// RegisterRoutes registers post routes
func (h *PostHandlers) RegisterRoutes(router *mux.Router, protect func(http.HandlerFunc) http.Handler) {
	router.HandleFunc("/posts", h.listPosts).Methods("GET")
	router.HandleFunc("/posts/{id:[0-9]+}", h.getPost).Methods("GET")
	router.HandleFunc("/posts/{id:[0-9]+}/comments", h.getPostWithComments).Methods("GET")

	router.Handle("/posts", protect(h.createPost)).Methods("POST")
	router.Handle("/posts/{id:[0-9]+}", protect(h.updatePost)).Methods("PUT")
	router.Handle("/posts/{id:[0-9]+}", protect(h.deletePost)).Methods("DELETE")
}

// listPosts handles GET /posts
func (h *PostHandlers) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.content.ListPosts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newPostResources(posts))
}

func (h *PostHandlers) loadPost(w http.ResponseWriter, r *http.Request) (*content.Post, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}
	post, err := h.content.GetPost(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return post, true
}

// getPost handles GET /posts/{id}
func (h *PostHandlers) getPost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, newPostResource(post))
}

// getPostWithComments handles GET /posts/{id}/comments
func (h *PostHandlers) getPostWithComments(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	comments, err := h.content.CommentsForPost(r.Context(), post.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, postWithCommentsResource{
		postResource: newPostResource(post),
		Comments:     newCommentResources(comments),
	})
}

// createPost handles POST /posts
func (h *PostHandlers) createPost(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, authz.Request{Resource: authz.ResourcePost, Action: authz.ActionCreate})
	if !ok {
		return
	}

	var in validation.PostInput
	types, ok := h.decode(w, r, &in)
	if !ok {
		return
	}
	if !h.validate(w, r, types, h.validator.Post(r.Context(), in)) {
		return
	}

	post, err := h.content.CreatePost(r.Context(), actor.ID(), postInput(in))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordChange(r, audit.EventTypeDataCreate, actor, audit.ResourceTypePost, post.ID)
	httputil.WriteCreated(w, newPostResource(post))
}

// updatePost handles PUT /posts/{id}. The submitted tags replace the post's
// tag set.
func (h *PostHandlers) updatePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	actor, ok := h.authorize(w, r, authz.Request{
		Resource: authz.ResourcePost,
		Action:   authz.ActionUpdate,
		Target:   post,
		TargetID: post.ID,
	})
	if !ok {
		return
	}

	var in validation.PostInput
	types, ok := h.decode(w, r, &in)
	if !ok {
		return
	}
	if !h.validate(w, r, types, h.validator.Post(r.Context(), in)) {
		return
	}

	updated, err := h.content.UpdatePost(r.Context(), post.ID, postInput(in))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordChange(r, audit.EventTypeDataUpdate, actor, audit.ResourceTypePost, post.ID)
	httputil.WriteSuccess(w, newPostResource(updated))
}

// deletePost handles DELETE /posts/{id}
func (h *PostHandlers) deletePost(w http.ResponseWriter, r *http.Request) {
	post, ok := h.loadPost(w, r)
	if !ok {
		return
	}
	actor, ok := h.authorize(w, r, authz.Request{
		Resource: authz.ResourcePost,
		Action:   authz.ActionDelete,
		Target:   post,
		TargetID: post.ID,
	})
	if !ok {
		return
	}

	if err := h.content.DeletePost(r.Context(), post.ID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordChange(r, audit.EventTypeDataDelete, actor, audit.ResourceTypePost, post.ID)
	httputil.WriteNoContent(w)
}

// postInput converts a validated payload
func postInput(in validation.PostInput) content.PostInput {
	return content.PostInput{
		Title:  *in.Title,
		Body:   *in.Body,
		TagIDs: in.Tags,
	}
}
