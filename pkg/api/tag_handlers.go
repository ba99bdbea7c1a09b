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

// TagHandlers handles tag HTTP requests
type TagHandlers struct {
	handlerBase
	content *content.Store
}

// RegisterRoutes registers tag routes
func (h *TagHandlers) RegisterRoutes(router *mux.Router, protect func(http.HandlerFunc) http.Handler) {
	router.HandleFunc("/tags", h.listTags).Methods("GET")
	router.HandleFunc("/tags/{id:[0-9]+}", h.getTag).Methods("GET")
	router.HandleFunc("/tags/{id:[0-9]+}/posts", h.getTagWithPosts).Methods("GET")

	router.Handle("/tags", protect(h.createTag)).Methods("POST")
	router.Handle("/tags/{id:[0-9]+}", protect(h.updateTag)).Methods("PUT")
	router.Handle("/tags/{id:[0-9]+}", protect(h.deleteTag)).Methods("DELETE")
}

// listTags handles GET /tags
func (h *TagHandlers) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.content.ListTags(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, newTagResources(tags))
}

func (h *TagHandlers) loadTag(w http.ResponseWriter, r *http.Request) (*content.Tag, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}
	tag, err := h.content.GetTag(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return tag, true
}

// getTag handles GET /tags/{id}
func (h *TagHandlers) getTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := h.loadTag(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, newTagResource(*tag))
}

// getTagWithPosts handles GET /tags/{id}/posts
func (h *TagHandlers) getTagWithPosts(w http.ResponseWriter, r *http.Request) {
	tag, ok := h.loadTag(w, r)
	if !ok {
		return
	}
	posts, err := h.content.PostsForTag(r.Context(), tag.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tagWithPostsResource{
		tagResource: newTagResource(*tag),
		Posts:       newPostResources(posts),
	})
}

// createTag handles POST /tags
func (h *TagHandlers) createTag(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r, authz.Request{Resource: authz.ResourceTag, Action: authz.ActionCreate})
	if !ok {
		return
	}

	var in validation.TagInput
	types, ok := h.decode(w, r, &in)
	if !ok {
		return
	}
	if !h.validate(w, r, types, h.validator.TagCreate(r.Context(), in)) {
		return
	}

	tag, err := h.content.CreateTag(r.Context(), *in.Title, *in.Color)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordChange(r, audit.EventTypeDataCreate, actor, audit.ResourceTypeTag, tag.ID)
	httputil.WriteCreated(w, newTagResource(*tag))
}

// updateTag handles PUT /tags/{id}; absent fields are left unchanged
func (h *TagHandlers) updateTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := h.loadTag(w, r)
	if !ok {
		return
	}
	actor, ok := h.authorize(w, r, authz.Request{
		Resource: authz.ResourceTag,
		Action:   authz.ActionUpdate,
		TargetID: tag.ID,
	})
	if !ok {
		return
	}

	var in validation.TagInput
	types, ok := h.decode(w, r, &in)
	if !ok {
		return
	}
	if !h.validate(w, r, types, h.validator.TagUpdate(r.Context(), tag.ID, in)) {
		return
	}

	updated, err := h.content.UpdateTag(r.Context(), tag.ID, content.TagUpdate{Title: in.Title, Color: in.Color})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordChange(r, audit.EventTypeDataUpdate, actor, audit.ResourceTypeTag, tag.ID)
	httputil.WriteSuccess(w, newTagResource(*updated))
}

// deleteTag handles DELETE /tags/{id}
func (h *TagHandlers) deleteTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := h.loadTag(w, r)
	if !ok {
		return
	}
	actor, ok := h.authorize(w, r, authz.Request{
		Resource: authz.ResourceTag,
		Action:   authz.ActionDelete,
		TargetID: tag.ID,
	})
	if !ok {
		return
	}

	if err := h.content.DeleteTag(r.Context(), tag.ID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recordChange(r, audit.EventTypeDataDelete, actor, audit.ResourceTypeTag, tag.ID)
	httputil.WriteNoContent(w)
}
