package api

import (
	"sort"
	"time"

	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/content"
	"github.com/platinummonkey/scribe/pkg/rbac"
)

// timestampLayout is the wire format of created_at and updated_at
const timestampLayout = "2006-01-02 15:04:05"

// timestamp renders as "YYYY-MM-DD hh:mm:ss" in UTC
type timestamp time.Time

func (t timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(timestampLayout) + `"`), nil
}

type authorResource struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayname"`
}

// roleResource hides permissions from non-admin viewers. A nil pointer drops
// the key; an admin viewing a role without permissions sees [].
type roleResource struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Permissions *[]string `json:"permissions,omitempty"`
}

type userResource struct {
	ID          int64          `json:"id"`
	DisplayName string         `json:"displayname"`
	Enabled     *bool          `json:"enabled,omitempty"`
	Roles       []roleResource `json:"roles"`
}

type loginResource struct {
	UserID      int64          `json:"userid"`
	DisplayName string         `json:"displayname"`
	Roles       []roleResource `json:"roles"`
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   string         `json:"expires_at"`
}

type tagResource struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Color string `json:"color"`
}

type tagWithPostsResource struct {
	tagResource
	Posts []postResource `json:"posts"`
}

type postResource struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	CreatedAt timestamp      `json:"created_at"`
	UpdatedAt timestamp      `json:"updated_at"`
	Author    authorResource `json:"author"`
	Tags      []tagResource  `json:"tags"`
}

type postWithCommentsResource struct {
	postResource
	Comments []commentResource `json:"comments"`
}

type commentResource struct {
	ID        int64          `json:"id"`
	Body      string         `json:"body"`
	PostID    int64          `json:"post_id"`
	CreatedAt timestamp      `json:"created_at"`
	UpdatedAt timestamp      `json:"updated_at"`
	Author    authorResource `json:"author"`
}

func newRoleResources(roles []rbac.Role, viewer *auth.AuthContext) []roleResource {
	sorted := make([]rbac.Role, len(roles))
	copy(sorted, roles)
	rbac.SortByName(sorted)

	showPermissions := viewer.IsAdmin()
	out := make([]roleResource, 0, len(sorted))
	for _, role := range sorted {
		res := roleResource{ID: role.ID, Name: role.Name}
		if showPermissions {
			perms := make([]string, 0, len(role.Permissions))
			for _, p := range role.Permissions {
				perms = append(perms, string(p))
			}
			sort.Strings(perms)
			res.Permissions = &perms
		}
		out = append(out, res)
	}
	return out
}

func newUserResource(user *auth.User, roles []rbac.Role, viewer *auth.AuthContext) userResource {
	res := userResource{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Roles:       newRoleResources(roles, viewer),
	}
	if viewer.IsAdmin() {
		enabled := user.Enabled
		res.Enabled = &enabled
	}
	return res
}

func newTagResource(tag content.Tag) tagResource {
	return tagResource{ID: tag.ID, Title: tag.Title, Color: tag.Color}
}

func newTagResources(tags []content.Tag) []tagResource {
	out := make([]tagResource, 0, len(tags))
	for _, tag := range tags {
		out = append(out, newTagResource(tag))
	}
	return out
}

func newPostResource(post *content.Post) postResource {
	return postResource{
		ID:        post.ID,
		Title:     post.Title,
		Body:      post.Body,
		CreatedAt: timestamp(post.CreatedAt),
		UpdatedAt: timestamp(post.UpdatedAt),
		Author:    authorResource(post.Author),
		Tags:      newTagResources(post.Tags),
	}
}

func newPostResources(posts []*content.Post) []postResource {
	out := make([]postResource, 0, len(posts))
	for _, post := range posts {
		out = append(out, newPostResource(post))
	}
	return out
}

func newCommentResource(comment *content.Comment) commentResource {
	return commentResource{
		ID:        comment.ID,
		Body:      comment.Body,
		PostID:    comment.PostID,
		CreatedAt: timestamp(comment.CreatedAt),
		UpdatedAt: timestamp(comment.UpdatedAt),
		Author:    authorResource(comment.Author),
	}
}

func newCommentResources(comments []*content.Comment) []commentResource {
	out := make([]commentResource, 0, len(comments))
	for _, comment := range comments {
		out = append(out, newCommentResource(comment))
	}
	return out
}
