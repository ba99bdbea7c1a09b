// Package content stores the blog's posts, tags and comments.
package content

import (
	"errors"
	"time"
)

var (
	// ErrPostNotFound is returned when a post lookup matches nothing
	ErrPostNotFound = errors.New("post not found")
	// ErrTagNotFound is returned when a tag lookup matches nothing
	ErrTagNotFound = errors.New("tag not found")
	// ErrCommentNotFound is returned when a comment lookup matches nothing
	ErrCommentNotFound = errors.New("comment not found")
)

// Author is the public projection of a post or comment owner
type Author struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"displayname"`
}

// Tag labels posts
type Tag struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Post is an article owned by a user
type Post struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Author    Author    `json:"author"`
	Tags      []Tag     `json:"tags"` // sorted by title
}

// OwnerID returns the id of the user who wrote the post
func (p *Post) OwnerID() int64 {
	return p.UserID
}

// Comment is a reply to a post
type Comment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	UserID    int64     `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Author    Author    `json:"author"`
}

// OwnerID returns the id of the user who wrote the comment
func (c *Comment) OwnerID() int64 {
	return c.UserID
}

// TagUpdate carries optional tag fields; nil leaves a field untouched
type TagUpdate struct {
	Title *string
	Color *string
}

// PostInput is the full replacement state of a post. TagIDs replaces the
// post's tag set; an empty slice detaches every tag.
type PostInput struct {
	Title  string
	Body   string
	TagIDs []int64
}
