package content

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/platinummonkey/scribe/pkg/storage"
)

const postSelect = `
	SELECT p.id, p.user_id, p.title, p.body, p.created_at, p.updated_at, u.displayname
	FROM posts p
	JOIN users u ON u.id = p.user_id
`

// CreatePost inserts a post owned by userID and attaches in.TagIDs
func (s *Store) CreatePost(ctx context.Context, userID int64, in PostInput) (*Post, error) {
	now := time.Now().UTC()
	var id int64

	err := s.inTx(ctx, func(q storage.Querier) error {
		err := q.QueryRowContext(ctx,
			"INSERT INTO posts (user_id, title, body, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
			userID, in.Title, in.Body, now, now,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
		return syncPostTags(ctx, q, id, in.TagIDs, now)
	})
	if err != nil {
		return nil, err
	}

	return s.GetPost(ctx, id)
}

// GetPost retrieves a post with its author and tags
func (s *Store) GetPost(ctx context.Context, id int64) (*Post, error) {
	posts, err := s.queryPosts(ctx, postSelect+" WHERE p.id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrPostNotFound
	}
	return posts[0], nil
}

// ListPosts returns every post in id order
func (s *Store) ListPosts(ctx context.Context) ([]*Post, error) {
	return s.queryPosts(ctx, postSelect+" ORDER BY p.id")
}

// PostExists reports whether a post with id exists
func (s *Store) PostExists(ctx context.Context, id int64) (bool, error) {
	n, err := s.count(ctx, "SELECT COUNT(*) FROM posts WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to check post: %w", err)
	}
	return n > 0, nil
}

// UpdatePost replaces title, body and the full tag set. Tags absent from
// in.TagIDs are detached.
func (s *Store) UpdatePost(ctx context.Context, id int64, in PostInput) (*Post, error) {
	now := time.Now().UTC()

	err := s.inTx(ctx, func(q storage.Querier) error {
		result, err := q.ExecContext(ctx,
			"UPDATE posts SET title = $1, body = $2, updated_at = $3 WHERE id = $4",
			in.Title, in.Body, now, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update post: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return ErrPostNotFound
		}

		if _, err := q.ExecContext(ctx, "DELETE FROM post_tags WHERE post_id = $1", id); err != nil {
			return fmt.Errorf("failed to detach tags: %w", err)
		}
		return syncPostTags(ctx, q, id, in.TagIDs, now)
	})
	if err != nil {
		return nil, err
	}

	return s.GetPost(ctx, id)
}

// DeletePost removes a post together with its comments and tag links
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM posts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrPostNotFound
	}
	return nil
}

func syncPostTags(ctx context.Context, q storage.Querier, postID int64, tagIDs []int64, now time.Time) error {
	seen := make(map[int64]bool, len(tagIDs))
	for _, tagID := range tagIDs {
		if seen[tagID] {
			continue
		}
		seen[tagID] = true

		_, err := q.ExecContext(ctx,
			"INSERT INTO post_tags (post_id, tag_id, created_at, updated_at) VALUES ($1, $2, $3, $4)",
			postID, tagID, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to attach tag %d: %w", tagID, err)
		}
	}
	return nil
}

// queryPosts runs a post query and attaches tags to every result
func (s *Store) queryPosts(ctx context.Context, query string, args ...interface{}) ([]*Post, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}

	posts := []*Post{}
	for rows.Next() {
		p := &Post{Tags: []Tag{}}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Body, &p.CreatedAt, &p.UpdatedAt, &p.Author.DisplayName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		p.Author.ID = p.UserID
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.attachTags(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Store) attachTags(ctx context.Context, posts []*Post) error {
	if len(posts) == 0 {
		return nil
	}

	byID := make(map[int64]*Post, len(posts))
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	query := fmt.Sprintf(`
		SELECT pt.post_id, t.id, t.title, t.color, t.created_at, t.updated_at
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id IN (%s)
	`, storage.Placeholders(1, len(ids)))

	rows, err := s.q.QueryContext(ctx, query, storage.Int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to load post tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID int64
		var tag Tag
		if err := rows.Scan(&postID, &tag.ID, &tag.Title, &tag.Color, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan post tag: %w", err)
		}
		if p, ok := byID[postID]; ok {
			p.Tags = append(p.Tags, tag)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range posts {
		sort.Slice(p.Tags, func(i, j int) bool { return p.Tags[i].Title < p.Tags[j].Title })
	}
	return nil
}
