package content

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CreateTag inserts a tag
func (s *Store) CreateTag(ctx context.Context, title, color string) (*Tag, error) {
	now := time.Now().UTC()
	tag := &Tag{Title: title, Color: color, CreatedAt: now, UpdatedAt: now}

	err := s.q.QueryRowContext(ctx,
		"INSERT INTO tags (title, color, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id",
		title, color, now, now,
	).Scan(&tag.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return tag, nil
}

// GetTag retrieves a tag by id
func (s *Store) GetTag(ctx context.Context, id int64) (*Tag, error) {
	tag := &Tag{}
	err := s.q.QueryRowContext(ctx,
		"SELECT id, title, color, created_at, updated_at FROM tags WHERE id = $1", id,
	).Scan(&tag.ID, &tag.Title, &tag.Color, &tag.CreatedAt, &tag.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return tag, nil
}

// ListTags returns every tag sorted by title
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, title, color, created_at, updated_at FROM tags ORDER BY title, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.ID, &tag.Title, &tag.Color, &tag.CreatedAt, &tag.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// UpdateTag applies the non-nil fields of upd
func (s *Store) UpdateTag(ctx context.Context, id int64, upd TagUpdate) (*Tag, error) {
	var sets []string
	var args []interface{}
	if upd.Title != nil {
		args = append(args, *upd.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if upd.Color != nil {
		args = append(args, *upd.Color)
		sets = append(sets, fmt.Sprintf("color = $%d", len(args)))
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE tags SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrTagNotFound
	}
	return s.GetTag(ctx, id)
}

// DeleteTag removes a tag and detaches it from every post
func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM tags WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrTagNotFound
	}
	return nil
}

// TagTitleTaken reports whether another tag already uses title.
// exceptID excludes the tag being updated; pass 0 on create.
func (s *Store) TagTitleTaken(ctx context.Context, title string, exceptID int64) (bool, error) {
	n, err := s.count(ctx, "SELECT COUNT(*) FROM tags WHERE title = $1 AND id <> $2", title, exceptID)
	if err != nil {
		return false, fmt.Errorf("failed to check tag title: %w", err)
	}
	return n > 0, nil
}

// MissingTagIDs returns the ids that do not reference an existing tag
func (s *Store) MissingTagIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return missingIDs(ctx, s.q, "tags", ids)
}

// PostsForTag returns the tag's posts ordered by creation time
func (s *Store) PostsForTag(ctx context.Context, tagID int64) ([]*Post, error) {
	return s.queryPosts(ctx, `
		SELECT p.id, p.user_id, p.title, p.body, p.created_at, p.updated_at, u.displayname
		FROM posts p
		JOIN users u ON u.id = p.user_id
		JOIN post_tags pt ON pt.post_id = p.id
		WHERE pt.tag_id = $1
		ORDER BY p.created_at, p.id
	`, tagID)
}
