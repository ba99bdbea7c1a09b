package content

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const commentSelect = `
	SELECT c.id, c.post_id, c.user_id, c.body, c.created_at, c.updated_at, u.displayname
	FROM comments c
	JOIN users u ON u.id = c.user_id
`

// CreateComment inserts a comment on postID written by userID
func (s *Store) CreateComment(ctx context.Context, postID, userID int64, body string) (*Comment, error) {
	now := time.Now().UTC()

	var id int64
	err := s.q.QueryRowContext(ctx,
		"INSERT INTO comments (post_id, user_id, body, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		postID, userID, body, now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	return s.GetComment(ctx, id)
}

// GetComment retrieves a comment with its author
func (s *Store) GetComment(ctx context.Context, id int64) (*Comment, error) {
	c := &Comment{}
	err := s.q.QueryRowContext(ctx, commentSelect+" WHERE c.id = $1", id).Scan(
		&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt, &c.Author.DisplayName,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	c.Author.ID = c.UserID
	return c, nil
}

// CommentsForPost returns a post's comments ordered by creation time
func (s *Store) CommentsForPost(ctx context.Context, postID int64) ([]*Comment, error) {
	rows, err := s.q.QueryContext(ctx, commentSelect+" WHERE c.post_id = $1 ORDER BY c.created_at, c.id", postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*Comment{}
	for rows.Next() {
		c := &Comment{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Body, &c.CreatedAt, &c.UpdatedAt, &c.Author.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.Author.ID = c.UserID
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// UpdateComment replaces the comment body
func (s *Store) UpdateComment(ctx context.Context, id int64, body string) (*Comment, error) {
	result, err := s.q.ExecContext(ctx,
		"UPDATE comments SET body = $1, updated_at = $2 WHERE id = $3",
		body, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrCommentNotFound
	}
	return s.GetComment(ctx, id)
}

// DeleteComment removes a comment
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM comments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrCommentNotFound
	}
	return nil
}
