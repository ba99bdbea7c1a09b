// Package users persists user records: identity, credentials and the enabled
// flag. Role membership lives in the rbac store.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/storage"
)

// ErrUserNotFound is returned when a user lookup matches nothing
var ErrUserNotFound = errors.New("user not found")

// DuplicateError is returned when a write collides with another user's
// displayname or email. Validation checks these first, so it only surfaces
// when two requests race for the same value.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("user %s already taken", e.Field)
}

// writeError wraps a failed write, naming the column of a unique collision
func writeError(op string, err error) error {
	if field, ok := storage.UniqueViolation(err); ok {
		return &DuplicateError{Field: field}
	}
	return fmt.Errorf("failed to %s user: %w", op, err)
}

const userColumns = "id, displayname, email, password_hash, enabled, created_at, updated_at"

// Update carries the optional fields of a profile update; nil leaves a field
// untouched
type Update struct {
	DisplayName  *string
	Email        *string
	PasswordHash *string
	Enabled      *bool
}

// Empty reports whether the update changes nothing
func (u Update) Empty() bool {
	return u.DisplayName == nil && u.Email == nil && u.PasswordHash == nil && u.Enabled == nil
}

// Store handles user persistence
type Store struct {
	db *sql.DB
	q  storage.Querier
}

// NewStore creates a new user store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// WithTx returns a store whose queries run inside tx
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: s.db, q: tx}
}

// Create inserts an enabled user
func (s *Store) Create(ctx context.Context, displayName, email, passwordHash string) (*auth.User, error) {
	now := time.Now().UTC()
	user := &auth.User{
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: passwordHash,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.q.QueryRowContext(ctx, `
		INSERT INTO users (displayname, email, password_hash, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, user.DisplayName, user.Email, user.PasswordHash, user.Enabled, user.CreatedAt, user.UpdatedAt).Scan(&user.ID)
	if err != nil {
		return nil, writeError("create", err)
	}

	return user, nil
}

// GetByID retrieves a user by id
func (s *Store) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	return s.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

// GetByEmail retrieves a user by email
func (s *Store) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
}

// List returns every user ordered by id
func (s *Store) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Count returns the number of users ever created
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// DisplayNameTaken reports whether another user already uses name.
// exceptID excludes the user being updated; pass 0 on signup.
func (s *Store) DisplayNameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	return s.exists(ctx, "SELECT COUNT(*) FROM users WHERE displayname = $1 AND id <> $2", name, exceptID)
}

// EmailTaken reports whether another user already uses email
func (s *Store) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	return s.exists(ctx, "SELECT COUNT(*) FROM users WHERE email = $1 AND id <> $2", email, exceptID)
}

// Update applies the non-nil fields of upd and returns the stored user
func (s *Store) Update(ctx context.Context, id int64, upd Update) (*auth.User, error) {
	if upd.Empty() {
		return s.GetByID(ctx, id)
	}

	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.DisplayName != nil {
		add("displayname", *upd.DisplayName)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.Enabled != nil {
		add("enabled", *upd.Enabled)
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, writeError("update", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetByID(ctx, id)
}

// SetEnabled flips the enabled flag and reports whether the row changed.
// Setting the current value is a no-op.
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		"UPDATE users SET enabled = $1, updated_at = $2 WHERE id = $3 AND enabled <> $1",
		enabled, time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set enabled flag: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (s *Store) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check uniqueness: %w", err)
	}
	return count > 0, nil
}

func (s *Store) getOne(ctx context.Context, query string, arg interface{}) (*auth.User, error) {
	user, err := scanUser(s.q.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*auth.User, error) {
	user := &auth.User{}
	err := row.Scan(
		&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash,
		&user.Enabled, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
