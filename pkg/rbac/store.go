package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/platinummonkey/scribe/pkg/storage"
)

// ErrRoleNotFound is returned when a role lookup matches nothing
var ErrRoleNotFound = errors.New("role not found")

// Store handles role persistence and membership
type Store struct {
	db      *sql.DB
	q       storage.Querier
	dialect storage.Dialect
}

// NewStore creates a new role store
func NewStore(db *sql.DB, dialect storage.Dialect) *Store {
	return &Store{
		db:      db,
		q:       db,
		dialect: dialect,
	}
}

// WithTx returns a store whose queries run inside tx
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{
		db:      s.db,
		q:       tx,
		dialect: s.dialect,
	}
}

// Dialect returns the SQL dialect the store was built for
func (s *Store) Dialect() storage.Dialect {
	return s.dialect
}

// CreateRole inserts a role with the given permissions
func (s *Store) CreateRole(ctx context.Context, name string, perms []Permission) (*Role, error) {
	now := time.Now().UTC()
	role := &Role{
		Name:        name,
		Permissions: perms,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.inTx(ctx, func(q storage.Querier) error {
		err := q.QueryRowContext(ctx,
			"INSERT INTO roles (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id",
			name, now, now,
		).Scan(&role.ID)
		if err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		return grantPermissions(ctx, q, role.ID, perms, now)
	})
	if err != nil {
		return nil, err
	}

	return role, nil
}

// GetRole retrieves a role by id
func (s *Store) GetRole(ctx context.Context, id int64) (*Role, error) {
	role := &Role{}
	err := s.q.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM roles WHERE id = $1", id,
	).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrRoleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if err := s.attachPermissions(ctx, []*Role{role}); err != nil {
		return nil, err
	}
	return role, nil
}

// FindRoleByName retrieves a role by its exact name
func (s *Store) FindRoleByName(ctx context.Context, name string) (*Role, error) {
	role := &Role{}
	err := s.q.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM roles WHERE name = $1", name,
	).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role: %w", err)
	}

	if err := s.attachPermissions(ctx, []*Role{role}); err != nil {
		return nil, err
	}
	return role, nil
}

// ListRoles returns every role in creation order
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	return s.queryRoles(ctx, "SELECT id, name, created_at, updated_at FROM roles ORDER BY id")
}

// GetUserRoles returns the roles held by a user, sorted by name
func (s *Store) GetUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	roles, err := s.queryRoles(ctx, `
		SELECT r.id, r.name, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	return roles, nil
}

// MissingRoleIDs returns the ids that do not reference an existing role
func (s *Store) MissingRoleIDs(ctx context.Context, ids []int64) ([]int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.q.QueryContext(ctx,
		"SELECT id FROM roles WHERE id IN ("+storage.Placeholders(1, len(ids))+")",
		storage.Int64Args(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to check roles: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan role id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// CountMembers returns the live number of users holding the role
func (s *Store) CountMembers(ctx context.Context, roleID int64) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_roles WHERE role_id = $1", roleID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count role members: %w", err)
	}
	return count, nil
}

// CountEnabledMembers returns the live number of enabled users holding the role
func (s *Store) CountEnabledMembers(ctx context.Context, roleID int64) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM user_roles ur
		JOIN users u ON u.id = ur.user_id
		WHERE ur.role_id = $1 AND u.enabled = $2
	`, roleID, true).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count enabled role members: %w", err)
	}
	return count, nil
}

// UserHasRole reports whether the user currently holds the role
func (s *Store) UserHasRole(ctx context.Context, userID, roleID int64) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_roles WHERE user_id = $1 AND role_id = $2", userID, roleID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check role membership: %w", err)
	}
	return count > 0, nil
}

// AssignRole adds a role to a user; assigning a held role is a no-op
func (s *Store) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID, roleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// SyncRoles replaces the user's role set with exactly roleIDs
func (s *Store) SyncRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	roleIDs = uniqueIDs(roleIDs)

	return s.inTx(ctx, func(q storage.Querier) error {
		if _, err := q.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = $1", userID); err != nil {
			return fmt.Errorf("failed to clear user roles: %w", err)
		}

		now := time.Now().UTC()
		for _, roleID := range roleIDs {
			_, err := q.ExecContext(ctx,
				"INSERT INTO user_roles (user_id, role_id, created_at) VALUES ($1, $2, $3)",
				userID, roleID, now,
			)
			if err != nil {
				return fmt.Errorf("failed to sync role %d: %w", roleID, err)
			}
		}
		return nil
	})
}

// LockRole takes a row lock on the role for the rest of the transaction.
// Must be called on a store returned by WithTx. SQLite serializes writers on
// its own, so there the call only checks that the role exists.
func (s *Store) LockRole(ctx context.Context, roleID int64) error {
	query := "SELECT id FROM roles WHERE id = $1"
	if s.dialect.SupportsRowLocks() {
		if _, ok := s.q.(*sql.Tx); !ok {
			return fmt.Errorf("failed to lock role %d: row locks require a transaction", roleID)
		}
		query += " FOR UPDATE"
	}

	var id int64
	err := s.q.QueryRowContext(ctx, query, roleID).Scan(&id)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %d", ErrRoleNotFound, roleID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock role: %w", err)
	}
	return nil
}

// queryRoles scans role rows then attaches their permissions
func (s *Store) queryRoles(ctx context.Context, query string, args ...interface{}) ([]Role, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}

	var roles []*Role
	for rows.Next() {
		role := &Role{}
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.attachPermissions(ctx, roles); err != nil {
		return nil, err
	}

	out := make([]Role, 0, len(roles))
	for _, role := range roles {
		out = append(out, *role)
	}
	return out, nil
}

// attachPermissions loads permission names for the given roles in one query
func (s *Store) attachPermissions(ctx context.Context, roles []*Role) error {
	if len(roles) == 0 {
		return nil
	}

	byID := make(map[int64]*Role, len(roles))
	ids := make([]int64, 0, len(roles))
	for _, role := range roles {
		role.Permissions = []Permission{}
		byID[role.ID] = role
		ids = append(ids, role.ID)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT rp.role_id, p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id IN (`+storage.Placeholders(1, len(ids))+`)
		ORDER BY p.name
	`, storage.Int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to load role permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roleID int64
		var name string
		if err := rows.Scan(&roleID, &name); err != nil {
			return fmt.Errorf("failed to scan role permission: %w", err)
		}
		if role, ok := byID[roleID]; ok {
			role.Permissions = append(role.Permissions, Permission(name))
		}
	}
	return rows.Err()
}

// inTx runs fn in the store's transaction, or a new one when the store is
// bound to the pool
func (s *Store) inTx(ctx context.Context, fn func(q storage.Querier) error) error {
	if tx, ok := s.q.(*sql.Tx); ok {
		return fn(tx)
	}
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(tx)
	})
}

// grantPermissions links permissions to a role, creating missing permission rows
func grantPermissions(ctx context.Context, q storage.Querier, roleID int64, perms []Permission, now time.Time) error {
	for _, perm := range perms {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO permissions (name, created_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING",
			string(perm), now,
		); err != nil {
			return fmt.Errorf("failed to create permission %s: %w", perm, err)
		}

		if _, err := q.ExecContext(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, id FROM permissions WHERE name = $2
			ON CONFLICT (role_id, permission_id) DO NOTHING
		`, roleID, string(perm)); err != nil {
			return fmt.Errorf("failed to grant permission %s: %w", perm, err)
		}
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
