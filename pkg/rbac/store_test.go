package rbac

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/scribe/pkg/storage"
)

func setupTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	db := storage.OpenTestDB(t)
	store := NewStore(db, storage.DialectSQLite)
	require.NoError(t, store.Seed(context.Background()))
	return store, db
}

func insertUser(t *testing.T, db *sql.DB, name string, enabled bool) int64 {
	t.Helper()

	var id int64
	now := time.Now().UTC()
	err := db.QueryRow(`
		INSERT INTO users (displayname, email, password_hash, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
	`, name, name+"@example.com", "x", enabled, now, now).Scan(&id)
	require.NoError(t, err)
	return id
}

func mustRole(t *testing.T, store *Store, name string) *Role {
	t.Helper()

	role, err := store.FindRoleByName(context.Background(), name)
	require.NoError(t, err)
	return role
}

func TestStore_SeedCreatesDefaultRoles(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	roles, err := store.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 4)

	names := []string{roles[0].Name, roles[1].Name, roles[2].Name, roles[3].Name}
	assert.Equal(t, []string{RoleDefault, RoleAdmin, RoleEditor, RoleCommenter}, names)

	admin := mustRole(t, store, RoleAdmin)
	assert.Len(t, admin.Permissions, 12)
	assert.True(t, admin.Has(PermManageRoles))
	assert.False(t, admin.Has(PermPutOwnPosts))

	editor := mustRole(t, store, RoleEditor)
	assert.ElementsMatch(t, []Permission{
		PermPostComments, PermPutOwnComments, PermDeleteOwnComments,
		PermPostPosts, PermPutOwnPosts, PermDeleteOwnPosts,
	}, editor.Permissions)

	foo := mustRole(t, store, RoleDefault)
	assert.Empty(t, foo.Permissions)

	require.NoError(t, store.RequireSeededRoles(ctx))
}

func TestStore_SeedIsIdempotent(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Seed(ctx))

	var roleCount, permCount, grantCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM roles").Scan(&roleCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM permissions").Scan(&permCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM role_permissions").Scan(&grantCount))

	assert.Equal(t, 4, roleCount)
	assert.Equal(t, 16, permCount)
	assert.Equal(t, 12+6+3, grantCount)
}

func TestStore_FindRoleByName_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.FindRoleByName(context.Background(), "Admin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRoleNotFound))
}

func TestStore_GetRole(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	commenter := mustRole(t, store, RoleCommenter)
	got, err := store.GetRole(ctx, commenter.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleCommenter, got.Name)
	assert.Len(t, got.Permissions, 3)

	_, err = store.GetRole(ctx, 9999)
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestStore_RequireSeededRoles_Missing(t *testing.T) {
	db := storage.OpenTestDB(t)
	store := NewStore(db, storage.DialectSQLite)

	err := store.RequireSeededRoles(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestStore_SyncRolesRoundTrip(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	userID := insertUser(t, db, "syncer", true)
	admin := mustRole(t, store, RoleAdmin)
	editor := mustRole(t, store, RoleEditor)
	commenter := mustRole(t, store, RoleCommenter)

	require.NoError(t, store.AssignRole(ctx, userID, commenter.ID))
	require.NoError(t, store.SyncRoles(ctx, userID, []int64{admin.ID, editor.ID, editor.ID}))

	roles, err := store.GetUserRoles(ctx, userID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{admin.ID, editor.ID}, RoleIDs(roles))

	// Sorted by name with permissions attached
	assert.Equal(t, RoleAdmin, roles[0].Name)
	assert.NotEmpty(t, roles[0].Permissions)
	assert.True(t, HasPermission(roles, PermPutOwnPosts))
}

func TestStore_SyncRolesRollsBackOnFailure(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	userID := insertUser(t, db, "partial", true)
	commenter := mustRole(t, store, RoleCommenter)
	editor := mustRole(t, store, RoleEditor)
	require.NoError(t, store.AssignRole(ctx, userID, commenter.ID))

	// 9999 violates the foreign key, so nothing may change
	err := store.SyncRoles(ctx, userID, []int64{editor.ID, 9999})
	require.Error(t, err)

	roles, err := store.GetUserRoles(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []int64{commenter.ID}, RoleIDs(roles))
}

func TestStore_AssignRoleIsIdempotent(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	userID := insertUser(t, db, "twice", true)
	editor := mustRole(t, store, RoleEditor)

	require.NoError(t, store.AssignRole(ctx, userID, editor.ID))
	require.NoError(t, store.AssignRole(ctx, userID, editor.ID))

	count, err := store.CountMembers(ctx, editor.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	held, err := store.UserHasRole(ctx, userID, editor.ID)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestStore_CountMembersIsLive(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()

	admin := mustRole(t, store, RoleAdmin)
	enabledAdmin := insertUser(t, db, "enabled-admin", true)
	disabledAdmin := insertUser(t, db, "disabled-admin", false)

	require.NoError(t, store.AssignRole(ctx, enabledAdmin, admin.ID))
	require.NoError(t, store.AssignRole(ctx, disabledAdmin, admin.ID))

	members, err := store.CountMembers(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, members)

	enabled, err := store.CountEnabledMembers(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, enabled)

	_, err = db.Exec("UPDATE users SET enabled = $1 WHERE id = $2", false, enabledAdmin)
	require.NoError(t, err)

	enabled, err = store.CountEnabledMembers(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, enabled)
}

func TestStore_MissingRoleIDs(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	admin := mustRole(t, store, RoleAdmin)

	missing, err := store.MissingRoleIDs(ctx, []int64{admin.ID, 77, 78, 77})
	require.NoError(t, err)
	assert.Equal(t, []int64{77, 78}, missing)

	missing, err = store.MissingRoleIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestStore_LockRole(t *testing.T) {
	store, db := setupTestStore(t)
	ctx := context.Background()
	admin := mustRole(t, store, RoleAdmin)

	err := storage.WithTx(ctx, db, func(tx *sql.Tx) error {
		return store.WithTx(tx).LockRole(ctx, admin.ID)
	})
	require.NoError(t, err)

	err = storage.WithTx(ctx, db, func(tx *sql.Tx) error {
		return store.WithTx(tx).LockRole(ctx, 9999)
	})
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestStore_LockRole_PostgresUsesForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db, storage.DialectPostgres)
	ctx := context.Background()

	// Without a transaction the lock would be released immediately
	err = store.LockRole(ctx, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "require a transaction")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM roles WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	err = storage.WithTx(ctx, db, func(tx *sql.Tx) error {
		return store.WithTx(tx).LockRole(ctx, 2)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CountMembers_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("connection reset"))

	store := NewStore(db, storage.DialectPostgres)
	_, err = store.CountMembers(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count role members")
}
