package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/scribe/pkg/storage"
)

func setupTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db := storage.OpenTestDB(t)
	return NewStore(db), db
}

func TestStore_CreateAndGet(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	user, err := store.Create(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.True(t, user.Enabled)

	byID, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.DisplayName)
	assert.Equal(t, "hash", byID.PasswordHash)
	assert.True(t, byID.Enabled)

	byEmail, err := store.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = store.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = store.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_CreateDuplicateFails(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	_, err = store.Create(ctx, "alice", "other@example.com", "hash")
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "displayname", dup.Field)

	_, err = store.Create(ctx, "bob", "alice@example.com", "hash")
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)
}

func TestStore_UpdateDuplicateFails(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)
	bob, err := store.Create(ctx, "bob", "bob@example.com", "hash")
	require.NoError(t, err)

	email := "alice@example.com"
	_, err = store.Update(ctx, bob.ID, Update{Email: &email})
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)
}

func TestStore_UniquenessIgnoresSelf(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	alice, err := store.Create(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)
	bob, err := store.Create(ctx, "bob", "bob@example.com", "hash")
	require.NoError(t, err)

	tests := []struct {
		name     string
		check    func() (bool, error)
		expected bool
	}{
		{"name taken on signup", func() (bool, error) { return store.DisplayNameTaken(ctx, "alice", 0) }, true},
		{"name free", func() (bool, error) { return store.DisplayNameTaken(ctx, "carol", 0) }, false},
		{"own name on update", func() (bool, error) { return store.DisplayNameTaken(ctx, "alice", alice.ID) }, false},
		{"other's name on update", func() (bool, error) { return store.DisplayNameTaken(ctx, "alice", bob.ID) }, true},
		{"own email on update", func() (bool, error) { return store.EmailTaken(ctx, "bob@example.com", bob.ID) }, false},
		{"other's email on update", func() (bool, error) { return store.EmailTaken(ctx, "bob@example.com", alice.ID) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taken, err := tt.check()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, taken)
		})
	}
}

func TestStore_Update(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	user, err := store.Create(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	name := "alice2"
	enabled := false
	updated, err := store.Update(ctx, user.ID, Update{DisplayName: &name, Enabled: &enabled})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.DisplayName)
	assert.Equal(t, "alice@example.com", updated.Email)
	assert.False(t, updated.Enabled)

	unchanged, err := store.Update(ctx, user.ID, Update{})
	require.NoError(t, err)
	assert.Equal(t, "alice2", unchanged.DisplayName)

	_, err = store.Update(ctx, 999, Update{DisplayName: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_SetEnabledIsNoOpWhenUnchanged(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	user, err := store.Create(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	changed, err := store.SetEnabled(ctx, user.ID, false)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.SetEnabled(ctx, user.ID, false)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
}

func TestStore_ListAndCount(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := store.Create(ctx, name, name+"@example.com", "hash")
		require.NoError(t, err)
	}

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].DisplayName)
	assert.Equal(t, "carol", users[2].DisplayName)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStore_QueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("connection reset"))
	_, err = store.Count(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count users")

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").WillReturnError(errors.New("connection reset"))
	_, err = store.GetByID(ctx, 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)

	mock.ExpectExec("UPDATE users SET enabled").WillReturnError(errors.New("connection reset"))
	_, err = store.SetEnabled(ctx, 1, false)
	assert.Error(t, err)

	mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{
		Code:       "23505",
		Table:      "users",
		Constraint: "users_email_key",
	})
	_, err = store.Create(ctx, "alice", "alice@example.com", "hash")
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)

	mock.ExpectQuery("INSERT INTO users").WillReturnError(errors.New("connection reset"))
	_, err = store.Create(ctx, "alice", "alice@example.com", "hash")
	assert.Contains(t, err.Error(), "failed to create user")

	assert.NoError(t, mock.ExpectationsWereMet())
}
