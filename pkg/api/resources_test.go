package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/content"
	"github.com/platinummonkey/scribe/pkg/rbac"
)

func TestTimestampMarshal(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := timestamp(time.Date(2024, 3, 9, 14, 5, 7, 999, loc))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-09 12:05:07"`, string(data))
}

func TestRoleResourceVisibility(t *testing.T) {
	roles := []rbac.Role{
		{ID: 3, Name: rbac.RoleEditor, Permissions: []rbac.Permission{rbac.PermPostPosts, rbac.PermPostComments}},
		{ID: 1, Name: rbac.RoleDefault},
	}
	admin := &auth.AuthContext{User: &auth.User{ID: 1}, Roles: []rbac.Role{{Name: rbac.RoleAdmin}}}
	commenter := &auth.AuthContext{User: &auth.User{ID: 2}, Roles: []rbac.Role{{Name: rbac.RoleCommenter}}}

	t.Run("admin sees sorted permissions", func(t *testing.T) {
		data, err := json.Marshal(newRoleResources(roles, admin))
		require.NoError(t, err)
		assert.JSONEq(t, `[
			{"id":3,"name":"editor","permissions":["post-comments","post-posts"]},
			{"id":1,"name":"foo","permissions":[]}
		]`, string(data))
	})

	t.Run("others see names only", func(t *testing.T) {
		data, err := json.Marshal(newRoleResources(roles, commenter))
		require.NoError(t, err)
		assert.JSONEq(t, `[{"id":3,"name":"editor"},{"id":1,"name":"foo"}]`, string(data))
	})

	t.Run("input order is untouched", func(t *testing.T) {
		newRoleResources(roles, admin)
		assert.Equal(t, int64(3), roles[0].ID)
	})
}

func TestUserResourceEnabled(t *testing.T) {
	user := &auth.User{ID: 5, DisplayName: "bob", Enabled: false}
	admin := &auth.AuthContext{User: &auth.User{ID: 1}, Roles: []rbac.Role{{Name: rbac.RoleAdmin}}}

	data, err := json.Marshal(newUserResource(user, nil, admin))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":5,"displayname":"bob","enabled":false,"roles":[]}`, string(data))

	data, err = json.Marshal(newUserResource(user, nil, &auth.AuthContext{User: user}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":5,"displayname":"bob","roles":[]}`, string(data))
}

func TestPostResourceShape(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	post := &content.Post{
		ID:        7,
		UserID:    2,
		Title:     "Hello there",
		Body:      "General Kenobi",
		CreatedAt: created,
		UpdatedAt: created,
		Author:    content.Author{ID: 2, DisplayName: "eve"},
	}

	data, err := json.Marshal(newPostResource(post))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id":7,
		"title":"Hello there",
		"body":"General Kenobi",
		"created_at":"2024-01-02 03:04:05",
		"updated_at":"2024-01-02 03:04:05",
		"author":{"id":2,"displayname":"eve"},
		"tags":[]
	}`, string(data))
}
