package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/scribe/pkg/accounts"
	"github.com/platinummonkey/scribe/pkg/audit"
	"github.com/platinummonkey/scribe/pkg/auth"
	"github.com/platinummonkey/scribe/pkg/content"
	"github.com/platinummonkey/scribe/pkg/observability"
	"github.com/platinummonkey/scribe/pkg/rbac"
	"github.com/platinummonkey/scribe/pkg/storage"
	"github.com/platinummonkey/scribe/pkg/users"
)

const testPassword = "Sup3r-secret!"

type apiFixture struct {
	server  *Server
	db      *sql.DB
	users   *users.Store
	roles   *rbac.Store
	content *content.Store
	audit   *audit.MemoryLogger
	metrics *observability.Metrics
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()

	db := storage.OpenTestDB(t)
	roles := rbac.NewStore(db, storage.DialectSQLite)
	require.NoError(t, roles.Seed(context.Background()))

	f := &apiFixture{
		db:      db,
		users:   users.NewStore(db),
		roles:   roles,
		content: content.NewStore(db),
		audit:   audit.NewMemoryLogger(),
		metrics: observability.NewMetrics(prometheus.NewRegistry(), nil),
	}

	tokens := auth.NewTokenManager(db, auth.NewLRUTokenCache(100, 0))
	guard := accounts.NewGuard(db, f.users, roles, tokens, auth.NewBcryptHasher(bcrypt.MinCost),
		accounts.WithMetrics(f.metrics), accounts.WithAuditLogger(f.audit))

	f.server = NewServer(Dependencies{
		Users:   f.users,
		Roles:   roles,
		Content: f.content,
		Tokens:  tokens,
		Guard:   guard,
		Audit:   f.audit,
		Metrics: f.metrics,
	})
	return f
}

// do sends a JSON request; body may be nil and token may be empty
func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

// signup registers a user through the API and returns it
func (f *apiFixture) signup(t *testing.T, name string) *auth.User {
	t.Helper()

	w := f.do(t, http.MethodPost, "/v1/user", "", map[string]interface{}{
		"displayname":           name,
		"email":                 name + "@example.com",
		"password":              testPassword,
		"password_confirmation": testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	user, err := f.users.GetByEmail(context.Background(), name+"@example.com")
	require.NoError(t, err)
	return user
}

// login returns a bearer token for a user created by signup
func (f *apiFixture) login(t *testing.T, name string) string {
	t.Helper()

	w := f.do(t, http.MethodPost, "/v1/user/login", "", map[string]interface{}{
		"email":    name + "@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotEmpty(t, res.AccessToken)
	return res.AccessToken
}

func (f *apiFixture) roleID(t *testing.T, name string) int64 {
	t.Helper()
	role, err := f.roles.FindRoleByName(context.Background(), name)
	require.NoError(t, err)
	return role.ID
}

// grant replaces a user's roles directly in the store
func (f *apiFixture) grant(t *testing.T, user *auth.User, roleNames ...string) {
	t.Helper()
	ids := make([]int64, 0, len(roleNames))
	for _, name := range roleNames {
		ids = append(ids, f.roleID(t, name))
	}
	require.NoError(t, f.roles.SyncRoles(context.Background(), user.ID, ids))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func userPath(id int64) string {
	return fmt.Sprintf("/v1/user/%d", id)
}
