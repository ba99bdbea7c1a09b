package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/scribe/pkg/storage"
)

func TestTokenGenerator_GenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, tokenHash, tokenPrefix, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("Token should start with %q, got %q", TokenPrefix, token)
	}

	// SHA256 = 64 hex chars
	if len(tokenHash) != 64 {
		t.Errorf("TokenHash length = %d, want 64", len(tokenHash))
	}

	if len(tokenPrefix) != len(TokenPrefix)+8 || !strings.HasPrefix(token, tokenPrefix) {
		t.Errorf("TokenPrefix %q should be the first 8 encoded chars of %q", tokenPrefix, token)
	}

	if err := tg.ValidateTokenFormat(token); err != nil {
		t.Errorf("Generated token failed validation: %v", err)
	}
}

func TestTokenGenerator_GenerateToken_Uniqueness(t *testing.T) {
	tg := NewTokenGenerator()

	tokens := make(map[string]bool)
	hashes := make(map[string]bool)

	for i := 0; i < 100; i++ {
		token, tokenHash, _, err := tg.GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}

		if tokens[token] {
			t.Errorf("Duplicate token generated: %s", token)
		}
		if hashes[tokenHash] {
			t.Errorf("Duplicate token hash generated: %s", tokenHash)
		}

		tokens[token] = true
		hashes[tokenHash] = true
	}
}

func TestTokenGenerator_HashToken(t *testing.T) {
	tg := NewTokenGenerator()

	hash1 := tg.HashToken("scribe_test123456789")
	hash2 := tg.HashToken("scribe_test123456789")

	if hash1 != hash2 {
		t.Error("Same token should produce same hash")
	}
	if len(hash1) != 64 {
		t.Errorf("Hash length = %d, want 64", len(hash1))
	}
	if hash1 == tg.HashToken("scribe_different") {
		t.Error("Different tokens should produce different hashes")
	}
}

func TestTokenGenerator_ValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid token", token: "scribe_abc123def456", wantErr: false},
		{name: "missing prefix", token: "abc123def456", wantErr: true},
		{name: "wrong prefix", token: "ghp_abc123def456", wantErr: true},
		{name: "empty token part", token: "scribe_", wantErr: true},
		{name: "invalid base64", token: "scribe_!!!invalid!!!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateTokenFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTokenFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func setupTokenTest(t *testing.T, cache TokenCache) (*TokenManager, *sql.DB, int64) {
	t.Helper()

	db := storage.OpenTestDB(t)
	now := time.Now().UTC()

	var userID int64
	err := db.QueryRow(`
		INSERT INTO users (displayname, email, password_hash, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id
	`, "token-owner", "owner@example.com", "x", true, now, now).Scan(&userID)
	require.NoError(t, err)

	return NewTokenManager(db, cache), db, userID
}

func TestTokenManager_CreateAndValidate(t *testing.T) {
	tm, _, userID := setupTokenTest(t, nil)
	ctx := context.Background()

	token, plaintext, err := tm.CreateToken(ctx, userID, "Personal Access Token", 24*time.Hour)
	require.NoError(t, err)
	assert.NotZero(t, token.ID)
	assert.True(t, strings.HasPrefix(plaintext, TokenPrefix))
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), token.ExpiresAt, time.Minute)

	validated, err := tm.ValidateToken(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, token.ID, validated.ID)
	assert.Equal(t, userID, validated.UserID)
	assert.NotNil(t, validated.LastUsedAt)
}

func TestTokenManager_ValidateToken_Rejects(t *testing.T) {
	tm, _, userID := setupTokenTest(t, nil)
	ctx := context.Background()

	_, err := tm.ValidateToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.ValidateToken(ctx, "scribe_bm90LWlzc3VlZA")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Expired
	_, plaintext, err := tm.CreateToken(ctx, userID, "short", -time.Minute)
	require.NoError(t, err)
	_, err = tm.ValidateToken(ctx, plaintext)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RevokeToken(t *testing.T) {
	cache := NewLRUTokenCache(10, time.Minute)
	tm, _, userID := setupTokenTest(t, cache)
	ctx := context.Background()

	_, plaintext, err := tm.CreateToken(ctx, userID, "t", time.Hour)
	require.NoError(t, err)

	// Populate cache
	token, err := tm.ValidateToken(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	require.NoError(t, tm.RevokeToken(ctx, token))
	assert.Equal(t, 0, cache.Len())

	_, err = tm.ValidateToken(ctx, plaintext)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RevokeUserTokensInTx(t *testing.T) {
	cache := NewLRUTokenCache(10, time.Minute)
	tm, db, userID := setupTokenTest(t, cache)
	ctx := context.Background()

	_, first, err := tm.CreateToken(ctx, userID, "a", time.Hour)
	require.NoError(t, err)
	_, second, err := tm.CreateToken(ctx, userID, "b", time.Hour)
	require.NoError(t, err)
	_, err = tm.ValidateToken(ctx, first)
	require.NoError(t, err)

	var revoked []string
	err = storage.WithTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		revoked, err = tm.WithTx(tx).RevokeUserTokens(ctx, userID)
		return err
	})
	require.NoError(t, err)
	assert.Len(t, revoked, 2)

	require.NoError(t, tm.EvictTokens(ctx, revoked...))
	assert.Equal(t, 0, cache.Len())

	for _, plaintext := range []string{first, second} {
		_, err := tm.ValidateToken(ctx, plaintext)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}

	// Nothing left to revoke
	again, err := tm.RevokeUserTokens(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestTokenManager_RevokeUserTokensRolledBack(t *testing.T) {
	tm, db, userID := setupTokenTest(t, nil)
	ctx := context.Background()

	_, plaintext, err := tm.CreateToken(ctx, userID, "a", time.Hour)
	require.NoError(t, err)

	boom := errors.New("later step failed")
	err = storage.WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tm.WithTx(tx).RevokeUserTokens(ctx, userID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = tm.ValidateToken(ctx, plaintext)
	assert.NoError(t, err, "revocation must roll back with the transaction")
}

func TestTokenManager_CleanupExpiredTokens(t *testing.T) {
	tm, _, userID := setupTokenTest(t, nil)
	ctx := context.Background()

	_, _, err := tm.CreateToken(ctx, userID, "expired", -time.Hour)
	require.NoError(t, err)
	_, _, err = tm.CreateToken(ctx, userID, "live", time.Hour)
	require.NoError(t, err)

	deleted, err := tm.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	live, err := tm.CountLiveTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, live)
}

func TestAccessToken_Live(t *testing.T) {
	now := time.Now()
	revokedAt := now.Add(-time.Minute)

	assert.True(t, (&AccessToken{ExpiresAt: now.Add(time.Hour)}).Live(now))
	assert.False(t, (&AccessToken{ExpiresAt: now.Add(-time.Second)}).Live(now))
	assert.False(t, (&AccessToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}).Live(now))
}
