package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/scribe/pkg/storage"
)

const (
	// TokenPrefix identifies scribe tokens
	TokenPrefix = "scribe_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// ErrInvalidToken covers malformed, unknown, revoked and expired tokens
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenGenerator generates and validates token strings
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new token.
// Format: scribe_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	full := TokenPrefix + encoded

	return full, tg.HashToken(full), TokenPrefix + encoded[:8], nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encoded := strings.TrimPrefix(token, TokenPrefix)
	if len(encoded) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// TokenManager manages the token lifecycle
type TokenManager struct {
	db        *sql.DB
	q         storage.Querier
	generator *TokenGenerator
	cache     TokenCache
	observe   func(result string)
	now       func() time.Time
}

// NewTokenManager creates a token manager; cache may be nil
func NewTokenManager(db *sql.DB, cache TokenCache) *TokenManager {
	return &TokenManager{
		db:        db,
		q:         db,
		generator: NewTokenGenerator(),
		cache:     cache,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ObserveCacheLookups registers fn to receive "hit", "miss" or "error" for
// every cache lookup
func (tm *TokenManager) ObserveCacheLookups(fn func(result string)) {
	tm.observe = fn
}

func (tm *TokenManager) recordLookup(result string) {
	if tm.observe != nil {
		tm.observe(result)
	}
}

// WithTx returns a manager whose queries run inside tx
func (tm *TokenManager) WithTx(tx *sql.Tx) *TokenManager {
	clone := *tm
	clone.q = tx
	return &clone
}

// CreateToken issues a token for the user valid for ttl. The plaintext is
// returned once and never stored.
func (tm *TokenManager) CreateToken(ctx context.Context, userID int64, name string, ttl time.Duration) (*AccessToken, string, error) {
	plaintext, tokenHash, tokenPrefix, err := tm.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := tm.now()
	token := &AccessToken{
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}

	err = tm.q.QueryRowContext(ctx, `
		INSERT INTO access_tokens (user_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, token.UserID, token.TokenHash, token.TokenPrefix, token.Name, token.ExpiresAt, token.CreatedAt).Scan(&token.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return token, plaintext, nil
}

// ValidateToken resolves a presented token to its live record
func (tm *TokenManager) ValidateToken(ctx context.Context, plaintext string) (*AccessToken, error) {
	if err := tm.generator.ValidateTokenFormat(plaintext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tokenHash := tm.generator.HashToken(plaintext)
	now := tm.now()

	if tm.cache != nil {
		// Cache errors fall through to the database
		cached, err := tm.cache.Get(ctx, tokenHash)
		switch {
		case err != nil:
			tm.recordLookup("error")
		case cached == nil:
			tm.recordLookup("miss")
		default:
			tm.recordLookup("hit")
			if cached.Live(now) {
				return cached, nil
			}
			return nil, ErrInvalidToken
		}
	}

	token, err := tm.getByHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	if !token.Live(now) {
		return nil, ErrInvalidToken
	}

	if _, err := tm.q.ExecContext(ctx,
		"UPDATE access_tokens SET last_used_at = $1 WHERE id = $2", now, token.ID,
	); err == nil {
		token.LastUsedAt = &now
	}

	if tm.cache != nil {
		tm.cache.Set(ctx, token, token.ExpiresAt.Sub(now))
	}

	return token, nil
}

// RevokeToken revokes a single token and evicts it from the cache
func (tm *TokenManager) RevokeToken(ctx context.Context, token *AccessToken) error {
	_, err := tm.q.ExecContext(ctx,
		"UPDATE access_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL",
		tm.now(), token.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return tm.EvictTokens(ctx, token.TokenHash)
}

// RevokeUserTokens revokes every live token of the user and returns the
// hashes that were revoked. Cache eviction is left to the caller.
func (tm *TokenManager) RevokeUserTokens(ctx context.Context, userID int64) ([]string, error) {
	now := tm.now()

	rows, err := tm.q.QueryContext(ctx,
		"SELECT token_hash FROM access_tokens WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2",
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user tokens: %w", err)
	}

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan token hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(hashes) == 0 {
		return nil, nil
	}

	if _, err := tm.q.ExecContext(ctx,
		"UPDATE access_tokens SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL",
		now, userID,
	); err != nil {
		return nil, fmt.Errorf("failed to revoke user tokens: %w", err)
	}

	return hashes, nil
}

// EvictTokens drops tokens from the cache
func (tm *TokenManager) EvictTokens(ctx context.Context, hashes ...string) error {
	if tm.cache == nil || len(hashes) == 0 {
		return nil
	}
	if err := tm.cache.Delete(ctx, hashes...); err != nil {
		return fmt.Errorf("failed to evict tokens from cache: %w", err)
	}
	return nil
}

// CleanupExpiredTokens deletes tokens that expired before now
func (tm *TokenManager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result, err := tm.q.ExecContext(ctx, "DELETE FROM access_tokens WHERE expires_at < $1", tm.now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleaned up tokens: %w", err)
	}
	return deleted, nil
}

// CountLiveTokens returns how many unrevoked, unexpired tokens exist
func (tm *TokenManager) CountLiveTokens(ctx context.Context) (int, error) {
	var count int
	err := tm.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM access_tokens WHERE revoked_at IS NULL AND expires_at > $1", tm.now(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count live tokens: %w", err)
	}
	return count, nil
}

func (tm *TokenManager) getByHash(ctx context.Context, tokenHash string) (*AccessToken, error) {
	token := &AccessToken{}
	var lastUsed, revoked sql.NullTime

	err := tm.q.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, token_prefix, name, expires_at, last_used_at, created_at, revoked_at
		FROM access_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.TokenPrefix, &token.Name,
		&token.ExpiresAt, &lastUsed, &token.CreatedAt, &revoked,
	)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if lastUsed.Valid {
		token.LastUsedAt = &lastUsed.Time
	}
	if revoked.Valid {
		token.RevokedAt = &revoked.Time
	}
	return token, nil
}
