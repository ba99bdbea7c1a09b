// Package auth provides accounts, bearer tokens and password hashing for
// scribe.
//
// # Tokens
//
// Tokens are opaque strings of the form scribe_<base64url(32 random bytes)>.
// Only the SHA256 hash is stored. The plaintext is returned once, at login.
//
//	manager := auth.NewTokenManager(db, cache)
//	token, plaintext, err := manager.CreateToken(ctx, user.ID, "Personal Access Token", 24*time.Hour)
//
// ValidateToken consults the cache first, then the access_tokens table, and
// rejects revoked or expired tokens.
//
// RevokeUserTokens marks every live token of a user revoked. It is meant to
// run inside the transaction that disables the user (see WithTx) and returns
// the hashes it revoked, so the caller can evict them from the cache after
// commit with EvictTokens.
//
// # Caches
//
// Two TokenCache implementations exist:
//
//   - LRUTokenCache: in-process expirable LRU, for single instance deploys.
//   - RedisTokenCache: shared cache, so a revoke on one instance is seen by all.
//
// # Passwords
//
// BcryptHasher implements PasswordHasher with golang.org/x/crypto/bcrypt.
//
// # Auth context
//
// AuthContext carries the actor's user record, roles and presented token. It
// satisfies the authorization engine's Subject interface.
package auth
