// Package accounts owns the account lifecycle: signup, login, logout,
// profile updates and disabling.
//
// The Guard keeps one invariant: at least one enabled user holds the admin
// role. Every operation that could break it runs the same sequence under an
// in-process mutex:
//
//  1. begin a transaction
//  2. lock the admin role row (SELECT ... FOR UPDATE on postgres)
//  3. re-count enabled admins inside the transaction
//  4. apply the change, or refuse it
//
// Two concurrent self-disables by the last two admins therefore see each
// other's writes; exactly one of them succeeds.
//
// Disabling revokes the user's tokens in the same transaction. Evicting those
// tokens from the cache happens after commit and is best-effort: a failure is
// logged and counted, and the revoked rows still reject the token once the
// cache entry expires.
package accounts
