// Package audit records security-relevant events: logins, authorization
// denials, role changes and account disables.
//
// # Event Types
//
// Authentication: auth.signup, auth.login, auth.login_failed, auth.logout
// Authorization: authz.access_denied, authz.role_change
// Accounts: account.update, account.disable, account.disable_blocked
// Data: data.create, data.update, data.delete
//
// # Usage Example
//
//	logger := audit.NewLogrusLogger(os.Stdout)
//	ctx = audit.WithLogger(ctx, logger)
//
//	audit.FromContext(ctx).LogAuthorization(ctx, audit.EventTypeAuthzAccessDenied,
//		&userID, audit.ResourceTypePost, "12", audit.EventStatusDenied, "not the owner")
//
// FromContext falls back to a no-op logger, so callers never nil-check.
// Audit failures are reported to the caller but must never fail the request
// that produced the event.
package audit
