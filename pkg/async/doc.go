// Package async runs background work with a timeout and panic recovery.
//
// Scheduled jobs such as expired token cleanup run through Run so that a
// failing or panicking job is logged and never takes the process down:
//
//	err := async.Run(ctx, time.Minute, "token cleanup", logger, func(ctx context.Context) error {
//		_, err := tokens.CleanupExpiredTokens(ctx)
//		return err
//	})
//
// Go does the same on a new goroutine for fire-and-forget work.
package async
