package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/platinummonkey/scribe/pkg/observability"
)

// Job is a unit of background work
type Job func(ctx context.Context) error

// Run executes job with a timeout derived from parent. A panic is recovered,
// logged with its stack and returned as an error. Run blocks until job
// returns.
//
// Example:
//
//	scheduler.AddFunc("@hourly", func() {
//	    async.Run(ctx, time.Minute, "token cleanup", logger, cleanup)
//	})
func Run(parent context.Context, timeout time.Duration, taskName string, logger *observability.Logger, job Job) (err error) {
	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	log := logger.WithField("task", taskName)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).
				WithField("stack", string(debug.Stack())).
				Error("PANIC recovered in background task")
			err = fmt.Errorf("%s panicked: %v", taskName, r)
		}
	}()

	if err = job(ctx); err != nil {
		log.WithError(err).Error("Background task failed")
		return err
	}

	log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Background task complete")
	return nil
}

// Go is Run on a new goroutine. Failures are only logged.
func Go(parent context.Context, timeout time.Duration, taskName string, logger *observability.Logger, job Job) {
	go func() {
		_ = Run(parent, timeout, taskName, logger, job)
	}()
}
