// Package reclaim deletes transient artifact files after a delay.
//
// Each scheduled deletion runs on its own timer, independent of job state.
// Failures are logged and swallowed - a file that was already downloaded
// and removed by hand is not an error worth surfacing.
package reclaim

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDelay is used when a schedule request carries no delay.
const DefaultDelay = 30 * time.Second

// Reclaimer schedules deferred file deletions.
type Reclaimer struct {
	ctx    context.Context
	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

// New creates a reclaimer. Pending deletions are abandoned when ctx is
// cancelled; the files die with the host's scratch directory anyway.
func New(ctx context.Context, logger *zap.SugaredLogger) *Reclaimer {
	return &Reclaimer{
		ctx:    ctx,
		logger: logger,
	}
}

// Schedule starts an independent timer that deletes the file at path once
// the delay elapses. Returns immediately. Deletion errors are logged, never
// surfaced to the caller.
func (r *Reclaimer) Schedule(path string, delay time.Duration) {
	if delay <= 0 {
		delay = DefaultDelay
	}

	r.logger.Debugw("Artifact reclaim scheduled",
		"path", path,
		"delay", delay,
	)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-r.ctx.Done():
			r.logger.Debugw("Artifact reclaim abandoned on shutdown", "path", path)
			return
		case <-timer.C:
		}

		if err := os.Remove(path); err != nil {
			r.logger.Warnw("Failed to reclaim artifact",
				"path", path,
				"error", err,
			)
			return
		}

		r.logger.Infow("Artifact reclaimed", "path", path)
	}()
}

// Wait blocks until all scheduled deletions have fired or been abandoned.
// Used by tests and shutdown paths.
func (r *Reclaimer) Wait() {
	r.wg.Wait()
}
