// Package filelock guards journal writes with an advisory file lock and a
// bounded retry policy.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/logging"
)

// ErrWriteConflict is returned when every write attempt failed because the
// target file was held by another writer.
var ErrWriteConflict = errors.New("filelock: write conflict")

const (
	DefaultAttempts = 3
	DefaultWait     = 250 * time.Millisecond

	// pollDelay is how often a blocked attempt re-tries the lock while waiting.
	pollDelay = 10 * time.Millisecond
)

// Guard serializes writers of the same file across processes. Each attempt
// waits at most Wait for the lock; after Attempts failures the write is
// abandoned with ErrWriteConflict.
type Guard struct {
	Attempts int
	Wait     time.Duration
	Logger   *slog.Logger
}

// Default returns a Guard with the default attempts and wait.
func Default() Guard {
	return Guard{Attempts: DefaultAttempts, Wait: DefaultWait}
}

// LockPath is the sidecar file used as the lock for path.
func LockPath(path string) string {
	return path + ".lock"
}

// Do runs write while holding the lock for path. A failed lock acquisition
// or a failed write both count as one attempt and are logged at critical
// level. The last underlying error is joined into the returned
// ErrWriteConflict.
func (g Guard) Do(ctx context.Context, path string, write func() error) error {
	attempts := g.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	logger := g.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = g.attempt(ctx, path, write)
		if lastErr == nil {
			return nil
		}
		logging.Critical(logger, "journal write failed",
			"path", path,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", lastErr,
		)
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", ErrWriteConflict, path, attempts, lastErr)
}

func (g Guard) attempt(ctx context.Context, path string, write func() error) error {
	lock := flock.New(LockPath(path))

	wait := g.Wait
	if wait <= 0 {
		wait = DefaultWait
	}
	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, pollDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock held by another writer")
	}
	defer lock.Unlock()

	return write()
}
