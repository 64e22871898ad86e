package hub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/logging"
)

// RunFunc is a long-running task under supervision.
type RunFunc func(ctx context.Context) error

// Supervisor restarts a failing RunFunc after a fixed backoff. A run that
// returns nil ends supervision.
type Supervisor struct {
	MaxRetries int
	Backoff    time.Duration
	Logger     *slog.Logger
}

// Supervise calls run until it succeeds, ctx ends or more than MaxRetries
// consecutive attempts fail.
func (s Supervisor) Supervise(ctx context.Context, run RunFunc) error {
	logger := s.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := run(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		failures++
		if failures > s.MaxRetries {
			logging.Critical(logger, "giving up after repeated failures", "attempts", failures, "error", err)
			return fmt.Errorf("hub: gave up after %d failures: %w", failures, err)
		}
		logger.Error("restarting after failure",
			"attempt", failures+1,
			"max_attempts", s.MaxRetries+1,
			"backoff", s.Backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.Backoff):
		}
	}
}
