package integrador

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/logging"
)

const (
	DefaultPattern     = "*.xml"
	DefaultGracePeriod = 2 * time.Second
)

// Watcher publishes a Response for every output document written by the
// Integrador. Each file is parsed once the grace period has elapsed since its
// last Create or Write event, so partially written files are not read.
type Watcher struct {
	Dir         string
	Pattern     string        // defaults to DefaultPattern
	GracePeriod time.Duration // defaults to DefaultGracePeriod; negative means none
	Logger      *slog.Logger

	responses chan Response
	errs      chan error
	once      sync.Once
	onWatch   func(*fsnotify.Watcher) // called once the directory is watched
}

// NewWatcher returns a Watcher on dir.
func NewWatcher(dir string) *Watcher {
	w := &Watcher{Dir: dir}
	w.init()
	return w
}

func (w *Watcher) init() {
	w.once.Do(func() {
		w.responses = make(chan Response, 64)
		w.errs = make(chan error, 16)
	})
}

// Responses is closed when Run returns.
func (w *Watcher) Responses() <-chan Response {
	w.init()
	return w.responses
}

// Errors carries parse and watch failures. Failures are also logged, and a
// full Errors channel drops them.
func (w *Watcher) Errors() <-chan error {
	w.init()
	return w.errs
}

// Run watches Dir until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.init()
	defer close(w.responses)
	defer close(w.errs)

	logger := w.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	pattern := w.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	grace := w.GracePeriod
	if grace == 0 {
		grace = DefaultGracePeriod
	} else if grace < 0 {
		grace = 0
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("integrador: watcher: %w", err)
	}
	defer fw.Close()
	dir := filepath.Clean(w.Dir)
	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("integrador: watch %s: %w", w.Dir, err)
	}
	logger.Info("watching integrador output", "dir", w.Dir, "pattern", pattern, "grace", grace)
	if w.onWatch != nil {
		w.onWatch(fw)
	}

	ready := make(chan string, 64)
	done := make(chan struct{})
	defer close(done)
	timers := map[string]*time.Timer{}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return w.streamClosed(ctx)
			}
			if filepath.Clean(ev.Name) == dir && (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) {
				return fmt.Errorf("%w: %s", ErrWatchLost, w.Dir)
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if match, _ := filepath.Match(pattern, filepath.Base(ev.Name)); !match {
				continue
			}
			name := ev.Name
			if t, pending := timers[name]; pending {
				t.Reset(grace)
				continue
			}
			timers[name] = time.AfterFunc(grace, func() {
				select {
				case ready <- name:
				case <-done:
				}
			})

		case name := <-ready:
			delete(timers, name)
			resp, err := ParseResponseFile(name)
			if err != nil {
				// the writer may still be flushing; a later Write event retries
				logger.Warn("integrador response skipped", "path", name, "error", err)
				w.report(err)
				continue
			}
			logger.Debug("integrador response", "id", resp.ID, "path", name)
			select {
			case w.responses <- resp:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return w.streamClosed(ctx)
			}
			logger.Error("integrador watch error", "error", err)
			w.report(err)
		}
	}
}

// streamClosed is the result of Run when fsnotify stops delivering.
func (w *Watcher) streamClosed(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("%w: %s: event stream closed", ErrWatchLost, w.Dir)
}

func (w *Watcher) report(err error) {
	select {
	case w.errs <- err:
	default:
	}
}
