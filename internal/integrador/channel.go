package integrador

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/logging"
)

// DefaultPollInterval is how often Channel rescans the output directory for
// responses the Watcher did not report.
const DefaultPollInterval = time.Second

// Channel matches responses to the requests waiting for them. Any number of
// requests may be armed at once; a response is delivered to every Pending
// armed with its identifier and ignored by the others.
type Channel struct {
	Dir          string        // output directory, rescanned while requests are armed
	Pattern      string        // defaults to DefaultPattern
	PollInterval time.Duration // defaults to DefaultPollInterval; negative disables polling
	GracePeriod  time.Duration // minimum file age before a polled file is read
	Logger       *slog.Logger

	mu        sync.Mutex
	pending   map[string][]*Pending
	observers map[chan Response]struct{}
	scanned   map[string]time.Time // path -> mod time already parsed by the poller
}

// NewChannel returns a Channel over the output directory dir.
func NewChannel(dir string) *Channel {
	return &Channel{Dir: dir}
}

// Pending is a request waiting for its response.
type Pending struct {
	ID          string
	RequestPath string
	CreatedAt   time.Time

	ch      *Channel
	result  chan Response
	release sync.Once
	done    chan struct{}
}

// Expect arms a correlation for id. It must be called before the request is
// written so a fast response cannot be missed.
func (c *Channel) Expect(id string) *Pending {
	p := &Pending{
		ID:        id,
		CreatedAt: time.Now(),
		ch:        c,
		result:    make(chan Response, 1),
		done:      make(chan struct{}),
	}
	c.mu.Lock()
	if c.pending == nil {
		c.pending = map[string][]*Pending{}
	}
	c.pending[id] = append(c.pending[id], p)
	c.mu.Unlock()
	return p
}

// Wait blocks until the response for p arrives or ctx ends. A deadline
// yields ErrCorrelationTimeout; any other cancellation yields ctx.Err().
// The registration is released in every case.
func (p *Pending) Wait(ctx context.Context) (Response, error) {
	defer p.Cancel()
	select {
	case resp := <-p.result:
		return resp, nil
	case <-p.done:
		select {
		case resp := <-p.result:
			return resp, nil
		default:
		}
		return Response{}, fmt.Errorf("integrador: wait %s: %w", p.ID, context.Canceled)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{}, fmt.Errorf("%w: id %s after %s", ErrCorrelationTimeout, p.ID, time.Since(p.CreatedAt).Round(time.Millisecond))
		}
		return Response{}, ctx.Err()
	}
}

// Cancel releases the registration. It is safe to call more than once.
func (p *Pending) Cancel() {
	p.release.Do(func() {
		p.ch.remove(p)
		close(p.done)
	})
}

func (c *Channel) remove(p *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := c.pending[p.ID]
	for i, w := range waiters {
		if w == p {
			waiters = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(waiters) == 0 {
		delete(c.pending, p.ID)
	} else {
		c.pending[p.ID] = waiters
	}
}

// Armed reports whether a request with id is waiting.
func (c *Channel) Armed(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending[id]) > 0
}

// armedSince returns the creation time of the oldest request armed with id.
func (c *Channel) armedSince(id string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := c.pending[id]
	if len(waiters) == 0 {
		return time.Time{}, false
	}
	oldest := waiters[0].CreatedAt
	for _, w := range waiters[1:] {
		if w.CreatedAt.Before(oldest) {
			oldest = w.CreatedAt
		}
	}
	return oldest, true
}

// Len returns the number of armed requests.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.pending {
		n += len(w)
	}
	return n
}

// Dispatch delivers resp to the requests armed with its identifier and to
// observers. It reports whether any request was waiting.
func (c *Channel) Dispatch(resp Response) bool {
	c.mu.Lock()
	waiters := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	observers := make([]chan Response, 0, len(c.observers))
	for o := range c.observers {
		observers = append(observers, o)
	}
	c.mu.Unlock()

	for _, p := range waiters {
		select {
		case p.result <- resp:
		default:
		}
	}
	for _, o := range observers {
		select {
		case o <- resp:
		default:
		}
	}
	return len(waiters) > 0
}

// Observe returns a channel receiving every dispatched response and a
// function that unsubscribes it. Slow observers miss responses.
func (c *Channel) Observe() (<-chan Response, func()) {
	o := make(chan Response, 32)
	c.mu.Lock()
	if c.observers == nil {
		c.observers = map[chan Response]struct{}{}
	}
	c.observers[o] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return o, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, o)
			c.mu.Unlock()
		})
	}
}

// Run dispatches responses until ctx is cancelled or responses is closed.
// While requests are armed it also rescans Dir every PollInterval.
func (c *Channel) Run(ctx context.Context, responses <-chan Response) error {
	logger := c.logger()

	var tick <-chan time.Time
	if c.PollInterval >= 0 && c.Dir != "" {
		interval := c.PollInterval
		if interval == 0 {
			interval = DefaultPollInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case resp, ok := <-responses:
			if !ok {
				return nil
			}
			if !c.Dispatch(resp) {
				logger.Debug("integrador response without waiter", "id", resp.ID, "path", resp.SourcePath)
			}
		case <-tick:
			c.Poll()
		}
	}
}

// Poll scans Dir once and dispatches files answering armed requests.
func (c *Channel) Poll() {
	if c.Len() == 0 {
		return
	}
	pattern := c.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := filepath.Glob(filepath.Join(c.Dir, pattern))
	if err != nil {
		c.logger().Error("integrador poll", "dir", c.Dir, "error", err)
		return
	}

	present := make(map[string]bool, len(matches))
	for _, path := range matches {
		present[path] = true
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if time.Since(info.ModTime()) < c.GracePeriod {
			continue
		}
		c.mu.Lock()
		seen, ok := c.scanned[path]
		c.mu.Unlock()
		if ok && seen.Equal(info.ModTime()) {
			continue
		}

		resp, err := ParseResponseFile(path)
		c.mu.Lock()
		if c.scanned == nil {
			c.scanned = map[string]time.Time{}
		}
		c.scanned[path] = info.ModTime()
		c.mu.Unlock()
		if err != nil {
			continue
		}
		// ids repeat once evicted from the session history; files older than
		// the request belong to an earlier exchange
		if since, ok := c.armedSince(resp.ID); ok && !info.ModTime().Before(since.Truncate(time.Second)) {
			c.logger().Debug("integrador response found by poll", "id", resp.ID, "path", path)
			c.Dispatch(resp)
		}
	}

	c.mu.Lock()
	for path := range c.scanned {
		if !present[path] {
			delete(c.scanned, path)
		}
	}
	c.mu.Unlock()
}

func (c *Channel) logger() *slog.Logger {
	if c.Logger == nil {
		return logging.Discard()
	}
	return c.Logger
}
