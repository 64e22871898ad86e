package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/integrador"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/journal"
)

// Kind classifies monitor events.
type Kind int

const (
	KindInfo Kind = iota
	KindResponse
	KindError
)

// Event is one line of monitor activity.
type Event struct {
	Time    time.Time
	Kind    Kind
	ID      string // Integrador identifier, when known
	Message string
}

// ResponseEvent describes a dispatched Integrador response.
func ResponseEvent(r integrador.Response) Event {
	at := r.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	return Event{Time: at, Kind: KindResponse, ID: r.ID, Message: r.Payload.String()}
}

// ErrorEvent describes a recorded error journal entry.
func ErrorEvent(e journal.ErrorEntry) Event {
	at := e.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	return Event{
		Time:    at,
		Kind:    KindError,
		Message: fmt.Sprintf("caixa %d  %s: %s", e.Caixa, e.Operacao, e.Mensagem),
	}
}

// InfoEvent is a free-form notice.
func InfoEvent(msg string) Event {
	return Event{Time: time.Now(), Kind: KindInfo, Message: msg}
}

// Feed collects events for the monitor. Publishing never blocks: events are
// dropped while the buffer is full. It is safe for concurrent use.
type Feed struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// NewFeed creates a Feed buffering size events.
func NewFeed(size int) *Feed {
	if size < 1 {
		size = 1
	}
	return &Feed{ch: make(chan Event, size)}
}

// Events is the channel the monitor reads. It is closed by Close.
func (f *Feed) Events() <-chan Event { return f.ch }

// Publish queues e. It reports false if e was dropped.
func (f *Feed) Publish(e Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case f.ch <- e:
		return true
	default:
		return false
	}
}

// ErrorHook publishes recorded errors. Register it with
// journal.Errors.OnRecord.
func (f *Feed) ErrorHook(e journal.ErrorEntry) {
	f.Publish(ErrorEvent(e))
}

// Follow publishes every response from responses until ctx is done or the
// channel closes.
func (f *Feed) Follow(ctx context.Context, responses <-chan integrador.Response) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-responses:
			if !ok {
				return
			}
			f.Publish(ResponseEvent(r))
		}
	}
}

// Close ends the feed. Later publishes are dropped.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}
