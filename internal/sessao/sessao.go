// Package sessao allocates session numbers for one terminal.
//
// Numbers are drawn at random from the terminal's caixa.Range and are never
// repeated while they remain in the last N issued (the history). The history
// is persisted to sessoes-cx-<caixa>.json after every allocation so the
// guarantee survives restarts.
package sessao

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/btree"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/caixa"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/filelock"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/journal"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/logging"
)

// DefaultCapacity is the number of recent session numbers that must not repeat.
const DefaultCapacity = 100

// HistoryPath is the history file of terminal t inside dir.
func HistoryPath(dir string, t int) string {
	return filepath.Join(dir, fmt.Sprintf("sessoes-cx-%d.json", t))
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithCapacity sets the history size.
func WithCapacity(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.capacity = n
		}
	}
}

// WithDir sets the directory holding the history file.
func WithDir(dir string) Option {
	return func(a *Allocator) { a.dir = dir }
}

// WithRand sets the random source. Tests use a seeded source.
func WithRand(r *rand.Rand) Option {
	return func(a *Allocator) { a.rng = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

// WithGuard sets the write guard used when persisting the history.
func WithGuard(g filelock.Guard) Option {
	return func(a *Allocator) { a.guard = g }
}

// Allocator issues session numbers for one terminal. It is safe for
// concurrent use.
type Allocator struct {
	terminal int
	faixa    caixa.Range
	capacity int
	dir      string
	rng      *rand.Rand
	logger   *slog.Logger
	guard    filelock.Guard
	store    journal.Store[int]

	mu      sync.Mutex
	history []int
	index   *btree.BTreeG[int]
}

// New returns the allocator of terminal t, loading its persisted history.
// An invalid terminal index is rejected with caixa.ErrInvalidTerminal.
func New(t int, opts ...Option) (*Allocator, error) {
	faixa, err := caixa.RangeFor(t)
	if err != nil {
		return nil, fmt.Errorf("sessao: new: %w", err)
	}
	a := &Allocator{
		terminal: t,
		faixa:    faixa,
		capacity: DefaultCapacity,
		dir:      ".",
		guard:    filelock.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if a.logger == nil {
		a.logger = logging.Discard()
	}
	a.logger = a.logger.With("caixa", t)
	if a.capacity >= a.faixa.Size() {
		return nil, fmt.Errorf("sessao: new: capacity %d must be below range size %d", a.capacity, a.faixa.Size())
	}
	a.store = journal.NewStore[int](a.guard, a.logger)

	a.load()
	return a, nil
}

// load reads the history file. Repeated numbers keep their latest position
// and entries beyond capacity are trimmed from the oldest end.
func (a *Allocator) load() {
	loaded := a.store.Load(a.Path())
	a.index = btree.NewOrderedG[int](32)
	a.history = make([]int, 0, len(loaded))
	for i := len(loaded) - 1; i >= 0 && len(a.history) < a.capacity; i-- {
		if _, dup := a.index.ReplaceOrInsert(loaded[i]); dup {
			continue
		}
		a.history = append(a.history, loaded[i])
	}
	slices.Reverse(a.history)
}

// Next draws a fresh session number, records it and persists the history.
//
// When the history cannot be written after the guard's retries, the number
// is still returned together with an error wrapping
// filelock.ErrWriteConflict. The in-memory history keeps the number, but a
// restart before the next successful write forgets it.
func (a *Allocator) Next() (int, error) {
	return a.NextContext(context.Background())
}

// NextContext is Next with a context bounding the persist step.
func (a *Allocator) NextContext(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.draw()
	a.history = append(a.history, n)
	a.index.ReplaceOrInsert(n)
	for len(a.history) > a.capacity {
		a.index.Delete(a.history[0])
		a.history = a.history[1:]
	}

	snapshot := append([]int(nil), a.history...)
	if err := a.store.Write(ctx, a.Path(), snapshot); err != nil {
		logging.Critical(a.logger, "session history not persisted",
			"numero_sessao", n,
			"path", a.Path(),
			"error", err,
		)
		return n, fmt.Errorf("sessao: persist history: %w", err)
	}
	a.logger.Debug("session number issued", "numero_sessao", n)
	return n, nil
}

// draw samples uniformly from the range until it hits a number not in the
// history. Capacity is far below the range size so this terminates quickly.
func (a *Allocator) draw() int {
	size := a.faixa.Size()
	for {
		n := a.faixa.Min + a.rng.IntN(size)
		if !a.index.Has(n) {
			return n
		}
	}
}

// Contains reports whether n is in the current history.
func (a *Allocator) Contains(n int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index.Has(n)
}

// History returns a copy of the history, oldest first.
func (a *Allocator) History() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int{}, a.history...)
}

// Range returns the terminal's session-number range.
func (a *Allocator) Range() caixa.Range { return a.faixa }

// Terminal returns the terminal index.
func (a *Allocator) Terminal() int { return a.terminal }

// Capacity returns the history size.
func (a *Allocator) Capacity() int { return a.capacity }

// Path returns the history file.
func (a *Allocator) Path() string { return HistoryPath(a.dir, a.terminal) }
