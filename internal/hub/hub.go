// Package hub owns the long-lived per-terminal objects: one session
// allocator, sales journal, fiscal service and Integrador client per caixa,
// created on first use and shared by every caller in the process.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/caixa"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/config"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/filelock"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/fiscal"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/integrador"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/journal"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/logging"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/notify"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/sessao"
)

// Terminal groups the objects serving one caixa.
type Terminal struct {
	Caixa      int
	Sessoes    *sessao.Allocator
	Sales      *journal.Sales
	Vendas     *fiscal.Vendas
	Integrador *integrador.Client
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithEngine replaces the fiscal engine built from [fiscal] driver.
func WithEngine(e fiscal.Engine) Option {
	return func(r *Registry) { r.engine = e }
}

// WithRenderer replaces the embedded Integrador request templates.
func WithRenderer(rd integrador.Renderer) Option {
	return func(r *Registry) { r.renderer = rd }
}

// Registry creates and caches Terminals. It is safe for concurrent use.
type Registry struct {
	cfg      *config.Config
	logger   *slog.Logger
	guard    filelock.Guard
	engine   fiscal.Engine
	renderer integrador.Renderer

	Errors  *journal.Errors
	Channel *integrador.Channel

	mu        sync.Mutex
	terminals map[int]*Terminal
	stop      context.CancelFunc
	done      chan error
}

// New builds a Registry from cfg. The shared error journal and Integrador
// channel are created here; terminals are created by Terminal.
func New(cfg *config.Config, opts ...Option) *Registry {
	r := &Registry{cfg: cfg, terminals: map[int]*Terminal{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	if r.engine == nil {
		r.engine = fiscal.NewExecEngine(cfg.Fiscal.Driver, cfg.Fiscal.CodigoAtivacao)
	}
	r.guard = filelock.Guard{
		Attempts: cfg.Journal.WriteRetries,
		Wait:     cfg.Journal.LockWait(),
		Logger:   r.logger,
	}

	r.Errors = journal.NewErrors(cfg.Hub.DataDir, cfg.Journal.ErrorsCapacity,
		journal.NewStore[journal.ErrorEntry](r.guard, r.logger))
	if cfg.Notifications.URL != "" {
		r.Errors.OnRecord(notify.New(cfg.Notifications.URL, "SATHub", cfg.Notifications.OnError).Hook)
	}

	r.Channel = integrador.NewChannel(cfg.Integrador.OutputDir())
	r.Channel.Pattern = cfg.Integrador.Pattern
	r.Channel.PollInterval = cfg.Integrador.PollInterval()
	r.Channel.GracePeriod = cfg.Integrador.GracePeriod()
	r.Channel.Logger = r.logger
	return r
}

// Logger returns the registry logger.
func (r *Registry) Logger() *slog.Logger { return r.logger }

// Config returns the configuration the registry was built from.
func (r *Registry) Config() *config.Config { return r.cfg }

// Terminal returns the objects of caixa t, creating them on first use.
func (r *Registry) Terminal(t int) (*Terminal, error) {
	if err := caixa.Validate(t); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if term, ok := r.terminals[t]; ok {
		return term, nil
	}

	logger := r.logger.With("caixa", t)
	alloc, err := sessao.New(t,
		sessao.WithDir(r.cfg.Hub.DataDir),
		sessao.WithCapacity(r.cfg.Hub.HistorySize),
		sessao.WithGuard(r.guard),
		sessao.WithLogger(r.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("hub: terminal %d: %w", t, err)
	}

	sales := journal.NewSales(r.cfg.Hub.DataDir, t, r.cfg.Journal.SalesCapacity,
		journal.NewStore[journal.SaleEntry](r.guard, logger))

	term := &Terminal{
		Caixa:   t,
		Sessoes: alloc,
		Sales:   sales,
		Vendas: &fiscal.Vendas{
			Caixa:     t,
			Engine:    r.engine,
			Numerador: alloc,
			Sales:     sales,
			Errors:    r.Errors,
			Logger:    r.logger,
		},
		Integrador: &integrador.Client{
			Caixa:                t,
			InputDir:             r.cfg.Integrador.InputDir(),
			ChaveAcessoValidador: r.cfg.Integrador.ChaveAcessoValidador,
			Timeout:              r.cfg.Integrador.Timeout(),
			Numerador:            alloc,
			Renderer:             r.renderer,
			Channel:              r.Channel,
			Errors:               r.Errors,
			Logger:               r.logger,
		},
	}
	r.terminals[t] = term
	logger.Debug("terminal ready", "faixa", alloc.Range().String(), "historico", len(alloc.History()))
	return term, nil
}

func (r *Registry) newWatcher() *integrador.Watcher {
	w := integrador.NewWatcher(r.cfg.Integrador.OutputDir())
	w.Pattern = r.cfg.Integrador.Pattern
	w.GracePeriod = r.cfg.Integrador.GracePeriod()
	w.Logger = r.logger
	return w
}

// Run watches the Integrador output directory and dispatches responses
// until ctx is cancelled or watching fails. The input and output
// directories are created when missing.
func (r *Registry) Run(ctx context.Context) error {
	for _, dir := range []string{r.cfg.Integrador.InputDir(), r.cfg.Integrador.OutputDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("hub: integrador dir: %w", err)
		}
	}

	w := r.newWatcher()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Channel.Run(ctx, w.Responses())
	}()

	go func() {
		for err := range w.Errors() {
			r.logger.Debug("integrador watcher", "error", err)
		}
	}()

	err := w.Run(ctx)
	wg.Wait()
	if err == nil && ctx.Err() == nil {
		// a watcher must not stop on its own; let Supervise restart it
		err = fmt.Errorf("%w: watcher stopped", integrador.ErrWatchLost)
	}
	if err != nil {
		return fmt.Errorf("hub: %w", err)
	}
	return nil
}

// Supervise runs Run, restarting it after failures as configured by
// [integrador] restart_retries and restart_backoff_ms.
func (r *Registry) Supervise(ctx context.Context) error {
	return Supervisor{
		MaxRetries: r.cfg.Integrador.RestartRetries,
		Backoff:    r.cfg.Integrador.RestartBackoff(),
		Logger:     r.logger,
	}.Supervise(ctx, r.Run)
}

// Start runs Supervise in the background until Close.
func (r *Registry) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.stop = cancel
	r.done = make(chan error, 1)
	done := r.done
	r.mu.Unlock()
	go func() {
		err := r.Supervise(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		done <- err
	}()
}

// Close stops a registry started with Start and returns the supervision
// error, if any.
func (r *Registry) Close() error {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()
	if stop == nil {
		return nil
	}
	stop()
	return <-done
}

// Caixas lists the terminals created so far.
func (r *Registry) Caixas() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.terminals))
	for t := range r.terminals {
		out = append(out, t)
	}
	return out
}
