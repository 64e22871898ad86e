package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/caixa"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/config"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/hub"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/logging"
)

// app is the wiring shared by every command that touches the hub.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	reg    *hub.Registry
	out    printer
	caixa  int
}

type appOptions struct {
	logTo io.Writer // defaults to stderr
}

// newApp loads and validates the configuration and builds the registry.
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	format, _ := cmd.Flags().GetString("format")
	out, err := newPrinter(format, cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, usageError("load configuration", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, usageError("invalid configuration", err)
	}

	t, _ := cmd.Flags().GetInt("caixa")
	if t < 0 {
		t = cfg.Hub.Caixa
	}
	if err := caixa.Validate(t); err != nil {
		return nil, usageError("--caixa", err)
	}

	logTo := opts.logTo
	if logTo == nil {
		logTo = cmd.ErrOrStderr()
	}
	logger := logging.New(logTo, cfg.Log.Level, cfg.Log.Format)

	return &app{
		cfg:    cfg,
		logger: logger,
		reg:    hub.New(cfg, hub.WithLogger(logger)),
		out:    out,
		caixa:  t,
	}, nil
}

func (a *app) terminal() (*hub.Terminal, error) {
	term, err := a.reg.Terminal(a.caixa)
	if err != nil {
		return nil, fmt.Errorf("caixa %d: %w", a.caixa, err)
	}
	return term, nil
}

// withIntegrador runs fn with the response watcher running.
func (a *app) withIntegrador(ctx context.Context, fn func(ctx context.Context) error) error {
	a.reg.Start(ctx)
	err := fn(ctx)
	if closeErr := a.reg.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	return err
}
