package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/api"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/tui"
)

const shutdownTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and dispatch Integrador responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			withTUI, _ := cmd.Flags().GetBool("tui")
			addr, _ := cmd.Flags().GetString("addr")

			opts := appOptions{}
			if withTUI {
				// the monitor owns the terminal
				path, _ := cmd.Flags().GetString("log-file")
				f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
				if err != nil {
					return usageError("open log file", err)
				}
				defer f.Close()
				opts.logTo = f
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}

			ctx, cancel := signalContext()
			defer cancel()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return usageError("listen "+addr, err)
			}

			if !withTUI {
				return serve(ctx, a, ln, nil)
			}
			return serveWithTUI(ctx, cancel, a, ln)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default: http.addr from config)")
	cmd.Flags().Bool("tui", false, "show the live monitor")
	cmd.Flags().String("log-file", filepath.Join(os.TempDir(), "sathub.log"), "log destination while the monitor is shown")
	return cmd
}

// serve runs the HTTP API and the Integrador dispatcher until ctx ends.
// ready, when set, is closed once both are running.
func serve(ctx context.Context, a *app, ln net.Listener, ready chan<- struct{}) error {
	srv := &http.Server{
		Handler:           api.Build(a.reg, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.reg.Start(ctx)
	defer a.reg.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	a.logger.Info("listening", "addr", ln.Addr().String(), "integrador", a.cfg.Integrador.Path)
	if ready != nil {
		close(ready)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// serveWithTUI runs serve in the background and the monitor in the
// foreground. Quitting the monitor stops the server.
func serveWithTUI(ctx context.Context, cancel context.CancelFunc, a *app, ln net.Listener) error {
	feed := tui.NewFeed(256)
	a.reg.Errors.OnRecord(feed.ErrorHook)
	responses, unsubscribe := a.reg.Channel.Observe()
	defer unsubscribe()

	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, a, ln, ready) }()
	go feed.Follow(ctx, responses)
	go func() {
		<-ctx.Done()
		feed.Close()
	}()

	select {
	case <-ready:
		feed.Publish(tui.InfoEvent(fmt.Sprintf("listening on %s, integrador at %s", ln.Addr(), a.cfg.Integrador.Path)))
	case err := <-errCh:
		return err
	}

	model := tui.New(feed.Events(), tui.Options{
		Title:       "SATHub " + ln.Addr().String(),
		AccentColor: a.cfg.TUI.AccentColor,
		Pending:     a.reg.Channel.Len,
	})
	_, tuiErr := tea.NewProgram(model, tea.WithAltScreen()).Run()
	cancel()
	serveErr := <-errCh
	if tuiErr != nil {
		return fmt.Errorf("tui: %w", tuiErr)
	}
	return serveErr
}
