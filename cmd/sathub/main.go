// Package main is the entry point for the SATHub CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sathub:", err)
		os.Exit(exitCode(err))
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sathub",
		Short:         "SATHub: fiscal device and Integrador hub for point-of-sale terminals",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to sathub.toml (default: search upwards from the working directory)")
	root.PersistentFlags().Int("caixa", -1, "terminal index 0..999 (default: hub.caixa from config)")
	root.PersistentFlags().String("format", "text", "output format: text, json or yaml")
	root.PersistentFlags().String("log-level", "", "override log.level from config")

	root.AddCommand(
		initCmd(),
		faixaCmd(),
		sessaoCmd(),
		journalCmd(),
		vendaCmd(),
		consultarCmd(),
		integradorCmd(),
		sweepCmd(),
		serveCmd(),
	)

	return root
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
