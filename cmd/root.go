// Package cmd defines the CLI commands for the discovery service binary.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/app"
	"github.com/ddoubleg123/carrot-discovery/internal/config"
	"github.com/ddoubleg123/carrot-discovery/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discoveryd",
		Short: "Incremental web-content discovery and vetting service",
		Long: `discoveryd crawls outward from seed pages for a topic, verifies and
fetches the citations it finds, scores their content with an LLM oracle, and
persists everything that passes vetting. It runs either as an HTTP server
(serve) or as a one-shot run for a single topic (run).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (YAML)")
	cmd.AddCommand(newServeCmd(), newRunCmd())
	return cmd
}

// buildApp loads configuration and wires the full service graph. Shared by
// every subcommand so they agree on providers and logging.
func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}
	return a, nil
}

// Execute is the binary's entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
