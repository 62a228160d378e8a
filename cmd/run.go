package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/app"
	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

func newRunCmd() *cobra.Command {
	var (
		aliases []string
		handle  string
		claims  []string
	)
	cmd := &cobra.Command{
		Use:   "run <topic name>",
		Short: "Run a single discovery pass for a topic and print the summary",
		Long: `Seeds a frontier for the named topic, drives it to completion, and
prints the run summary as JSON. Useful for local experiments and cron-style
batch discovery without the HTTP server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := discovery.Topic{
				Name:            args[0],
				Aliases:         aliases,
				Handle:          handle,
				ContestedClaims: claims,
			}
			return runOnce(cmd, topic)
		},
	}
	cmd.Flags().StringSliceVar(&aliases, "alias", nil, "alternate names for the topic (repeatable)")
	cmd.Flags().StringVar(&handle, "handle", "", "stable handle for the topic")
	cmd.Flags().StringSliceVar(&claims, "contested-claim", nil, "claims needing extra scrutiny (repeatable)")
	return cmd
}

func runOnce(cmd *cobra.Command, topic discovery.Topic) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	runID, err := a.Runner.StartRun(ctx, topic)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	a.Logger.Info("run started", zap.String("run_id", runID), zap.String("topic", topic.Name))
	a.Runner.Wait(runID)

	status, err := a.Runner.RunStatus(ctx, runID)
	if err != nil {
		return fmt.Errorf("read run status: %w", err)
	}
	if status.State == app.StateFailed {
		return errors.New("run failed: " + status.ErrorMsg)
	}

	summary, err := a.Runner.RunSummary(ctx, runID)
	if err != nil {
		return fmt.Errorf("read run summary: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
