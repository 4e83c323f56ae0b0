// Command scoreboard-cli bundles the tooling around the scoreboard service:
// the CI forwarder, the JSONL appender and a smoke test against a live service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/forwarder"
	"github.com/okian/scoreboard/internal/smoke"
	"github.com/okian/scoreboard/pkg/logger"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var level string
	root := &cobra.Command{
		Use:           "scoreboard-cli",
		Short:         "Tools for feeding and checking the scoreboard service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithOptions(logger.WithOutput(cmd.ErrOrStderr())); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return logger.SetLevelString(level)
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(forwardCmd())
	root.AddCommand(appendCmd())
	root.AddCommand(smokeCmd())
	return root
}

func forwardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forward",
		Short: "Post PAYLOAD_LINE or PAYLOAD to the scoreboard webhook",
		Long: `Resolves the entry from PAYLOAD_LINE (raw JSON) or PAYLOAD (base64 JSON),
then posts it to STACKOVERFLOW_SCOREBOARD_WEBHOOK_URL, sending
STACKOVERFLOW_SCOREBOARD_WEBHOOK_SECRET as X-Scoreboard-Secret when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := forwarder.LoadConfig()
			if err != nil {
				return err
			}
			line, err := forwarder.ResolveLine(cfg)
			if err != nil {
				return err
			}
			f, err := forwarder.New(cfg)
			if err != nil {
				return err
			}
			if err := f.Forward(cmd.Context(), line); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Forwarded entry to the scoreboard.")
			return nil
		},
	}
}

func appendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append the base64 PAYLOAD as one line of a JSONL file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")
			cfg, err := forwarder.LoadConfig()
			if err != nil {
				return err
			}
			return runAppend(cmd.OutOrStdout(), path, cfg.Payload)
		},
	}
	cmd.Flags().StringP("file", "f", forwarder.DefaultLogPath, "JSONL file to append to")
	return cmd
}

func runAppend(out io.Writer, path, payload string) error {
	if payload == "" {
		fmt.Fprintln(out, "PAYLOAD not provided; skipping append.")
		return nil
	}
	ok, err := forwarder.AppendPayload(path, payload)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "Decoded payload is empty; nothing to append.")
		return nil
	}
	fmt.Fprintln(out, "Appended scoreboard entry.")
	return nil
}

func smokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Submit random runs to a live service and verify its leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			cfg := smoke.Config{}
			cfg.BaseURL, _ = flags.GetString("url")
			cfg.Secret, _ = flags.GetString("secret")
			cfg.Runs, _ = flags.GetInt("runs")
			cfg.Workers, _ = flags.GetInt("workers")
			cfg.Limit, _ = flags.GetInt("limit")
			cfg.Timeout, _ = flags.GetDuration("timeout")
			if cfg.Secret == "" {
				cfg.Secret = os.Getenv("SCOREBOARD_SECRET")
			}

			report, err := smoke.Run(cmd.Context(), cfg)
			printReport(cmd.OutOrStdout(), report)
			return err
		},
	}
	cmd.Flags().StringP("url", "u", "http://localhost:8080", "Base URL of the service")
	cmd.Flags().StringP("secret", "s", "", "Shared secret (default $SCOREBOARD_SECRET)")
	cmd.Flags().IntP("runs", "n", smoke.DefaultRuns, "Number of runs to submit")
	cmd.Flags().IntP("workers", "w", 0, "Concurrent submitters (default CPU cores * 2)")
	cmd.Flags().IntP("limit", "l", smoke.DefaultLimit, "Leaderboard size to fetch")
	cmd.Flags().Duration("timeout", smoke.DefaultTimeout, "Per-request timeout")
	return cmd
}

func printReport(out io.Writer, r smoke.Report) {
	fmt.Fprintf(out, "generated=%d accepted=%d relay_failed=%d rate_limited=%d failed=%d served=%d duration=%s\n",
		r.Generated, r.Accepted, r.RelayFailed, r.RateLimited, r.Failed, r.Served, r.Duration.Round(time.Millisecond))
	for i, e := range r.TopLevels[:min(len(r.TopLevels), 5)] {
		fmt.Fprintf(out, "%2d. %-3s level %-3d %s\n", i+1, e.Initials, e.Level, model.FormatTicks(e.RunTimeTicks))
	}
}
