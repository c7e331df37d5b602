package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kidregistry/internal/logger"
)

var scheduleEvery time.Duration

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Repeat sync on a fixed interval until interrupted",
	Long: `Schedule runs a sync immediately and then every --every interval.
A run that ends with storage unavailable is logged and retried at the
next tick. Ctrl-C stops after the current source.

Example:
  kidregistry schedule --every 24h --sources judicial,news,gov
  kidregistry schedule --every 6h --metrics-addr :9090`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	addSyncFlags(scheduleCmd)
	scheduleCmd.Flags().DurationVar(&scheduleEvery, "every", 24*time.Hour, "interval between sync runs")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if scheduleEvery < time.Minute {
		return fmt.Errorf("--every must be at least 1m")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	names, err := selectedSources()
	if err != nil {
		return err
	}
	if syncConcurrency > 0 {
		cfg.Sync.Concurrency = syncConcurrency
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	orch, err := a.orchestrator(ctx, syncForce)
	if err != nil {
		return err
	}
	log := logger.Named("schedule")

	return withMetricsServer(ctx, a, func(ctx context.Context) error {
		ticker := time.NewTicker(scheduleEvery)
		defer ticker.Stop()
		for {
			summary, err := runBatch(ctx, cmd.ErrOrStderr(), orch, names)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			if summary.Failed {
				log.Error().Str("run_id", summary.RunID).Msg("scheduled run aborted; retrying next tick")
			}
			log.Info().Time("next_run", time.Now().Add(scheduleEvery)).Msg("waiting for next run")

			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.Canceled) {
					return nil
				}
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
}
