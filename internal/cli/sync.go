package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/pipeline"
	"github.com/ppiankov/kidregistry/internal/worker"
)

var (
	syncSources     []string
	syncSourcesFile string
	syncForce       bool
	syncConcurrency int
	metricsAddr     string
)

// ErrBatchFailed is returned when storage became unavailable mid-batch
var ErrBatchFailed = errors.New("sync aborted: storage unavailable")

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch every source once and ingest new cases",
	Long: `Sync runs the configured sources concurrently: each source is fetched,
normalized by its adapter and upserted into the registry. Records already
present (same masked name, date and location, or same source link) are
skipped. One failing source does not stop the others.

Source names: crc, ncwis, ece, county, kindyinfo, judicial, news, community.
"gov" expands to the five government sources and "all" to every source.

Example:
  kidregistry sync
  kidregistry sync --sources gov,judicial --concurrency 2
  kidregistry sync --sources judicial --force
  kidregistry sync --metrics-addr :9090`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	addSyncFlags(syncCmd)
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&syncSources, "sources", nil, "sources to sync (default: sync.sources from config)")
	cmd.Flags().StringVar(&syncSourcesFile, "sources-file", "", "read source names from a file, one per line")
	cmd.Flags().BoolVar(&syncForce, "force", false, "query the judicial API outside its service window")
	cmd.Flags().IntVar(&syncConcurrency, "concurrency", 0, "sources synced in parallel (default: sync.concurrency)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
}

func selectedSources() ([]string, error) {
	names := syncSources
	if syncSourcesFile != "" {
		fromFile, err := worker.ReadSourcesFromFile(syncSourcesFile)
		if err != nil {
			return nil, err
		}
		names = append(names, fromFile...)
	}
	if len(names) == 0 {
		names = cfg.Sync.Sources
	}
	return names, nil
}

func runSync(cmd *cobra.Command, args []string) error {
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

	var summary model.BatchSummary
	err = withMetricsServer(ctx, a, func(ctx context.Context) error {
		summary, err = runBatch(ctx, cmd.ErrOrStderr(), orch, names)
		return err
	})
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), summary)
	if summary.Failed {
		return ErrBatchFailed
	}
	return nil
}

// withMetricsServer runs fn while serving metrics when --metrics-addr is set.
// The server stops once fn returns.
func withMetricsServer(ctx context.Context, a *app, fn func(context.Context) error) error {
	addr := metricsAddr
	if addr == "" {
		addr = a.cfg.Metrics.Addr
	}
	if addr == "" {
		return fn(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServer := context.WithCancel(gctx)
	g.Go(func() error {
		return a.metrics.Serve(srvCtx, addr)
	})
	g.Go(func() error {
		defer stopServer()
		return fn(gctx)
	})
	return g.Wait()
}

func runBatch(ctx context.Context, progress io.Writer, orch *pipeline.Orchestrator, names []string) (model.BatchSummary, error) {
	orch.OnSourceDone(func(s model.SourceSummary) {
		if s.Err != "" {
			fmt.Fprintf(progress, "✗ %-10s %s\n", s.Source, s.Err)
			return
		}
		fmt.Fprintf(progress, "✓ %-10s +%d (skipped %d, errors %d)\n", s.Source, s.Counts.Added, s.Counts.Skipped, s.Counts.Errors+s.Malformed)
	})
	logger.Named("cli").Info().Strs("sources", names).Msg("starting sync")
	return orch.Run(ctx, names)
}

func printSummary(w io.Writer, s model.BatchSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSYNCED\tADDED\tSKIPPED\tERRORS\tDURATION\tSTATUS")
	for _, src := range s.Sources {
		status := "ok"
		if src.Err != "" {
			status = src.ErrKind
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			src.Source, src.Synced, src.Counts.Added, src.Counts.Skipped,
			src.Counts.Errors+src.Malformed, src.Duration.Round(time.Millisecond), status)
	}
	_ = tw.Flush()

	var state []string
	if s.Cancelled {
		state = append(state, "cancelled")
	}
	if s.Failed {
		state = append(state, "FAILED")
	}
	fmt.Fprintf(w, "\nrun %s: synced %d, added %d, skipped %d, errors %d in %s",
		s.RunID, s.Synced, s.Counts.Added, s.Counts.Skipped, s.Errors(), s.Duration.Round(time.Millisecond))
	if len(state) > 0 {
		fmt.Fprintf(w, " [%s]", strings.Join(state, ", "))
	}
	fmt.Fprintln(w)
}
