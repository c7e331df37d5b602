package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/pipeline"
)

var statsTop int

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show registry totals and popular searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		st, err := a.store.Stats(ctx, statsTop)
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), st)
		return nil
	},
}

func printStats(w io.Writer, st model.RegistryStats) {
	fmt.Fprintf(w, "Cases:      %d (%d verified)\n", st.TotalCases, st.VerifiedCases)
	for _, src := range sortedKeys(st.CasesBySource) {
		fmt.Fprintf(w, "  %-18s %d\n", src, st.CasesBySource[src])
	}
	last := "never"
	if !st.LastUpdate.IsZero() {
		last = st.LastUpdate.Local().Format(time.DateTime)
	}
	fmt.Fprintf(w, "Updated:    %s\n", last)
	fmt.Fprintf(w, "Searches:   %d\n", st.TotalSearches)
	if len(st.PopularKeywords) > 0 {
		fmt.Fprintln(w, "Top searches:")
		for i, k := range st.PopularKeywords {
			fmt.Fprintf(w, "  %2d. %s (%d)\n", i+1, k.Keyword, k.Count)
		}
	}
}

// sourcesCmd lists sources and their last run
var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List sources and the outcome of their last sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		orch, err := a.orchestrator(ctx, false)
		if err != nil {
			return err
		}
		logs, err := a.store.LatestSyncs(ctx)
		if err != nil {
			return err
		}
		printSources(cmd.OutOrStdout(), orch.Sources(), logs)
		return nil
	},
}

func printSources(w io.Writer, names []string, logs []model.SyncLog) {
	last := make(map[string]model.SyncLog, len(logs))
	for _, l := range logs {
		last[l.SourceName] = l
	}
	gov := make(map[string]bool, len(pipeline.GovSources))
	for _, g := range pipeline.GovSources {
		gov[g] = true
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tGROUP\tLAST RUN\tSTATUS\tRECORDS\tERROR")
	for _, n := range names {
		group := ""
		if gov[n] {
			group = "gov"
		}
		l, ok := last[n]
		if !ok {
			fmt.Fprintf(tw, "%s\t%s\tnever\t-\t-\t\n", n, group)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			n, group, l.StartedAt.Local().Format(time.DateTime), l.Status, l.RecordCount, l.ErrorMessage)
	}
	_ = tw.Flush()
}

func init() {
	rootCmd.AddCommand(statsCmd, sourcesCmd)
	statsCmd.Flags().IntVar(&statsTop, "top", 10, "popular searches to show")
}
