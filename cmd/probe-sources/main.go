// Probe fetches every source once into a throwaway in-memory registry and
// prints what each adapter produced. Nothing is persisted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/metrics"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/pipeline"
	"github.com/ppiankov/kidregistry/internal/store"
)

func main() {
	sources := flag.String("sources", "all", "comma-separated source names")
	force := flag.Bool("force", false, "query the judicial API outside its service window")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init(logger.FromEnv())

	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Judicial.User = os.Getenv("KIDREGISTRY_JUDICIAL_USER")
	cfg.Judicial.Password = os.Getenv("KIDREGISTRY_JUDICIAL_PASSWORD")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	mem := store.NewMemory()
	orch, err := pipeline.Build(cfg, pipeline.BuildOptions{Store: mem, Metrics: metrics.Default(), Force: *force})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Source Probe ===")
	fmt.Println()
	summary, err := orch.Run(ctx, strings.Split(*sources, ","))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, s := range summary.Sources {
		fmt.Printf("%s\n", s.Source)
		fmt.Println(strings.Repeat("-", 40))
		if s.Err != "" {
			fmt.Printf("  ✗ %s (%s)\n\n", s.Err, s.ErrKind)
			continue
		}
		fmt.Printf("  drafts:    %d\n", s.Synced)
		fmt.Printf("  malformed: %d\n", s.Malformed)
		fmt.Printf("  distinct:  %d\n", s.Counts.Added)
		fmt.Printf("  took:      %s\n\n", s.Duration.Round(time.Millisecond))
	}

	recent, total, err := mem.QueryCases(ctx, store.CaseQuery{Limit: 5})
	if err == nil && total > 0 {
		fmt.Printf("Newest of %d cases:\n", total)
		for _, c := range recent {
			fmt.Printf("  %s | %s | %s | %s | %s\n", c.MaskedName, c.Role, c.Location, c.CaseDate, c.SourceLink)
		}
	}
}
