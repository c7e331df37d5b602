package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/model"
)

// Syncer runs the full fetch, normalize and ingest cycle of one source
type Syncer interface {
	SyncSource(ctx context.Context, source string) model.SourceSummary
}

// SourceJob syncs one source
type SourceJob struct {
	Source string
	Syncer Syncer
}

// Execute runs the sync unless the batch was already cancelled
func (j *SourceJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &SourceResult{Summary: skipped(j.Source, err)}
	}
	return &SourceResult{Summary: j.Syncer.SyncSource(ctx, j.Source)}
}

// SourceResult wraps a summary for the pool
type SourceResult struct {
	Summary model.SourceSummary
}

// GetError returns a non-nil error when the source failed
func (r *SourceResult) GetError() error {
	if r.Summary.Err == "" {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Summary.Source, r.Summary.Err)
}

func skipped(source string, err error) model.SourceSummary {
	return model.SourceSummary{Source: source, Err: "not started: " + err.Error(), ErrKind: "cancelled"}
}

// SyncProcessor runs several sources with bounded concurrency
type SyncProcessor struct {
	syncer      Syncer
	concurrency int
	onDone      func(model.SourceSummary)
}

// NewSyncProcessor creates a processor
func NewSyncProcessor(syncer Syncer, concurrency int) *SyncProcessor {
	return &SyncProcessor{
		syncer:      syncer,
		concurrency: concurrency,
	}
}

// OnSourceDone registers a callback invoked as each source finishes
func (b *SyncProcessor) OnSourceDone(fn func(model.SourceSummary)) {
	b.onDone = fn
}

// ProcessSources syncs sources and returns one summary per source in input
// order. Sources never started because ctx was cancelled are reported as
// skipped rather than dropped.
func (b *SyncProcessor) ProcessSources(ctx context.Context, sources []string) []model.SourceSummary {
	if len(sources) == 0 {
		return []model.SourceSummary{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		defer pool.Close()
		for _, source := range sources {
			if !pool.Submit(&SourceJob{Source: source, Syncer: b.syncer}) {
				return
			}
		}
	}()

	byName := make(map[string]model.SourceSummary, len(sources))
	for r := range pool.Results() {
		s := r.(*SourceResult).Summary
		byName[s.Source] = s
		if b.onDone != nil {
			b.onDone(s)
		}
	}

	out := make([]model.SourceSummary, len(sources))
	for i, source := range sources {
		if s, ok := byName[source]; ok {
			out[i] = s
			continue
		}
		cause := ctx.Err()
		if cause == nil {
			cause = errs.Unavailable(source, fmt.Errorf("no result"))
		}
		out[i] = skipped(source, cause)
	}
	return out
}

// ReadSourcesFromFile reads source names from a file, one per line
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}
