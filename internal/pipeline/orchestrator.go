package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/kidregistry/internal/cache"
	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/extract/adapters"
	"github.com/ppiankov/kidregistry/internal/ingest"
	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/metrics"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/store"
	"github.com/ppiankov/kidregistry/internal/validate"
	"github.com/ppiankov/kidregistry/internal/worker"
)

// GovSources are the government sources the "gov" alias expands to
var GovSources = []string{"crc", "ncwis", "ece", "county", "kindyinfo"}

// ExpandSources resolves aliases ("all", "gov"), trims and deduplicates,
// keeping first-seen order
func ExpandSources(names []string, all []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		switch n {
		case "all":
			for _, a := range all {
				add(a)
			}
		case "gov":
			for _, g := range GovSources {
				add(g)
			}
		default:
			add(n)
		}
	}
	return out
}

// OrchestratorOptions configures an Orchestrator
type OrchestratorOptions struct {
	Concurrency  int
	BatchTimeout time.Duration
	Limiter      *worker.Limiter
	Validator    *validate.Validator
	Metrics      *metrics.Metrics
	SearchCache  cache.Cache // bumped whenever a source adds cases
}

// Orchestrator runs sources concurrently through their adapters into the ingest engine
type Orchestrator struct {
	sources  map[string]Source
	adapters *adapters.Registry
	engine   *ingest.Engine
	logs     store.SyncLogs
	opts     OrchestratorOptions
	onDone   func(model.SourceSummary)
	log      *logger.Logger
}

// NewOrchestrator wires sources to adapters of the same name
func NewOrchestrator(reg *adapters.Registry, engine *ingest.Engine, logs store.SyncLogs, opts OrchestratorOptions, sources ...Source) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Limiter == nil {
		opts.Limiter = worker.NewLimiter(0, nil)
	}
	if opts.Validator == nil {
		opts.Validator = validate.New(nil)
	}
	o := &Orchestrator{
		sources:  make(map[string]Source, len(sources)),
		adapters: reg,
		engine:   engine,
		logs:     logs,
		opts:     opts,
		log:      logger.Named("orchestrator"),
	}
	for _, s := range sources {
		o.sources[s.Name()] = s
	}
	return o
}

// Sources returns the names that have both a source and an adapter, sorted
func (o *Orchestrator) Sources() []string {
	var out []string
	for name := range o.sources {
		if _, ok := o.adapters.Get(name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// OnSourceDone registers a progress callback
func (o *Orchestrator) OnSourceDone(fn func(model.SourceSummary)) {
	o.onDone = fn
}

// Run syncs the named sources. Cancelling ctx stops before the next source
// and the summary keeps the counts gathered so far. A StorageUnavailable
// error aborts the remaining sources and marks the batch failed. The
// returned error is non-nil only for unknown source names.
func (o *Orchestrator) Run(ctx context.Context, names []string) (model.BatchSummary, error) {
	names = ExpandSources(names, o.Sources())
	for _, n := range names {
		if _, ok := o.sources[n]; !ok {
			return model.BatchSummary{}, fmt.Errorf("unknown source %q (available: %s)", n, strings.Join(o.Sources(), ", "))
		}
		if _, ok := o.adapters.Get(n); !ok {
			return model.BatchSummary{}, fmt.Errorf("no adapter for source %q", n)
		}
	}

	r := &run{o: o, id: uuid.NewString()}
	summary := model.BatchSummary{RunID: r.id, StartedAt: time.Now().UTC()}

	ctx = logger.WithRun(ctx, r.id)
	if o.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.BatchTimeout)
		defer cancel()
	}
	ctx, abort := context.WithCancelCause(ctx)
	defer abort(nil)
	r.abort = abort

	log := logger.C(ctx, o.log)
	log.Info().Strs("sources", names).Int("concurrency", o.opts.Concurrency).Msg("sync started")

	proc := worker.NewSyncProcessor(r, o.opts.Concurrency)
	proc.OnSourceDone(o.onDone)
	summary.Sources = proc.ProcessSources(ctx, names)

	for _, s := range summary.Sources {
		summary.Synced += s.Synced
		summary.Counts.Merge(s.Counts)
	}
	summary.Duration = time.Since(summary.StartedAt)

	cause := context.Cause(ctx)
	switch {
	case errs.Is(cause, errs.KindStorageUnavailable):
		summary.Failed = true
		summary.Err = cause.Error()
		log.Error().Err(cause).Msg("sync aborted: storage unavailable")
	case cause != nil:
		summary.Cancelled = true
		summary.Err = cause.Error()
		log.Warn().Err(cause).Msg("sync cancelled")
	}

	log.Info().
		Int("synced", summary.Synced).
		Int("added", summary.Counts.Added).
		Int("skipped", summary.Counts.Skipped).
		Int("errors", summary.Errors()).
		Dur("duration", summary.Duration).
		Msg("sync finished")
	return summary, nil
}

const finishTimeout = 5 * time.Second

// run is one batch; it implements worker.Syncer
type run struct {
	o     *Orchestrator
	id    string
	abort context.CancelCauseFunc
}

func (r *run) SyncSource(ctx context.Context, name string) model.SourceSummary {
	o := r.o
	start := time.Now()
	ctx = logger.WithSource(ctx, name)
	log := logger.C(ctx, o.log)
	sum := model.SourceSummary{Source: name}

	logID, err := o.logs.StartSync(ctx, r.id, name)
	if err != nil {
		return r.fail(ctx, sum, start, 0, errs.Storage("start sync log", err))
	}

	src := o.sources[name]
	adapter, _ := o.adapters.Get(name)

	recs, failed, err := src.Fetch(ctx, o.opts.Limiter.For(name))
	if err != nil {
		return r.fail(ctx, sum, start, logID, err)
	}

	drafts, failures := adapters.NormalizeAll(adapter, recs)
	failures = append(failed, failures...)
	valid := drafts[:0]
	for _, d := range drafts {
		if err := o.opts.Validator.Draft(d); err != nil {
			failures = append(failures, errs.Malformed(name, err))
			continue
		}
		valid = append(valid, d)
	}
	for _, f := range failures {
		log.Warn().Err(f).Msg("record skipped")
		o.opts.Metrics.SourceError(name, string(errs.KindOf(f)))
	}
	sum.Synced = len(valid)
	sum.Malformed = len(failures)

	counts, err := o.engine.Ingest(ctx, name, valid)
	sum.Counts = counts
	if err != nil {
		return r.fail(ctx, sum, start, logID, err)
	}

	sum.Duration = time.Since(start)
	r.finish(ctx, logID, model.SyncSuccess, counts.Added, "")
	o.invalidateSearch(ctx, counts.Added)
	o.opts.Metrics.ObserveSource(name, start)
	log.Info().
		Int("synced", sum.Synced).
		Int("added", counts.Added).
		Int("skipped", counts.Skipped).
		Int("errors", counts.Errors+sum.Malformed).
		Msg("source synced")
	return sum
}

// fail records a source-level error. Counts already in sum are kept; a fetch
// failure leaves them at zero.
func (r *run) fail(ctx context.Context, sum model.SourceSummary, start time.Time, logID int64, err error) model.SourceSummary {
	o := r.o
	// a request timing out is not the batch being cancelled; only the
	// batch context decides that
	kind := string(errs.KindOf(err))
	switch {
	case kind == string(errs.KindStorageUnavailable):
	case ctx.Err() != nil:
		kind = "cancelled"
	case kind == "" && errors.Is(err, context.DeadlineExceeded):
		kind = string(errs.KindFetchTimeout)
	}
	sum.Err = err.Error()
	sum.ErrKind = kind
	sum.Duration = time.Since(start)

	if kind == string(errs.KindStorageUnavailable) {
		r.abort(err)
	}
	if logID != 0 {
		r.finish(ctx, logID, model.SyncFailed, sum.Counts.Added, sum.Err)
	}
	o.invalidateSearch(ctx, sum.Counts.Added)
	o.opts.Metrics.SourceError(sum.Source, sum.ErrKind)
	o.opts.Metrics.ObserveSource(sum.Source, start)
	logger.C(ctx, o.log).Error().Err(err).Str("kind", sum.ErrKind).Msg("source failed")
	return sum
}

// invalidateSearch starts a new search cache generation once cases were added
func (o *Orchestrator) invalidateSearch(ctx context.Context, added int) {
	if o.opts.SearchCache == nil || added == 0 {
		return
	}
	if err := cache.Bump(o.opts.SearchCache, cache.SearchNamespace); err != nil {
		logger.C(ctx, o.log).Warn().Err(err).Msg("invalidate search cache")
	}
}

func (r *run) finish(ctx context.Context, logID int64, status model.SyncStatus, count int, msg string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := r.o.logs.FinishSync(ctx, logID, status, count, msg); err != nil {
		logger.C(ctx, r.o.log).Warn().Err(err).Msg("finish sync log")
	}
}
