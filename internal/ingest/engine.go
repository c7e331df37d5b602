// Package ingest is the dedup and upsert engine: it inserts drafts that are
// not already in the registry and counts the rest as skipped.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/lock"
	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/metrics"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/store"
)

// Outcome is what happened to one draft
type Outcome string

const (
	OutcomeAdded   Outcome = "added"
	OutcomeSkipped Outcome = "skipped" // Duplicate of a stored case
	OutcomeError   Outcome = "error"
)

// Engine ingests drafts into a store
type Engine struct {
	cases   store.Cases
	pinger  interface{ Ping(context.Context) error }
	locker  lock.Locker
	metrics *metrics.Metrics
	log     *logger.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLocker replaces the default in-process locker
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithMetrics records per-draft outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithPinger lets the engine tell a failed insert from an unreachable store
func WithPinger(p interface{ Ping(context.Context) error }) Option {
	return func(e *Engine) { e.pinger = p }
}

// NewEngine creates an engine over cases. When cases also implements Ping it
// is used as the pinger.
func NewEngine(cases store.Cases, opts ...Option) *Engine {
	e := &Engine{
		cases:  cases,
		locker: lock.NewKeyedMutex(),
		log:    logger.Named("ingest"),
	}
	if p, ok := cases.(interface{ Ping(context.Context) error }); ok {
		e.pinger = p
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// LockKey is the key serialized by the engine: the dedup triple when the
// draft has one, otherwise the source link.
func LockKey(d model.CaseDraft) string {
	if d.HasDedupKey() {
		return "key:" + d.MaskedName + "|" + d.CaseDate + "|" + d.Location
	}
	return "link:" + d.SourceLink
}

// IngestOne stores d unless it duplicates a stored case
func (e *Engine) IngestOne(ctx context.Context, d model.CaseDraft) (Outcome, error) {
	unlock, err := e.locker.Lock(ctx, LockKey(d))
	if err != nil {
		return OutcomeError, fmt.Errorf("lock: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			e.log.Warn().Err(err).Str("link", d.SourceLink).Msg("release lock")
		}
	}()

	if d.HasDedupKey() {
		existing, err := e.cases.FindByDedupKey(ctx, d.MaskedName, d.CaseDate, d.Location)
		if err != nil {
			return OutcomeError, errs.Storage("find by dedup key", err)
		}
		if existing != nil {
			return OutcomeSkipped, nil
		}
	}
	existing, err := e.cases.FindBySourceLink(ctx, d.SourceLink)
	if err != nil {
		return OutcomeError, errs.Storage("find by source link", err)
	}
	if existing != nil {
		return OutcomeSkipped, nil
	}

	if _, err := e.cases.InsertCase(ctx, d); err != nil {
		// another process won the race on the unique index
		if errors.Is(err, store.ErrDuplicate) {
			return OutcomeSkipped, nil
		}
		return OutcomeError, errs.Storage("insert case", err)
	}
	return OutcomeAdded, nil
}

// Ingest commits each draft independently. A failed draft counts as an error
// and the batch continues, unless the store no longer answers a ping: then the
// counts so far are returned with a StorageUnavailable error. Cancellation
// stops before the next draft and also returns the partial counts.
func (e *Engine) Ingest(ctx context.Context, source string, drafts []model.CaseDraft) (model.IngestCounts, error) {
	var counts model.IngestCounts
	log := logger.C(ctx, e.log)

	for _, d := range drafts {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		outcome, err := e.IngestOne(ctx, d)
		e.metrics.Draft(source, string(outcome))
		switch outcome {
		case OutcomeAdded:
			counts.Added++
		case OutcomeSkipped:
			counts.Skipped++
		default:
			counts.Errors++
			log.Warn().Err(err).Str("link", d.SourceLink).Msg("ingest draft failed")
			if ctx.Err() != nil {
				return counts, ctx.Err()
			}
			if e.pinger != nil {
				if perr := e.pinger.Ping(ctx); perr != nil {
					return counts, errs.Storage("ping", perr)
				}
			}
		}
	}
	log.Debug().Int("added", counts.Added).Int("skipped", counts.Skipped).Int("errors", counts.Errors).Msg("ingest complete")
	return counts, nil
}
