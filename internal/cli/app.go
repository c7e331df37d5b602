package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/kidregistry/internal/cache"
	"github.com/ppiankov/kidregistry/internal/lock"
	"github.com/ppiankov/kidregistry/internal/metrics"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/pipeline"
	"github.com/ppiankov/kidregistry/internal/report"
	"github.com/ppiankov/kidregistry/internal/score"
	"github.com/ppiankov/kidregistry/internal/search"
	"github.com/ppiankov/kidregistry/internal/store"
	"github.com/ppiankov/kidregistry/internal/validate"
)

// app holds the long-lived collaborators one command needs
type app struct {
	cfg     *model.Config
	store   store.Store
	metrics *metrics.Metrics
	closers []func() error
}

func openApp(ctx context.Context, c *model.Config) (*app, error) {
	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &app{
		cfg:     c,
		store:   st,
		metrics: metrics.Default(),
		closers: []func() error{st.Close},
	}, nil
}

// Close releases everything in reverse order of acquisition
func (a *app) Close() error {
	var errList []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

func (a *app) orchestrator(ctx context.Context, force bool) (*pipeline.Orchestrator, error) {
	locker, closeLock, err := lock.New(ctx, a.cfg.Lock)
	if err != nil {
		return nil, fmt.Errorf("open lock: %w", err)
	}
	a.closers = append(a.closers, closeLock)
	opts := pipeline.BuildOptions{
		Store:   a.store,
		Locker:  locker,
		Metrics: a.metrics,
		Force:   force,
	}
	// only a shared cache outlives this process
	if a.cfg.Cache.Enabled && a.cfg.Cache.RedisURL != "" {
		c, err := a.searchCache(ctx)
		if err != nil {
			return nil, err
		}
		opts.SearchCache = c
	}
	return pipeline.Build(a.cfg, opts)
}

func (a *app) resolver(ctx context.Context) (*search.Resolver, error) {
	opts := []search.Option{search.WithSearchLog(a.store), search.WithMetrics(a.metrics)}
	if a.cfg.Cache.Enabled && a.cfg.Cache.SearchTTL > 0 {
		c, err := a.searchCache(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, search.WithCache(c, a.cfg.Cache.SearchTTL))
	}
	return search.NewResolver(a.store, score.NewScorer(score.ThresholdsFromConfig(a.cfg.Match)), opts...), nil
}

// searchCache is shared through Redis when configured, otherwise per process
func (a *app) searchCache(ctx context.Context) (cache.Cache, error) {
	if a.cfg.Cache.RedisURL == "" {
		return cache.NewMemoryCache(a.cfg.Cache.SearchTTL, 10*time.Minute), nil
	}
	rdb, err := cache.DialRedis(ctx, a.cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("search cache: %w", err)
	}
	a.closers = append(a.closers, rdb.Close)
	return cache.NewRedisCache(rdb, a.cfg.Cache.SearchTTL), nil
}

func (a *app) reports() (*report.Service, error) {
	n, err := report.NewNotifier(a.cfg.Notify)
	if err != nil {
		return nil, err
	}
	return report.NewService(a.store, validate.New(nil), n, a.cfg.Notify.Policy, a.metrics), nil
}
