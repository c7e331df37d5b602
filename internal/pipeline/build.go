package pipeline

import (
	"fmt"
	"time"

	"github.com/ppiankov/kidregistry/internal/cache"
	"github.com/ppiankov/kidregistry/internal/extract/adapters"
	"github.com/ppiankov/kidregistry/internal/ingest"
	"github.com/ppiankov/kidregistry/internal/judicial"
	"github.com/ppiankov/kidregistry/internal/llm"
	"github.com/ppiankov/kidregistry/internal/lock"
	"github.com/ppiankov/kidregistry/internal/mask"
	"github.com/ppiankov/kidregistry/internal/metrics"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/news"
	"github.com/ppiankov/kidregistry/internal/store"
	"github.com/ppiankov/kidregistry/internal/validate"
	"github.com/ppiankov/kidregistry/internal/worker"
)

// BuildOptions are the runtime pieces a configured orchestrator shares with the caller
type BuildOptions struct {
	Store       store.Store
	Locker      lock.Locker // nil means an in-process keyed mutex
	Metrics     *metrics.Metrics
	SearchCache cache.Cache // optional, invalidated after ingest adds cases
	Force       bool        // run judicial outside its service window
}

// Build assembles every source, adapter and the ingest engine from cfg
func Build(cfg *model.Config, opts BuildOptions) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("build orchestrator: no store")
	}

	var pageCache cache.Cache
	if cfg.Cache.Enabled && cfg.Cache.Dir != "" {
		pageCache = cache.NewPageCache(cfg.Cache.Dir, cfg.Cache.PageTTL)
	}
	fetcher, err := NewFetcher(FetcherOptions{
		Timeout:       cfg.HTTP.Timeout,
		UserAgent:     cfg.HTTP.UserAgent,
		MaxBytes:      cfg.HTTP.MaxBodyBytes,
		MaxRetries:    cfg.HTTP.MaxRetries,
		RespectRobots: cfg.HTTP.RespectRobots,
		HTTPProxy:     cfg.HTTP.HTTPProxy,
		HTTPSProxy:    cfg.HTTP.HTTPSProxy,
		Cache:         pageCache,
		CacheTTL:      cfg.Cache.PageTTL,
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("build llm provider: %w", err)
	}
	var extractor *llm.NameExtractor
	if provider != nil {
		extractor = llm.NewNameExtractor(provider, cfg.LLM.MinConfidence)
	}

	collector := judicial.NewCollector(
		judicial.NewClient(cfg.Judicial, cfg.HTTP.Timeout),
		judicial.NewWindow(cfg.Judicial),
		cfg.Judicial.MaxDocuments,
	)

	engineOpts := []ingest.Option{ingest.WithMetrics(opts.Metrics), ingest.WithPinger(opts.Store)}
	if opts.Locker != nil {
		engineOpts = append(engineOpts, ingest.WithLocker(opts.Locker))
	}
	engine := ingest.NewEngine(opts.Store, engineOpts...)

	return NewOrchestrator(
		adapters.Default(mask.NewMasker(nil)),
		engine,
		opts.Store,
		OrchestratorOptions{
			Concurrency:  cfg.Sync.Concurrency,
			BatchTimeout: cfg.Sync.BatchTimeout,
			Limiter:      worker.NewLimiter(time.Second, cfg.Sync.Pacing),
			Validator:    validate.New(nil),
			Metrics:      opts.Metrics,
			SearchCache:  opts.SearchCache,
		},
		&CRCSource{Pages: fetcher, MaxPages: cfg.Sync.MaxPages},
		NewNCWISSource(fetcher),
		NewECESource(fetcher),
		&CountySource{Pages: fetcher},
		&KindyInfoSource{Pages: fetcher},
		&JudicialSource{Collector: collector, Force: opts.Force},
		&NewsSource{Poller: news.NewPoller(fetcher, cfg.News, extractor)},
		&CommunitySource{Reports: opts.Store},
	), nil
}
