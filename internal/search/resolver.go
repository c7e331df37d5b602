// Package search resolves name and area queries against the registry
package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/kidregistry/internal/cache"
	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/mask"
	"github.com/ppiankov/kidregistry/internal/metrics"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/score"
	"github.com/ppiankov/kidregistry/internal/store"
	"github.com/ppiankov/kidregistry/internal/taxonomy"
)

// Disclaimers are shown verbatim by callers
const (
	DisclaimerFound    = "本資料僅供參考，非絕對比對結果。如有疑慮，請進一步查證。"
	DisclaimerNotFound = "本資料庫查無異常紀錄（這不代表 100% 安全，請持續保持警覺）"
)

const (
	DefaultLimit = 15
	MaxLimit     = 100
)

// Resolver runs searches
type Resolver struct {
	cases    store.Cases
	logs     store.SearchLogs
	scorer   *score.Scorer
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithSearchLog records every search
func WithSearchLog(l store.SearchLogs) Option {
	return func(r *Resolver) { r.logs = l }
}

// WithCache caches responses for ttl or until the search generation of c
// is bumped after an ingest adds cases
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(r *Resolver) { r.cache, r.cacheTTL = c, ttl }
}

// WithMetrics counts searches
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a resolver scoring with scorer
func NewResolver(cases store.Cases, scorer *score.Scorer, opts ...Option) *Resolver {
	r := &Resolver{
		cases:  cases,
		scorer: scorer,
		log:    logger.Named("search"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Normalize trims the query, resolves the all-areas sentinel and clamps paging
func Normalize(q model.SearchQuery) model.SearchQuery {
	q.Name = strings.TrimSpace(q.Name)
	q.Area = taxonomy.CanonicalDivision(strings.TrimSpace(q.Area))
	if q.Area == model.AreaAll {
		q.Area = ""
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Search returns ranked matches. A query with neither name nor area lists
// the most recent cases.
func (r *Resolver) Search(ctx context.Context, query model.SearchQuery) (model.SearchResponse, error) {
	q := Normalize(query)

	var (
		resp model.SearchResponse
		err  error
		key  string
	)
	if r.cache != nil {
		gen := cache.Generation(r.cache, cache.SearchNamespace)
		key = cache.Key(cache.SearchNamespace, gen, q.Name, q.Area, strconv.Itoa(q.Limit), strconv.Itoa(q.Offset))
	}
	if r.cache == nil || !cache.GetJSON(r.cache, key, &resp) {
		if q.Name == "" {
			resp, err = r.recent(ctx, q)
		} else {
			resp, err = r.byName(ctx, q)
		}
		if err != nil {
			return model.SearchResponse{}, err
		}
		if r.cache != nil {
			if err := cache.SetJSON(r.cache, key, resp, r.cacheTTL); err != nil {
				r.log.Debug().Err(err).Msg("cache search response")
			}
		}
	}

	r.metrics.Search(resp.Found)
	r.record(ctx, q, resp)
	return resp, nil
}

func (r *Resolver) byName(ctx context.Context, q model.SearchQuery) (model.SearchResponse, error) {
	candidates, _, err := r.cases.QueryCases(ctx, store.CaseQuery{
		NameProbes: mask.Variants(q.Name),
		Area:       q.Area,
	})
	if err != nil {
		return model.SearchResponse{}, errs.Storage("query cases", err)
	}

	query := mask.Normalize(q.Name)
	matches := make([]model.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		s := r.scorer.Score(query, c.MaskedName, c.RawName)
		if !r.scorer.IsMatch(s) {
			continue
		}
		matches = append(matches, model.SearchResult{Case: c, Similarity: s, MatchType: r.scorer.Classify(s)})
	}
	Sort(matches)

	total := len(matches)
	end := min(q.Offset+q.Limit, total)
	page := []model.SearchResult{}
	if q.Offset < total {
		page = matches[q.Offset:end]
	}
	return respond(q.Name, page, q.Offset, total), nil
}

// recent serves the no-name fallback straight from the store's ordering.
// Nothing was compared, so similarity is 0.
func (r *Resolver) recent(ctx context.Context, q model.SearchQuery) (model.SearchResponse, error) {
	cases, total, err := r.cases.QueryCases(ctx, store.CaseQuery{Area: q.Area, Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return model.SearchResponse{}, errs.Storage("query cases", err)
	}
	page := make([]model.SearchResult, len(cases))
	for i, c := range cases {
		page[i] = model.SearchResult{Case: c, MatchType: model.MatchLow}
	}
	return respond("", page, q.Offset, total), nil
}

func respond(name string, page []model.SearchResult, offset, total int) model.SearchResponse {
	resp := model.SearchResponse{
		Found:        total > 0,
		SearchedName: name,
		Results:      page,
		Total:        total,
		HasMore:      offset+len(page) < total,
		Disclaimer:   DisclaimerNotFound,
	}
	if resp.Found {
		resp.Disclaimer = DisclaimerFound
	}
	return resp
}

// Sort orders by score, then newest first, then id so equal rows never swap
func Sort(results []model.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if !a.Case.CreatedAt.Equal(b.Case.CreatedAt) {
			return a.Case.CreatedAt.After(b.Case.CreatedAt)
		}
		return a.Case.ID > b.Case.ID
	})
}

func (r *Resolver) record(ctx context.Context, q model.SearchQuery, resp model.SearchResponse) {
	if r.logs == nil {
		return
	}
	err := r.logs.LogSearch(ctx, model.SearchLog{
		SearchedName: q.Name,
		SearchedArea: q.Area,
		FoundResults: resp.Found,
		ResultCount:  resp.Total,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("record search")
	}
}
