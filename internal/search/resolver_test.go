package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kidregistry/internal/cache"
	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/score"
	"github.com/ppiankov/kidregistry/internal/store"
)

func init() { logger.Nop() }

func caseDraft(name, location, link string) model.CaseDraft {
	return model.CaseDraft{
		MaskedName: name,
		Role:       model.RoleNanny,
		RiskTags:   model.RiskTags{model.RiskAbuse},
		Location:   location,
		CaseDate:   "2024-01-10",
		SourceType: model.SourceGovernmentNotice,
		SourceLink: link,
		Verified:   true,
	}
}

func seeded(t *testing.T, drafts ...model.CaseDraft) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	for _, d := range drafts {
		_, err := m.InsertCase(context.Background(), d)
		require.NoError(t, err)
	}
	return m
}

func newResolver(s *store.Memory, opts ...Option) *Resolver {
	return NewResolver(s, score.NewScorer(score.DefaultThresholds()), opts...)
}

func TestSearch_MaskedStructuralMatch(t *testing.T) {
	s := seeded(t, caseDraft("陳○華", "台中市", "gov:123"))
	resp, err := newResolver(s).Search(context.Background(), model.SearchQuery{Name: "陳小華"})
	require.NoError(t, err)

	require.True(t, resp.Found)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 95, resp.Results[0].Similarity)
	assert.Equal(t, model.MatchExact, resp.Results[0].MatchType)
	assert.Equal(t, "陳小華", resp.SearchedName)
	assert.Equal(t, DisclaimerFound, resp.Disclaimer)
}

func TestSearch_NoMatch(t *testing.T) {
	s := seeded(t,
		caseDraft("陳○華", "台中市", "gov:1"),
		caseDraft("王○明", "台北市", "gov:2"),
	)
	resp, err := newResolver(s).Search(context.Background(), model.SearchQuery{Name: "不存在的人名"})
	require.NoError(t, err)
	assert.False(t, resp.Found)
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, DisclaimerNotFound, resp.Disclaimer)
}

func TestSearch_BelowThresholdDropped(t *testing.T) {
	// surname probe hits both, only one clears 50
	s := seeded(t,
		caseDraft("王○明", "台北市", "gov:1"),
		caseDraft("王○○○○○", "台北市", "gov:2"),
	)
	resp, err := newResolver(s).Search(context.Background(), model.SearchQuery{Name: "王小明"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "王○明", resp.Results[0].Case.MaskedName)
	assert.Equal(t, 1, resp.Total)
}

func TestSearch_ConfigurableMinScore(t *testing.T) {
	s := seeded(t, caseDraft("王小華", "台北市", "gov:1"))
	strict := NewResolver(s, score.NewScorer(score.Thresholds{MinScore: 90, Exact: 95, High: 80, Medium: 60}))
	resp, err := strict.Search(context.Background(), model.SearchQuery{Name: "王小明"})
	require.NoError(t, err)
	assert.False(t, resp.Found, "67 is below a min score of 90")

	resp, err = newResolver(s).Search(context.Background(), model.SearchQuery{Name: "王小明"})
	require.NoError(t, err)
	require.True(t, resp.Found)
	assert.Equal(t, model.MatchMedium, resp.Results[0].MatchType)
}

func TestSearch_AreaFilter(t *testing.T) {
	s := seeded(t,
		caseDraft("陳○華", "台中市", "gov:1"),
		caseDraft("陳○華", "台北市", "gov:2"),
	)
	r := newResolver(s)

	resp, err := r.Search(context.Background(), model.SearchQuery{Name: "陳小華", Area: "臺中市"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "台中市", resp.Results[0].Case.Location)

	resp, err = r.Search(context.Background(), model.SearchQuery{Name: "陳小華", Area: model.AreaAll})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestSearch_RecentFallback(t *testing.T) {
	s := seeded(t,
		caseDraft("陳○華", "台中市", "gov:1"),
		caseDraft("王○明", "台北市", "gov:2"),
		caseDraft("林○玲", "台中市", "gov:3"),
	)
	r := newResolver(s)

	resp, err := r.Search(context.Background(), model.SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, "林○玲", resp.Results[0].Case.MaskedName, "newest first")
	assert.Equal(t, model.MatchLow, resp.Results[0].MatchType)

	resp, err = r.Search(context.Background(), model.SearchQuery{Area: "台中市"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
}

func TestSearch_Pagination(t *testing.T) {
	var drafts []model.CaseDraft
	for i := 0; i < 7; i++ {
		drafts = append(drafts, caseDraft("陳○華", fmt.Sprintf("台中市%d區", i), fmt.Sprintf("gov:%d", i)))
	}
	r := newResolver(seeded(t, drafts...))

	for _, tc := range []struct{ limit, offset, want int }{
		{3, 0, 3}, {3, 3, 3}, {3, 6, 1}, {3, 7, 0}, {10, 0, 7}, {5, 20, 0},
	} {
		resp, err := r.Search(context.Background(), model.SearchQuery{Name: "陳小華", Limit: tc.limit, Offset: tc.offset})
		require.NoError(t, err)
		assert.Len(t, resp.Results, tc.want, "limit=%d offset=%d", tc.limit, tc.offset)
		assert.Equal(t, 7, resp.Total)
		assert.Equal(t, tc.offset+len(resp.Results) < resp.Total, resp.HasMore, "limit=%d offset=%d", tc.limit, tc.offset)
	}
}

func TestSort_Deterministic(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var results []model.SearchResult
	for i := 0; i < 12; i++ {
		results = append(results, model.SearchResult{
			Case:       model.Case{ID: int64(i + 1), CreatedAt: base.Add(time.Duration(i%3) * time.Hour)},
			Similarity: []int{95, 80, 67}[i%3],
		})
	}
	want := append([]model.SearchResult(nil), results...)
	Sort(want)

	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 20; n++ {
		shuffled := append([]model.SearchResult(nil), results...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		Sort(shuffled)
		assert.Equal(t, want, shuffled)
	}
	assert.Equal(t, 95, want[0].Similarity)
	assert.Equal(t, 67, want[len(want)-1].Similarity)
}

func TestSearch_LogsAndCaches(t *testing.T) {
	s := seeded(t, caseDraft("陳○華", "台中市", "gov:1"))
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	r := newResolver(s, WithSearchLog(s), WithCache(c, time.Minute))

	_, err := r.Search(context.Background(), model.SearchQuery{Name: " 陳小華 "})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	// served from cache even though the store changed
	_, err = s.InsertCase(context.Background(), caseDraft("陳○華", "台北市", "gov:2"))
	require.NoError(t, err)
	resp, err := r.Search(context.Background(), model.SearchQuery{Name: "陳小華"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)

	st, err := s.Stats(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalSearches)
	assert.Equal(t, []model.KeywordCount{{Keyword: "陳小華", Count: 2}}, st.PopularKeywords)
}

func TestSearch_CacheInvalidatedByBump(t *testing.T) {
	s := seeded(t, caseDraft("陳○華", "台中市", "gov:1"))
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	r := newResolver(s, WithCache(c, time.Minute))

	resp, err := r.Search(context.Background(), model.SearchQuery{Name: "陳小華"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)

	_, err = s.InsertCase(context.Background(), caseDraft("陳○華", "台北市", "gov:2"))
	require.NoError(t, err)
	require.NoError(t, cache.Bump(c, cache.SearchNamespace))

	resp, err = r.Search(context.Background(), model.SearchQuery{Name: "陳小華"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total, "a new generation must not serve the old response")
}

type brokenCases struct{ store.Cases }

func (brokenCases) QueryCases(context.Context, store.CaseQuery) ([]model.Case, int, error) {
	return nil, 0, errors.New("connection refused")
}

func TestSearch_StorageError(t *testing.T) {
	r := NewResolver(brokenCases{}, score.NewScorer(score.DefaultThresholds()))
	_, err := r.Search(context.Background(), model.SearchQuery{Name: "陳小華"})
	assert.True(t, errs.Is(err, errs.KindStorageUnavailable))
}

func TestNormalize(t *testing.T) {
	q := Normalize(model.SearchQuery{Name: "  王小明 ", Area: model.AreaAll, Limit: 500, Offset: -3})
	assert.Equal(t, model.SearchQuery{Name: "王小明", Area: "", Limit: MaxLimit, Offset: 0}, q)
	assert.Equal(t, DefaultLimit, Normalize(model.SearchQuery{}).Limit)
}
