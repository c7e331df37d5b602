package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kidregistry/internal/model"
)

// openTestPostgres connects to KIDREGISTRY_TEST_DATABASE_URL and empties the tables
func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("KIDREGISTRY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("KIDREGISTRY_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := OpenPostgres(ctx, url, 4)
	require.NoError(t, err)
	_, err = p.pool.Exec(ctx, `TRUNCATE cases, reports, sync_logs, search_logs RESTART IDENTITY`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPostgres_InsertDedup(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()

	c, err := p.InsertCase(ctx, draft("陳○華", "2024-01-10", "台中市", "https://a/1"))
	require.NoError(t, err)
	assert.Equal(t, model.RiskTags{model.RiskAbuse, model.RiskNeglect}, c.RiskTags)

	_, err = p.InsertCase(ctx, draft("陳○華", "2024-01-10", "台中市", "https://a/2"))
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = p.InsertCase(ctx, draft("王○明", "2024-01-12", "台北市", "https://a/1"))
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = p.InsertCase(ctx, draft(model.NameUnknown, "2024-01-10", "台中市", "https://a/3"))
	require.NoError(t, err)
	_, err = p.InsertCase(ctx, draft(model.NameUnknown, "2024-01-10", "台中市", "https://a/4"))
	require.NoError(t, err, "partial index ignores unknown names")

	got, err := p.FindByDedupKey(ctx, "陳○華", "2024-01-10", "台中市")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)

	none, err := p.FindBySourceLink(ctx, "https://missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPostgres_QueryCases(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()
	for _, d := range []model.CaseDraft{
		draft("陳○華", "2024-01-10", "台中市", "https://a/1"),
		draft("陳○明", "2024-01-11", "台北市", "https://a/2"),
		draft("王○明", "2024-01-12", "台中市", "https://a/3"),
	} {
		_, err := p.InsertCase(ctx, d)
		require.NoError(t, err)
	}

	got, total, err := p.QueryCases(ctx, CaseQuery{NameProbes: []string{"陳"}, Area: "台中"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"陳○華"}, names(got))

	got, total, err = p.QueryCases(ctx, CaseQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, got, 1)

	got, total, err = p.QueryCases(ctx, CaseQuery{Limit: 1, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, got)
}

func TestPostgres_ReportsAndLogs(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()

	r, err := p.CreateReport(ctx, model.Report{SuspectName: "李大同", Description: "安親班老師多次體罰學生"})
	require.NoError(t, err)
	assert.Equal(t, model.ReportPending, r.Status)

	_, err = p.UpdateReport(ctx, r.ID, model.ReportApproved, "ok")
	require.NoError(t, err)
	approved, err := p.ListReports(ctx, model.ReportApproved)
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	id, err := p.StartSync(ctx, "run", "crc")
	require.NoError(t, err)
	require.NoError(t, p.FinishSync(ctx, id, model.SyncSuccess, 2, ""))
	latest, err := p.LatestSyncs(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 2, latest[0].RecordCount)

	require.NoError(t, p.LogSearch(ctx, model.SearchLog{SearchedName: "陳小華", FoundResults: true, ResultCount: 1}))
	st, err := p.Stats(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalSearches)
	assert.Equal(t, "陳小華", st.PopularKeywords[0].Keyword)
}
