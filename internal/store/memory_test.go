package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kidregistry/internal/model"
)

func draft(name, date, location, link string) model.CaseDraft {
	return model.CaseDraft{
		MaskedName: name,
		Role:       model.RoleNanny,
		RiskTags:   model.RiskTags{model.RiskNeglect, model.RiskAbuse, model.RiskAbuse},
		Location:   location,
		CaseDate:   date,
		SourceType: model.SourceGovernmentNotice,
		SourceLink: link,
		Verified:   true,
	}
}

// fixedClock advances one second per call so ordering is deterministic
func fixedClock(m *Memory) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	m.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestMemory_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	c, err := m.InsertCase(ctx, draft("陳○華", "2024-01-10", "台中市", "https://a/1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, model.RiskTags{model.RiskAbuse, model.RiskNeglect}, c.RiskTags)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := m.FindByDedupKey(ctx, "陳○華", "2024-01-10", "台中市")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.ID, got.ID)

	got, err = m.FindBySourceLink(ctx, "https://a/1")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = m.FindBySourceLink(ctx, "https://a/2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemory_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.InsertCase(ctx, draft("陳○華", "2024-01-10", "台中市", "https://a/1"))
	require.NoError(t, err)

	_, err = m.InsertCase(ctx, draft("陳○華", "2024-01-10", "台中市", "https://a/other"))
	assert.ErrorIs(t, err, ErrDuplicate, "same dedup key")

	_, err = m.InsertCase(ctx, draft("王○明", "2024-02-01", "台北市", "https://a/1"))
	assert.ErrorIs(t, err, ErrDuplicate, "same link")

	// no dedup key: only the link decides
	_, err = m.InsertCase(ctx, draft(model.NameUnknown, "2024-01-10", "台中市", "https://a/3"))
	require.NoError(t, err)
	_, err = m.InsertCase(ctx, draft(model.NameUnknown, "2024-01-10", "台中市", "https://a/4"))
	require.NoError(t, err)
}

func TestMemory_ConcurrentInsertSameKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	var mu sync.Mutex
	added := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.InsertCase(ctx, draft("陳○華", "2024-01-10", "台中市", "https://a/1")); err == nil {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, added)
}

func TestMemory_QueryCases(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	fixedClock(m)

	for _, d := range []model.CaseDraft{
		draft("陳○華", "2024-01-10", "台中市", "https://a/1"),
		draft("陳○明", "2024-01-11", "台北市", "https://a/2"),
		draft("王○明", "2024-01-12", "台中市", "https://a/3"),
	} {
		_, err := m.InsertCase(ctx, d)
		require.NoError(t, err)
	}

	all, total, err := m.QueryCases(ctx, CaseQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"王○明", "陳○明", "陳○華"}, names(all), "newest first")

	got, total, err := m.QueryCases(ctx, CaseQuery{NameProbes: []string{"陳"}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"陳○明", "陳○華"}, names(got))

	got, _, err = m.QueryCases(ctx, CaseQuery{NameProbes: []string{"陳"}, Area: "台中"})
	require.NoError(t, err)
	assert.Equal(t, []string{"陳○華"}, names(got))

	got, total, err = m.QueryCases(ctx, CaseQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"陳○明"}, names(got))

	got, total, err = m.QueryCases(ctx, CaseQuery{Limit: 5, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, got)
}

func TestMemory_QueryMatchesRawName(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	d := draft("陳○華", "2024-01-10", "台中市", "https://a/1")
	d.RawName = "陳小華"
	_, err := m.InsertCase(ctx, d)
	require.NoError(t, err)

	got, _, err := m.QueryCases(ctx, CaseQuery{NameProbes: []string{"小華"}})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func names(cs []model.Case) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.MaskedName
	}
	return out
}

func TestMemory_SyncLogs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id1, err := m.StartSync(ctx, "run-1", "crc")
	require.NoError(t, err)
	require.NoError(t, m.FinishSync(ctx, id1, model.SyncSuccess, 3, ""))
	id2, err := m.StartSync(ctx, "run-2", "crc")
	require.NoError(t, err)
	require.NoError(t, m.FinishSync(ctx, id2, model.SyncFailed, 0, "boom"))
	_, err = m.StartSync(ctx, "run-2", "ece")
	require.NoError(t, err)

	latest, err := m.LatestSyncs(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "crc", latest[0].SourceName)
	assert.Equal(t, model.SyncFailed, latest[0].Status)
	assert.Equal(t, "boom", latest[0].ErrorMessage)
	assert.NotNil(t, latest[0].CompletedAt)
	assert.Equal(t, model.SyncRunning, latest[1].Status)

	assert.ErrorIs(t, m.FinishSync(ctx, 999, model.SyncSuccess, 0, ""), ErrNotFound)
}

func TestMemory_Reports(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	r, err := m.CreateReport(ctx, model.Report{SuspectName: "李大同", Description: "安親班老師多次體罰學生"})
	require.NoError(t, err)
	assert.Equal(t, model.ReportPending, r.Status)

	_, err = m.CreateReport(ctx, model.Report{SuspectName: "王小明", Description: "補習班老師言語羞辱"})
	require.NoError(t, err)

	updated, err := m.UpdateReport(ctx, r.ID, model.ReportApproved, "verified by phone")
	require.NoError(t, err)
	assert.Equal(t, model.ReportApproved, updated.Status)
	assert.Equal(t, "verified by phone", updated.ReviewNote)

	approved, err := m.ListReports(ctx, model.ReportApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "李大同", approved[0].SuspectName)

	all, err := m.ListReports(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "王小明", all[0].SuspectName, "newest first")

	_, err = m.GetReport(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.UpdateReport(ctx, 404, model.ReportRejected, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_Stats(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, _ = m.InsertCase(ctx, draft("陳○華", "2024-01-10", "台中市", "https://a/1"))
	d := draft("王○○", "2024-01-10", "台北市", "https://n/1")
	d.SourceType, d.Verified = model.SourceMediaReport, false
	_, _ = m.InsertCase(ctx, d)

	for _, name := range []string{"陳小華", "王大明", "陳小華", ""} {
		require.NoError(t, m.LogSearch(ctx, model.SearchLog{SearchedName: name}))
	}

	st, err := m.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalCases)
	assert.Equal(t, 1, st.VerifiedCases)
	assert.Equal(t, 1, st.CasesBySource[model.SourceMediaReport])
	assert.Equal(t, 4, st.TotalSearches)
	assert.Equal(t, []model.KeywordCount{{Keyword: "陳小華", Count: 2}}, st.PopularKeywords)
	assert.False(t, st.LastUpdate.IsZero())
}

func TestMemory_Snapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "registry.json")

	m, err := OpenMemory(path)
	require.NoError(t, err)
	_, err = m.InsertCase(ctx, draft("陳○華", "2024-01-10", "台中市", "https://a/1"))
	require.NoError(t, err)
	_, err = m.CreateReport(ctx, model.Report{SuspectName: "李大同", Description: "安親班老師多次體罰學生"})
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, err := OpenMemory(path)
	require.NoError(t, err)
	got, err := reopened.FindByDedupKey(ctx, "陳○華", "2024-01-10", "台中市")
	require.NoError(t, err)
	require.NotNil(t, got)

	_, err = reopened.InsertCase(ctx, draft("陳○華", "2024-01-10", "台中市", "https://a/9"))
	assert.ErrorIs(t, err, ErrDuplicate, "indexes rebuilt on load")

	c, err := reopened.InsertCase(ctx, draft("王○明", "2024-01-10", "台中市", "https://a/2"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.ID, "ids continue after the snapshot")
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), model.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), model.StoreConfig{Driver: "sqlite"})
	assert.Error(t, err)

	_, err = Open(context.Background(), model.StoreConfig{Driver: "postgres"})
	assert.Error(t, err)
}
