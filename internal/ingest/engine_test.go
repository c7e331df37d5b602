package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/store"
)

func init() { logger.Nop() }

// flakyStore fails inserts for chosen links and can report itself down
type flakyStore struct {
	*store.Memory
	mu       sync.Mutex
	failLink map[string]bool
	pingErr  error
	inserts  int
}

func newFlaky() *flakyStore {
	return &flakyStore{Memory: store.NewMemory(), failLink: map[string]bool{}}
}

func (f *flakyStore) InsertCase(ctx context.Context, d model.CaseDraft) (*model.Case, error) {
	f.mu.Lock()
	f.inserts++
	fail := f.failLink[d.SourceLink]
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset")
	}
	return f.Memory.InsertCase(ctx, d)
}

func (f *flakyStore) Ping(context.Context) error { return f.pingErr }

func draft(i int) model.CaseDraft {
	return model.CaseDraft{
		MaskedName: fmt.Sprintf("陳○%d", i),
		Role:       model.RoleNanny,
		RiskTags:   model.RiskTags{model.RiskAbuse},
		Location:   "台中市",
		CaseDate:   "2024-01-10",
		SourceType: model.SourceGovernmentNotice,
		SourceLink: fmt.Sprintf("gov:%d", i),
		Verified:   true,
	}
}

func drafts(n int) []model.CaseDraft {
	out := make([]model.CaseDraft, n)
	for i := range out {
		out[i] = draft(i)
	}
	return out
}

func TestIngest_Idempotent(t *testing.T) {
	e := NewEngine(store.NewMemory())
	batch := drafts(5)

	first, err := e.Ingest(context.Background(), "crc", batch)
	require.NoError(t, err)
	assert.Equal(t, model.IngestCounts{Added: 5}, first)

	second, err := e.Ingest(context.Background(), "crc", batch)
	require.NoError(t, err)
	assert.Equal(t, model.IngestCounts{Skipped: 5}, second)
}

func TestIngest_SameDraftTwice(t *testing.T) {
	e := NewEngine(store.NewMemory())
	d := model.CaseDraft{
		MaskedName: "陳○華", CaseDate: "2024-01-10", Location: "台中市",
		SourceLink: "gov:123", Verified: true,
		Role: model.RoleOther, RiskTags: model.RiskTags{model.RiskGenericViolation}, SourceType: model.SourceGovernmentNotice,
	}
	_, err := e.Ingest(context.Background(), "crc", []model.CaseDraft{d})
	require.NoError(t, err)
	counts, err := e.Ingest(context.Background(), "crc", []model.CaseDraft{d})
	require.NoError(t, err)
	assert.Equal(t, model.IngestCounts{Skipped: 1}, counts)
}

func TestIngestOne_DedupKeys(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(store.NewMemory())
	d := draft(1)
	out, err := e.IngestOne(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdded, out)

	sameKey := d
	sameKey.SourceLink = "gov:other"
	out, _ = e.IngestOne(ctx, sameKey)
	assert.Equal(t, OutcomeSkipped, out, "dedup triple matches")

	sameLink := draft(2)
	sameLink.SourceLink = d.SourceLink
	out, _ = e.IngestOne(ctx, sameLink)
	assert.Equal(t, OutcomeSkipped, out, "source link matches")

	noKey := draft(3)
	noKey.MaskedName = model.NameUnknown
	out, _ = e.IngestOne(ctx, noKey)
	assert.Equal(t, OutcomeAdded, out)
	noKey.CaseDate = "2099-01-01"
	out, _ = e.IngestOne(ctx, noKey)
	assert.Equal(t, OutcomeSkipped, out, "falls back to link when the triple is incomplete")
}

func TestIngest_FailedDraftDoesNotBlockBatch(t *testing.T) {
	s := newFlaky()
	s.failLink["gov:1"] = true
	e := NewEngine(s)

	counts, err := e.Ingest(context.Background(), "crc", drafts(4))
	require.NoError(t, err)
	assert.Equal(t, model.IngestCounts{Added: 3, Errors: 1}, counts)
}

func TestIngest_StorageDownAborts(t *testing.T) {
	s := newFlaky()
	s.failLink["gov:1"] = true
	s.pingErr = errors.New("dial tcp: connection refused")
	e := NewEngine(s)

	counts, err := e.Ingest(context.Background(), "crc", drafts(4))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindStorageUnavailable))
	assert.Equal(t, model.IngestCounts{Added: 1, Errors: 1}, counts, "partial progress kept")
	assert.Equal(t, 2, s.inserts, "no inserts after the abort")
}

func TestIngest_CancelKeepsPartialCounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	counts, err := NewEngine(store.NewMemory()).Ingest(ctx, "crc", drafts(3))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.IngestCounts{}, counts)
}

func TestIngest_ConcurrentSameKey(t *testing.T) {
	s := store.NewMemory()
	e := NewEngine(s)
	d := draft(7)

	var wg sync.WaitGroup
	results := make([]Outcome, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = e.IngestOne(context.Background(), d)
		}(i)
	}
	wg.Wait()

	added := 0
	for _, o := range results {
		if o == OutcomeAdded {
			added++
		}
	}
	assert.Equal(t, 1, added)
	_, total, err := s.QueryCases(context.Background(), store.CaseQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "key:陳○1|2024-01-10|台中市", LockKey(draft(1)))
	d := draft(1)
	d.Location = model.LocationUnknown
	assert.Equal(t, "link:gov:1", LockKey(d))
}
