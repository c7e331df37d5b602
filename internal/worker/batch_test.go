package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kidregistry/internal/model"
)

type mockSyncer struct {
	mu    sync.Mutex
	calls []string
	delay time.Duration
	fail  map[string]string
}

func (m *mockSyncer) SyncSource(ctx context.Context, source string) model.SourceSummary {
	m.mu.Lock()
	m.calls = append(m.calls, source)
	m.mu.Unlock()
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return model.SourceSummary{Source: source, Err: ctx.Err().Error()}
		}
	}
	if msg, ok := m.fail[source]; ok {
		return model.SourceSummary{Source: source, Err: msg}
	}
	return model.SourceSummary{Source: source, Synced: 2, Counts: model.IngestCounts{Added: 2}}
}

func TestSyncProcessor_ProcessSources(t *testing.T) {
	syncer := &mockSyncer{fail: map[string]string{"news": "fetch failed"}}
	processor := NewSyncProcessor(syncer, 2)

	var done []string
	var mu sync.Mutex
	processor.OnSourceDone(func(s model.SourceSummary) {
		mu.Lock()
		done = append(done, s.Source)
		mu.Unlock()
	})

	sources := []string{"crc", "ncwis", "news", "ece", "county"}
	results := processor.ProcessSources(context.Background(), sources)

	require.Len(t, results, len(sources))
	for i, s := range results {
		assert.Equal(t, sources[i], s.Source, "results keep input order")
	}
	assert.Equal(t, "fetch failed", results[2].Err)
	assert.Equal(t, 2, results[0].Counts.Added)
	assert.Len(t, done, len(sources))
}

func TestSyncProcessor_Empty(t *testing.T) {
	results := NewSyncProcessor(&mockSyncer{}, 2).ProcessSources(context.Background(), nil)
	assert.Empty(t, results)
}

func TestSyncProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	syncer := &mockSyncer{}
	results := NewSyncProcessor(syncer, 1).ProcessSources(ctx, []string{"crc", "ncwis"})

	require.Len(t, results, 2)
	for _, s := range results {
		assert.Equal(t, "cancelled", s.ErrKind)
	}
	assert.Empty(t, syncer.calls)
}

func TestSyncProcessor_CancelMidBatchKeepsPartialCounts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	syncer := &mockSyncer{}
	processor := NewSyncProcessor(syncer, 1)
	processor.OnSourceDone(func(s model.SourceSummary) {
		if s.Source == "crc" {
			cancel()
		}
	})

	results := processor.ProcessSources(ctx, []string{"crc", "ncwis", "ece", "county", "news"})

	require.Len(t, results, 5)
	assert.Equal(t, 2, results[0].Counts.Added, "completed source keeps its counts")
	skippedCount := 0
	for _, s := range results {
		if s.ErrKind == "cancelled" {
			skippedCount++
		}
	}
	assert.Positive(t, skippedCount)
}

func TestSourceResult_GetError(t *testing.T) {
	ok := &SourceResult{Summary: model.SourceSummary{Source: "crc"}}
	assert.NoError(t, ok.GetError())

	bad := &SourceResult{Summary: model.SourceSummary{Source: "crc", Err: "boom"}}
	assert.EqualError(t, bad.GetError(), "crc: boom")
}

func TestReadSourcesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.txt")
	content := "crc\n# comment\nncwis\n   \nnews   \ncrc\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sources, err := ReadSourcesFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"crc", "ncwis", "news"}, sources)
}

func TestReadSourcesFromFile_NonExistent(t *testing.T) {
	_, err := ReadSourcesFromFile("non_existent_file.txt")
	assert.Error(t, err)
}
