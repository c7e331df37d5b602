package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/kidregistry/internal/model"
)

// Memory is an in-process Store. With a snapshot path it loads the file on
// open and writes it back on Close, which lets separate CLI runs share data.
type Memory struct {
	mu       sync.RWMutex
	path     string
	now      func() time.Time
	data     snapshot
	byKey    map[string]int // dedup key -> index into data.Cases
	byLink   map[string]int
	reportIx map[int64]int
}

type snapshot struct {
	Cases      []model.Case      `json:"cases"`
	Reports    []model.Report    `json:"reports"`
	SyncLogs   []model.SyncLog   `json:"sync_logs"`
	SearchLogs []model.SearchLog `json:"search_logs"`
	NextID     int64             `json:"next_id"`
}

// NewMemory returns an empty, non-persistent store
func NewMemory() *Memory {
	m, _ := OpenMemory("")
	return m
}

// OpenMemory loads path when it exists; an empty path disables persistence
func OpenMemory(path string) (*Memory, error) {
	m := &Memory{path: path, now: time.Now}
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read snapshot: %w", err)
		default:
			if err := json.Unmarshal(raw, &m.data); err != nil {
				return nil, fmt.Errorf("decode snapshot: %w", err)
			}
		}
	}
	m.reindex()
	return m, nil
}

func dedupKey(maskedName, caseDate, location string) string {
	return maskedName + "\x1f" + caseDate + "\x1f" + location
}

func (m *Memory) reindex() {
	m.byKey = make(map[string]int, len(m.data.Cases))
	m.byLink = make(map[string]int, len(m.data.Cases))
	m.reportIx = make(map[int64]int, len(m.data.Reports))
	for i, c := range m.data.Cases {
		if c.HasDedupKey() {
			m.byKey[dedupKey(c.MaskedName, c.CaseDate, c.Location)] = i
		}
		m.byLink[c.SourceLink] = i
	}
	for i, r := range m.data.Reports {
		m.reportIx[r.ID] = i
	}
}

func (m *Memory) nextID() int64 {
	m.data.NextID++
	return m.data.NextID
}

func (m *Memory) FindByDedupKey(_ context.Context, maskedName, caseDate, location string) (*model.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.byKey[dedupKey(maskedName, caseDate, location)]; ok {
		c := m.data.Cases[i]
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) FindBySourceLink(_ context.Context, link string) (*model.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i, ok := m.byLink[link]; ok {
		c := m.data.Cases[i]
		return &c, nil
	}
	return nil, nil
}

// InsertCase enforces the same uniqueness as the Postgres indexes
func (m *Memory) InsertCase(_ context.Context, d model.CaseDraft) (*model.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := dedupKey(d.MaskedName, d.CaseDate, d.Location)
	if d.HasDedupKey() {
		if _, ok := m.byKey[key]; ok {
			return nil, ErrDuplicate
		}
	}
	if _, ok := m.byLink[d.SourceLink]; ok {
		return nil, ErrDuplicate
	}

	now := m.now().UTC()
	d.RiskTags = d.RiskTags.Normalize()
	c := model.Case{ID: m.nextID(), CaseDraft: d, CreatedAt: now, UpdatedAt: now}
	m.data.Cases = append(m.data.Cases, c)
	i := len(m.data.Cases) - 1
	if d.HasDedupKey() {
		m.byKey[key] = i
	}
	m.byLink[d.SourceLink] = i
	return &c, nil
}

func (m *Memory) QueryCases(_ context.Context, q CaseQuery) ([]model.Case, int, error) {
	m.mu.RLock()
	matched := make([]model.Case, 0)
	for _, c := range m.data.Cases {
		if matches(c, q) {
			matched = append(matched, c)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	return page(matched, q.Limit, q.Offset), total, nil
}

func matches(c model.Case, q CaseQuery) bool {
	if q.Area != "" && !strings.Contains(c.Location, q.Area) {
		return false
	}
	if len(q.NameProbes) == 0 {
		return true
	}
	for _, p := range q.NameProbes {
		if strings.Contains(c.MaskedName, p) || (c.RawName != "" && strings.Contains(c.RawName, p)) {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (m *Memory) StartSync(_ context.Context, runID, source string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := model.SyncLog{
		ID:         m.nextID(),
		RunID:      runID,
		SourceName: source,
		Status:     model.SyncRunning,
		StartedAt:  m.now().UTC(),
	}
	m.data.SyncLogs = append(m.data.SyncLogs, l)
	return l.ID, nil
}

func (m *Memory) FinishSync(_ context.Context, id int64, status model.SyncStatus, count int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.data.SyncLogs {
		if m.data.SyncLogs[i].ID == id {
			done := m.now().UTC()
			l := &m.data.SyncLogs[i]
			l.Status, l.RecordCount, l.ErrorMessage, l.CompletedAt = status, count, errMsg, &done
			return nil
		}
	}
	return ErrNotFound
}

// LatestSyncs returns the most recent log per source, sorted by source name
func (m *Memory) LatestSyncs(_ context.Context) ([]model.SyncLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := make(map[string]model.SyncLog)
	for _, l := range m.data.SyncLogs {
		if prev, ok := latest[l.SourceName]; !ok || l.ID > prev.ID {
			latest[l.SourceName] = l
		}
	}
	out := make([]model.SyncLog, 0, len(latest))
	for _, l := range latest {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceName < out[j].SourceName })
	return out, nil
}

func (m *Memory) LogSearch(_ context.Context, l model.SearchLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = m.nextID()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = m.now().UTC()
	}
	m.data.SearchLogs = append(m.data.SearchLogs, l)
	return nil
}

func (m *Memory) CreateReport(_ context.Context, r model.Report) (*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	r.ID = m.nextID()
	if r.Status == "" {
		r.Status = model.ReportPending
	}
	r.CreatedAt, r.UpdatedAt = now, now
	m.data.Reports = append(m.data.Reports, r)
	m.reportIx[r.ID] = len(m.data.Reports) - 1
	return &r, nil
}

func (m *Memory) GetReport(_ context.Context, id int64) (*model.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.reportIx[id]
	if !ok {
		return nil, ErrNotFound
	}
	r := m.data.Reports[i]
	return &r, nil
}

func (m *Memory) UpdateReport(_ context.Context, id int64, status model.ReportStatus, note string) (*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.reportIx[id]
	if !ok {
		return nil, ErrNotFound
	}
	r := &m.data.Reports[i]
	r.Status, r.ReviewNote, r.UpdatedAt = status, note, m.now().UTC()
	out := *r
	return &out, nil
}

// ListReports returns reports newest first; an empty status lists all
func (m *Memory) ListReports(_ context.Context, status model.ReportStatus) ([]model.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Report, 0)
	for i := len(m.data.Reports) - 1; i >= 0; i-- {
		if status == "" || m.data.Reports[i].Status == status {
			out = append(out, m.data.Reports[i])
		}
	}
	return out, nil
}

func (m *Memory) Stats(_ context.Context, topKeywords int) (model.RegistryStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := model.RegistryStats{
		TotalCases:    len(m.data.Cases),
		CasesBySource: make(map[model.SourceType]int),
		TotalSearches: len(m.data.SearchLogs),
	}
	for _, c := range m.data.Cases {
		st.CasesBySource[c.SourceType]++
		if c.Verified {
			st.VerifiedCases++
		}
		if c.UpdatedAt.After(st.LastUpdate) {
			st.LastUpdate = c.UpdatedAt
		}
	}
	counts := make(map[string]int)
	for _, l := range m.data.SearchLogs {
		if l.SearchedName != "" {
			counts[l.SearchedName]++
		}
	}
	st.PopularKeywords = topCounts(counts, topKeywords)
	return st, nil
}

// topCounts orders by count desc, then keyword for stable output
func topCounts(counts map[string]int, n int) []model.KeywordCount {
	out := make([]model.KeywordCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, model.KeywordCount{Keyword: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if n <= 0 {
		n = 10
	}
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (m *Memory) Ping(context.Context) error { return nil }

// Close writes the snapshot when persistence is enabled
func (m *Memory) Close() error {
	if m.path == "" {
		return nil
	}
	m.mu.RLock()
	raw, err := json.MarshalIndent(m.data, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".registry-*")
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), m.path)
}
