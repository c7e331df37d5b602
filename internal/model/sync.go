package model

import "time"

// SyncStatus is the lifecycle state of one source sync
type SyncStatus string

const (
	SyncRunning SyncStatus = "running"
	SyncSuccess SyncStatus = "success"
	SyncFailed  SyncStatus = "failed"
)

// SyncLog records one run of one source
type SyncLog struct {
	ID           int64      `json:"id"`
	RunID        string     `json:"run_id"`
	SourceName   string     `json:"source_name"`
	Status       SyncStatus `json:"status"`
	RecordCount  int        `json:"record_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// IngestCounts are the dedup/upsert engine counters
type IngestCounts struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Merge adds other into c
func (c *IngestCounts) Merge(other IngestCounts) {
	c.Added += other.Added
	c.Skipped += other.Skipped
	c.Errors += other.Errors
}

// SourceSummary is the outcome of one source within a batch
type SourceSummary struct {
	Source    string        `json:"source"`
	Synced    int           `json:"synced"` // drafts produced by the adapter
	Counts    IngestCounts  `json:"counts"`
	Malformed int           `json:"malformed"` // raw records rejected by the adapter
	Err       string        `json:"error,omitempty"`
	ErrKind   string        `json:"error_kind,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// BatchSummary aggregates a full ingestion run
type BatchSummary struct {
	RunID     string          `json:"run_id"`
	Sources   []SourceSummary `json:"sources"`
	Synced    int             `json:"synced"`
	Counts    IngestCounts    `json:"counts"`
	Cancelled bool            `json:"cancelled"`
	Failed    bool            `json:"failed"` // storage became unavailable and the batch was aborted
	Err       string          `json:"error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
}

// Errors returns the total error count: per-record ingest errors, malformed records and failed sources
func (b BatchSummary) Errors() int {
	n := b.Counts.Errors
	for _, s := range b.Sources {
		n += s.Malformed
		if s.Err != "" {
			n++
		}
	}
	return n
}
