// Package store persists cases, reports and the sync and search logs
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ppiankov/kidregistry/internal/model"
)

// ErrDuplicate is returned by InsertCase when the draft collides with a
// stored case on the dedup key or the source link
var ErrDuplicate = errors.New("duplicate case")

// ErrNotFound is returned for missing reports
var ErrNotFound = errors.New("not found")

// CaseQuery is the structured search predicate. NameProbes are OR-connected
// substring probes against masked and raw names; Area is a substring of the
// location. Empty fields do not filter. Results are ordered by creation time,
// newest first; Limit 0 returns every match.
type CaseQuery struct {
	NameProbes []string
	Area       string
	Limit      int
	Offset     int
}

// Cases is the registry itself
type Cases interface {
	FindByDedupKey(ctx context.Context, maskedName, caseDate, location string) (*model.Case, error)
	FindBySourceLink(ctx context.Context, link string) (*model.Case, error)
	InsertCase(ctx context.Context, d model.CaseDraft) (*model.Case, error)
	QueryCases(ctx context.Context, q CaseQuery) ([]model.Case, int, error)
}

// SyncLogs records source runs
type SyncLogs interface {
	StartSync(ctx context.Context, runID, source string) (int64, error)
	FinishSync(ctx context.Context, id int64, status model.SyncStatus, count int, errMsg string) error
	LatestSyncs(ctx context.Context) ([]model.SyncLog, error)
}

// SearchLogs records searches
type SearchLogs interface {
	LogSearch(ctx context.Context, l model.SearchLog) error
}

// Reports stores community reports
type Reports interface {
	CreateReport(ctx context.Context, r model.Report) (*model.Report, error)
	GetReport(ctx context.Context, id int64) (*model.Report, error)
	UpdateReport(ctx context.Context, id int64, status model.ReportStatus, note string) (*model.Report, error)
	ListReports(ctx context.Context, status model.ReportStatus) ([]model.Report, error)
}

// Store is the full registry backend
type Store interface {
	Cases
	SyncLogs
	SearchLogs
	Reports
	Stats(ctx context.Context, topKeywords int) (model.RegistryStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open selects the backend named by cfg.Driver
func Open(ctx context.Context, cfg model.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		path := ""
		if cfg.SnapshotDir != "" {
			path = filepath.Join(cfg.SnapshotDir, "registry.json")
		}
		m, err := OpenMemory(path)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "postgres":
		p, err := OpenPostgres(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
