package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppiankov/kidregistry/internal/model"
)

//go:embed schema.sql
var schema string

var newPool = pgxpool.NewWithConfig

// Postgres is the production Store backed by a pgx pool
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and applies the schema
func OpenPostgres(ctx context.Context, url string, maxConns int32) (*Postgres, error) {
	if url == "" {
		return nil, errors.New("postgres: database url is required")
	}
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

const caseColumns = `id, raw_name, masked_name, role, risk_tags, location, case_date, description,
	source_type, source_name, source_link, verified, external_id, created_at, updated_at`

func scanCase(row pgx.Row, extra ...any) (*model.Case, error) {
	var (
		c    model.Case
		tags []string
	)
	dest := []any{
		&c.ID, &c.RawName, &c.MaskedName, &c.Role, &tags, &c.Location, &c.CaseDate, &c.Description,
		&c.SourceType, &c.SourceName, &c.SourceLink, &c.Verified, &c.ExternalID, &c.CreatedAt, &c.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.RiskTags = make(model.RiskTags, len(tags))
	for i, t := range tags {
		c.RiskTags[i] = model.RiskTag(t)
	}
	return &c, nil
}

func (p *Postgres) findOne(ctx context.Context, where string, args ...any) (*model.Case, error) {
	c, err := scanCase(p.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE `+where+` LIMIT 1`, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (p *Postgres) FindByDedupKey(ctx context.Context, maskedName, caseDate, location string) (*model.Case, error) {
	return p.findOne(ctx, `masked_name = $1 AND case_date = $2 AND location = $3`, maskedName, caseDate, location)
}

func (p *Postgres) FindBySourceLink(ctx context.Context, link string) (*model.Case, error) {
	return p.findOne(ctx, `source_link = $1`, link)
}

// InsertCase relies on the unique indexes; a conflicting row yields ErrDuplicate
func (p *Postgres) InsertCase(ctx context.Context, d model.CaseDraft) (*model.Case, error) {
	tags := d.RiskTags.Normalize()
	raw := make([]string, len(tags))
	for i, t := range tags {
		raw[i] = string(t)
	}
	c, err := scanCase(p.pool.QueryRow(ctx, `
		INSERT INTO cases (raw_name, masked_name, role, risk_tags, location, case_date, description,
			source_type, source_name, source_link, verified, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT DO NOTHING
		RETURNING `+caseColumns,
		d.RawName, d.MaskedName, string(d.Role), raw, d.Location, d.CaseDate, d.Description,
		string(d.SourceType), d.SourceName, d.SourceLink, d.Verified, d.ExternalID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert case: %w", err)
	}
	return c, nil
}

func (p *Postgres) QueryCases(ctx context.Context, q CaseQuery) ([]model.Case, int, error) {
	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}
	probes := q.NameProbes
	if probes == nil {
		probes = []string{}
	}
	rows, err := p.pool.Query(ctx, `
		SELECT `+caseColumns+`, count(*) OVER ()
		FROM cases
		WHERE ($1 = '' OR strpos(location, $1) > 0)
		  AND (cardinality($2::text[]) = 0 OR EXISTS (
		        SELECT 1 FROM unnest($2::text[]) AS probe
		        WHERE strpos(masked_name, probe) > 0 OR (raw_name <> '' AND strpos(raw_name, probe) > 0)))
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		q.Area, probes, limit, max(q.Offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	out := make([]model.Case, 0)
	total := 0
	for rows.Next() {
		c, err := scanCase(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("query cases: %w", err)
	}
	if len(out) == 0 && q.Offset > 0 {
		// the window function yields nothing past the last page
		if err := p.pool.QueryRow(ctx, `
			SELECT count(*) FROM cases
			WHERE ($1 = '' OR strpos(location, $1) > 0)
			  AND (cardinality($2::text[]) = 0 OR EXISTS (
			        SELECT 1 FROM unnest($2::text[]) AS probe
			        WHERE strpos(masked_name, probe) > 0 OR (raw_name <> '' AND strpos(raw_name, probe) > 0)))`,
			q.Area, probes).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count cases: %w", err)
		}
	}
	return out, total, nil
}

func (p *Postgres) StartSync(ctx context.Context, runID, source string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO sync_logs (run_id, source_name, status) VALUES ($1, $2, $3) RETURNING id`,
		runID, source, string(model.SyncRunning)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("start sync: %w", err)
	}
	return id, nil
}

func (p *Postgres) FinishSync(ctx context.Context, id int64, status model.SyncStatus, count int, errMsg string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE sync_logs SET status = $2, record_count = $3, error_message = $4, completed_at = now() WHERE id = $1`,
		id, string(status), count, errMsg)
	if err != nil {
		return fmt.Errorf("finish sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) LatestSyncs(ctx context.Context) ([]model.SyncLog, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT ON (source_name) id, run_id, source_name, status, record_count, error_message, started_at, completed_at
		FROM sync_logs
		ORDER BY source_name, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest syncs: %w", err)
	}
	defer rows.Close()

	out := make([]model.SyncLog, 0)
	for rows.Next() {
		var (
			l      model.SyncLog
			status string
		)
		if err := rows.Scan(&l.ID, &l.RunID, &l.SourceName, &status, &l.RecordCount, &l.ErrorMessage, &l.StartedAt, &l.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		l.Status = model.SyncStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (p *Postgres) LogSearch(ctx context.Context, l model.SearchLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO search_logs (searched_name, searched_area, found_results, result_count, created_at) VALUES ($1, $2, $3, $4, $5)`,
		l.SearchedName, l.SearchedArea, l.FoundResults, l.ResultCount, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("log search: %w", err)
	}
	return nil
}

const reportColumns = `id, suspect_name, location, description, attachments, status, review_note, reporter_ip, created_at, updated_at`

func scanReport(row pgx.Row) (*model.Report, error) {
	var (
		r      model.Report
		status string
	)
	if err := row.Scan(&r.ID, &r.SuspectName, &r.Location, &r.Description, &r.Attachments, &status,
		&r.ReviewNote, &r.ReporterIP, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.ReportStatus(status)
	return &r, nil
}

func (p *Postgres) CreateReport(ctx context.Context, r model.Report) (*model.Report, error) {
	if r.Status == "" {
		r.Status = model.ReportPending
	}
	attachments := r.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	out, err := scanReport(p.pool.QueryRow(ctx, `
		INSERT INTO reports (suspect_name, location, description, attachments, status, reporter_ip)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+reportColumns,
		r.SuspectName, r.Location, r.Description, attachments, string(r.Status), r.ReporterIP))
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return out, nil
}

func (p *Postgres) GetReport(ctx context.Context, id int64) (*model.Report, error) {
	r, err := scanReport(p.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

func (p *Postgres) UpdateReport(ctx context.Context, id int64, status model.ReportStatus, note string) (*model.Report, error) {
	r, err := scanReport(p.pool.QueryRow(ctx, `
		UPDATE reports SET status = $2, review_note = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+reportColumns, id, string(status), note))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}
	return r, nil
}

func (p *Postgres) ListReports(ctx context.Context, status model.ReportStatus) ([]model.Report, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE ($1 = '' OR status = $1)
		ORDER BY id DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]model.Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (p *Postgres) Stats(ctx context.Context, topKeywords int) (model.RegistryStats, error) {
	st := model.RegistryStats{CasesBySource: make(map[model.SourceType]int)}

	var last *time.Time
	if err := p.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE verified), max(updated_at) FROM cases`,
	).Scan(&st.TotalCases, &st.VerifiedCases, &last); err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	if last != nil {
		st.LastUpdate = *last
	}

	rows, err := p.pool.Query(ctx, `SELECT source_type, count(*) FROM cases GROUP BY source_type`)
	if err != nil {
		return st, fmt.Errorf("stats by source: %w", err)
	}
	for rows.Next() {
		var (
			source string
			n      int
		)
		if err := rows.Scan(&source, &n); err != nil {
			rows.Close()
			return st, fmt.Errorf("stats by source: %w", err)
		}
		st.CasesBySource[model.SourceType(source)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("stats by source: %w", err)
	}

	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM search_logs`).Scan(&st.TotalSearches); err != nil {
		return st, fmt.Errorf("stats searches: %w", err)
	}

	limit := topKeywords
	if limit <= 0 {
		limit = 10
	}
	kw, err := p.pool.Query(ctx, `
		SELECT searched_name, count(*) AS n FROM search_logs
		WHERE searched_name <> ''
		GROUP BY searched_name
		ORDER BY n DESC, searched_name
		LIMIT $1`, limit)
	if err != nil {
		return st, fmt.Errorf("stats keywords: %w", err)
	}
	defer kw.Close()
	st.PopularKeywords = make([]model.KeywordCount, 0, limit)
	for kw.Next() {
		var k model.KeywordCount
		if err := kw.Scan(&k.Keyword, &k.Count); err != nil {
			return st, fmt.Errorf("stats keywords: %w", err)
		}
		st.PopularKeywords = append(st.PopularKeywords, k)
	}
	return st, kw.Err()
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() error {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
	return nil
}
