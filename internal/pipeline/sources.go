package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/extract"
	"github.com/ppiankov/kidregistry/internal/extract/adapters"
	"github.com/ppiankov/kidregistry/internal/judicial"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/news"
	"github.com/ppiankov/kidregistry/internal/store"
	"github.com/ppiankov/kidregistry/internal/worker"
)

// Source is the raw-fetch side of one source. failed holds per-item
// problems that did not stop the source; err means the source produced
// nothing usable.
type Source interface {
	Name() string
	Fetch(ctx context.Context, pacer worker.Pacer) (recs []model.RawRecord, failed []error, err error)
}

// Pages fetches HTML pages
type Pages interface {
	FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error)
}

// CrawlDelayer is implemented by Pages that know the robots.txt crawl delay
type CrawlDelayer interface {
	CrawlDelay(ctx context.Context, rawURL string) time.Duration
}

func crawlDelay(ctx context.Context, v any, rawURL string) time.Duration {
	if d, ok := v.(CrawlDelayer); ok {
		return d.CrawlDelay(ctx, rawURL)
	}
	return 0
}

func fetchDoc(ctx context.Context, pages Pages, pacer worker.Pacer, rawURL string) (*html.Node, *url.URL, error) {
	if err := pacer.WaitWithDelay(ctx, crawlDelay(ctx, pages, rawURL)); err != nil {
		return nil, nil, err
	}
	res, err := pages.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := extract.Parse(res.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	base, err := url.Parse(res.URL)
	if err != nil || res.URL == "" {
		base, _ = url.Parse(rawURL)
	}
	return doc, base, nil
}

// CRCSource pages through the CRC sanction grid
type CRCSource struct {
	Pages    Pages
	MaxPages int
}

func (s *CRCSource) Name() string { return "crc" }

// Fetch reads page 1, then follows the PageIndex query up to the pager's
// "共 N 頁" count, capped at MaxPages. Any page failing fails the source.
func (s *CRCSource) Fetch(ctx context.Context, pacer worker.Pacer) ([]model.RawRecord, []error, error) {
	doc, base, err := fetchDoc(ctx, s.Pages, pacer, adapters.CRCURL)
	if err != nil {
		return nil, nil, errs.FromFetch(s.Name(), err)
	}
	recs := extract.Grid(doc, base, adapters.CRCColumns, "縣市名稱")

	pages := extract.PageCount(doc)
	if s.MaxPages > 0 && pages > s.MaxPages {
		pages = s.MaxPages
	}
	for p := 2; p <= pages; p++ {
		doc, base, err := fetchDoc(ctx, s.Pages, pacer, adapters.CRCURL+"?PageIndex="+strconv.Itoa(p))
		if err != nil {
			return nil, nil, errs.FromFetch(s.Name(), fmt.Errorf("page %d: %w", p, err))
		}
		recs = append(recs, extract.Grid(doc, base, adapters.CRCColumns, "縣市名稱")...)
	}
	return recs, nil, nil
}

// TableSource reads one HTML table page
type TableSource struct {
	SourceName string
	URL        string
	Columns    []string
	MinCells   int
	Pages      Pages
}

func (s *TableSource) Name() string { return s.SourceName }

func (s *TableSource) Fetch(ctx context.Context, pacer worker.Pacer) ([]model.RawRecord, []error, error) {
	doc, base, err := fetchDoc(ctx, s.Pages, pacer, s.URL)
	if err != nil {
		return nil, nil, errs.FromFetch(s.SourceName, err)
	}
	return extract.Table(doc, base, s.Columns, s.MinCells), nil, nil
}

// NewNCWISSource reads the childcare platform penalty table
func NewNCWISSource(pages Pages) *TableSource {
	return &TableSource{SourceName: "ncwis", URL: adapters.NCWISURL, Columns: adapters.NCWISColumns, MinCells: 4, Pages: pages}
}

// NewECESource reads the preschool penalty table
func NewECESource(pages Pages) *TableSource {
	return &TableSource{SourceName: "ece", URL: adapters.ECEURL, Columns: adapters.ECEColumns, MinCells: 3, Pages: pages}
}

// multiPage fetches several independent pages; one failing page is a
// per-item failure, all failing is a source failure
func multiPage(ctx context.Context, source string, urls []string, fetch func(context.Context, string) ([]model.RawRecord, error)) ([]model.RawRecord, []error, error) {
	var (
		recs   []model.RawRecord
		failed []error
	)
	for _, u := range urls {
		rs, err := fetch(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, errs.FromFetch(source, ctx.Err())
			}
			failed = append(failed, errs.FromFetch(source, fmt.Errorf("%s: %w", u, err)))
			continue
		}
		recs = append(recs, rs...)
	}
	if len(urls) > 0 && len(failed) == len(urls) {
		return nil, nil, errors.Join(failed...)
	}
	return recs, failed, nil
}

// CountySource polls the county social-welfare bureaus for announcement links
type CountySource struct {
	Pages Pages
	Sites []adapters.CountySite
}

func (s *CountySource) Name() string { return "county" }

func (s *CountySource) Fetch(ctx context.Context, pacer worker.Pacer) ([]model.RawRecord, []error, error) {
	sites := s.Sites
	if sites == nil {
		sites = adapters.CountySites
	}
	bySite := make(map[string]adapters.CountySite, len(sites))
	urls := make([]string, len(sites))
	for i, site := range sites {
		urls[i] = site.URL
		bySite[site.URL] = site
	}
	return multiPage(ctx, s.Name(), urls, func(ctx context.Context, u string) ([]model.RawRecord, error) {
		doc, base, err := fetchDoc(ctx, s.Pages, pacer, u)
		if err != nil {
			return nil, err
		}
		site := bySite[u]
		recs := extract.Links(doc, base, adapters.CountyKeywords)
		for _, r := range recs {
			r["city"] = site.City
			r["bureau"] = site.Name
		}
		return recs, nil
	})
}

// KindyInfoSource reads the yearly KindyInfo penalty tables
type KindyInfoSource struct {
	Pages Pages
	URLs  []string
}

func (s *KindyInfoSource) Name() string { return "kindyinfo" }

func (s *KindyInfoSource) Fetch(ctx context.Context, pacer worker.Pacer) ([]model.RawRecord, []error, error) {
	urls := s.URLs
	if urls == nil {
		urls = adapters.KindyInfoPages
	}
	return multiPage(ctx, s.Name(), urls, func(ctx context.Context, u string) ([]model.RawRecord, error) {
		doc, base, err := fetchDoc(ctx, s.Pages, pacer, u)
		if err != nil {
			return nil, err
		}
		recs := extract.Table(doc, base, adapters.KindyInfoColumns, len(adapters.KindyInfoColumns))
		for _, r := range recs {
			r["page"] = u
		}
		return recs, nil
	})
}

// JudicialSource wraps the open-data collector
type JudicialSource struct {
	Collector *judicial.Collector
	Force     bool // ignore the service window
}

func (s *JudicialSource) Name() string { return "judicial" }

func (s *JudicialSource) Fetch(ctx context.Context, pacer worker.Pacer) ([]model.RawRecord, []error, error) {
	recs, failed, err := s.Collector.Collect(ctx, pacer, s.Force)
	if err != nil {
		return nil, nil, errs.FromFetch(s.Name(), err)
	}
	return recs, failed, nil
}

// NewsSource wraps the feed poller
type NewsSource struct {
	Poller *news.Poller
}

func (s *NewsSource) Name() string { return "news" }

func (s *NewsSource) Fetch(ctx context.Context, pacer worker.Pacer) ([]model.RawRecord, []error, error) {
	recs, failed, err := s.Poller.Collect(ctx, pacer)
	if err != nil {
		return nil, nil, errs.FromFetch(s.Name(), err)
	}
	return recs, failed, nil
}

// CommunitySource turns approved reports into raw records
type CommunitySource struct {
	Reports store.Reports
}

func (s *CommunitySource) Name() string { return "community" }

func (s *CommunitySource) Fetch(ctx context.Context, _ worker.Pacer) ([]model.RawRecord, []error, error) {
	reports, err := s.Reports.ListReports(ctx, model.ReportApproved)
	if err != nil {
		return nil, nil, errs.Storage("list approved reports", err)
	}
	recs := make([]model.RawRecord, 0, len(reports))
	for _, r := range reports {
		recs = append(recs, model.RawRecord{
			adapters.CommunityReportID:    strconv.FormatInt(r.ID, 10),
			adapters.CommunitySuspect:     r.SuspectName,
			adapters.CommunityLocation:    r.Location,
			adapters.CommunityDescription: r.Description,
			adapters.CommunityCreatedAt:   r.CreatedAt.Format("2006-01-02"),
		})
	}
	return recs, nil, nil
}
