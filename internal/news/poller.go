package news

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/extract/adapters"
	"github.com/ppiankov/kidregistry/internal/llm"
	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/worker"
)

// RiskKeywords admit an item when found in its title or summary
var RiskKeywords = []string{
	"判決", "徒刑", "起訴", "裁罰", "違法", "罰鍰",
	"虐童", "不當管教", "施暴", "猥褻", "性騷", "性侵",
	"兒少", "幼兒園", "托嬰", "老師", "教保", "園長",
	"黑名單", "違規", "涉嫌", "告訴", "敗訴", "賠償",
}

// trashKeywords reject real-estate noise that shares the risk words
var trashKeywords = []string{"買房", "房地產"}

// Getter fetches a feed body
type Getter interface {
	Get(ctx context.Context, url string) (string, error)
}

// crawlDelayer is an optional Getter extension reporting the robots.txt crawl delay
type crawlDelayer interface {
	CrawlDelay(ctx context.Context, url string) time.Duration
}

// Poller reads feeds and emits raw records for the news adapter
type Poller struct {
	getter    Getter
	feeds     []string
	keywords  []string
	maxItems  int
	extractor *llm.NameExtractor // nil means regex fallback only
	log       *logger.Logger
}

// NewPoller builds a poller from config. extractor may be nil.
func NewPoller(getter Getter, cfg model.NewsConfig, extractor *llm.NameExtractor) *Poller {
	keywords := cfg.Keywords
	if len(keywords) == 0 {
		keywords = RiskKeywords
	}
	return &Poller{
		getter:    getter,
		feeds:     cfg.Feeds,
		keywords:  keywords,
		maxItems:  cfg.MaxItems,
		extractor: extractor,
		log:       logger.Named("news"),
	}
}

// Items fetches every feed and returns the relevant items, deduplicated by
// link and by title. Unreachable feeds are returned in failed; the error is
// set only when every feed failed.
func (p *Poller) Items(ctx context.Context, pacer worker.Pacer) (items []Item, failed []error, err error) {
	const source = "news"
	if pacer == nil {
		pacer = worker.NoPacing
	}
	seenLink := make(map[string]bool)
	seenTitle := make(map[string]bool)

	var lastErr error
	delayer, _ := p.getter.(crawlDelayer)
	for _, feed := range p.feeds {
		var delay time.Duration
		if delayer != nil {
			delay = delayer.CrawlDelay(ctx, feed)
		}
		if err := pacer.WaitWithDelay(ctx, delay); err != nil {
			return items, failed, errs.FromFetch(source, err)
		}
		body, err := p.getter.Get(ctx, feed)
		if err != nil {
			if ctx.Err() != nil {
				return items, failed, errs.FromFetch(source, ctx.Err())
			}
			lastErr = errs.FromFetch(source, err)
			p.log.Warn().Str("feed", feed).Err(err).Msg("feed fetch failed")
			failed = append(failed, lastErr)
			continue
		}
		parsed, err := ParseFeed(body)
		if err != nil {
			lastErr = errs.Malformed(source, err)
			p.log.Warn().Str("feed", feed).Err(err).Msg("feed parse failed")
			failed = append(failed, lastErr)
			continue
		}
		for _, it := range parsed {
			if it.Title == "" || it.Link == "" || !p.relevant(it) {
				continue
			}
			if seenLink[it.Link] || seenTitle[it.Title] {
				continue
			}
			seenLink[it.Link], seenTitle[it.Title] = true, true
			items = append(items, it)
			if p.maxItems > 0 && len(items) >= p.maxItems {
				return items, failed, nil
			}
		}
	}

	if len(p.feeds) > 0 && len(failed) == len(p.feeds) {
		return nil, nil, lastErr
	}
	return items, failed, nil
}

func (p *Poller) relevant(it Item) bool {
	text := it.Title + " " + it.Summary
	for _, kw := range trashKeywords {
		if strings.Contains(text, kw) {
			return false
		}
	}
	for _, kw := range p.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Collect polls the feeds and fans each item out into one record per name
func (p *Poller) Collect(ctx context.Context, pacer worker.Pacer) ([]model.RawRecord, []error, error) {
	items, failed, err := p.Items(ctx, pacer)
	if err != nil {
		return nil, failed, err
	}
	var records []model.RawRecord
	for _, it := range items {
		records = append(records, p.records(ctx, it)...)
	}
	p.log.Info().Int("items", len(items)).Int("records", len(records)).Msg("news collection done")
	return records, failed, nil
}

type suspect struct {
	name string
	role string
}

func (p *Poller) names(ctx context.Context, it Item) []suspect {
	if p.extractor != nil {
		found, err := p.extractor.Extract(ctx, it.Title, it.Summary)
		switch {
		case err == nil && len(found) > 0:
			out := make([]suspect, 0, len(found))
			seen := make(map[string]bool)
			for _, n := range found {
				name := CanonicalName(n.Name)
				if !seen[name] {
					seen[name] = true
					out = append(out, suspect{name: name, role: n.Role})
				}
			}
			return out
		case err != nil && !errors.Is(err, context.Canceled):
			p.log.Warn().Str("link", it.Link).Err(err).Msg("name extraction failed; using patterns")
		}
	}
	var out []suspect
	for _, n := range FallbackNames(it.Title + " " + it.Summary) {
		out = append(out, suspect{name: n})
	}
	return out
}

func (p *Poller) records(ctx context.Context, it Item) []model.RawRecord {
	base := model.RawRecord{
		adapters.NewsTitle:     it.Title,
		adapters.NewsLink:      it.Link,
		adapters.NewsSummary:   it.Summary,
		adapters.NewsPublisher: it.Publisher,
	}
	if !it.PublishedAt.IsZero() {
		base[adapters.NewsPublished] = it.PublishedAt.Format("2006-01-02")
	}

	suspects := p.names(ctx, it)
	if len(suspects) == 0 {
		return []model.RawRecord{base}
	}
	out := make([]model.RawRecord, 0, len(suspects))
	for _, s := range suspects {
		rec := make(model.RawRecord, len(base)+3)
		for k, v := range base {
			rec[k] = v
		}
		rec[adapters.NewsName] = s.name
		rec[adapters.NewsNames] = strconv.Itoa(len(suspects))
		if s.role != "" {
			rec[adapters.NewsRole] = s.role
		}
		out = append(out, rec)
	}
	return out
}
