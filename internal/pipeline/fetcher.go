// Package pipeline fetches source pages, normalizes them and feeds the ingest engine
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/kidregistry/internal/cache"
	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/metrics"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/util"
)

// fetchSleepFunc waits between retries; tests replace it
var fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ErrDisallowed is returned for URLs robots.txt forbids
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError is a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	Timeout       time.Duration // per attempt
	UserAgent     string
	MaxBytes      int64
	MaxRetries    int
	RespectRobots bool
	HTTPProxy     string
	HTTPSProxy    string
	Cache         cache.Cache // optional page cache
	CacheTTL      time.Duration
	Metrics       *metrics.Metrics
}

// OptionsFromConfig maps the http config section
func OptionsFromConfig(c model.HTTPConfig) FetcherOptions {
	return FetcherOptions{
		Timeout:       c.Timeout,
		UserAgent:     c.UserAgent,
		MaxBytes:      c.MaxBodyBytes,
		MaxRetries:    c.MaxRetries,
		RespectRobots: c.RespectRobots,
		HTTPProxy:     c.HTTPProxy,
		HTTPSProxy:    c.HTTPSProxy,
	}
}

// Fetcher retrieves source pages with a bounded timeout per attempt
type Fetcher struct {
	client *http.Client
	robots *util.RobotsChecker
	opts   FetcherOptions
	log    *logger.Logger
}

// FetchResult is one fetched page
type FetchResult struct {
	Body        string
	URL         string // after redirects
	StatusCode  int
	ContentType string
	FromCache   bool
}

// NewFetcher builds a Fetcher
func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 5_000_000
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	transport, err := util.Transport(opts.HTTPProxy, opts.HTTPSProxy)
	if err != nil {
		return nil, err
	}
	f := &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		opts: opts,
		log:  logger.Named("fetcher"),
	}
	if opts.RespectRobots {
		f.robots = util.NewRobotsChecker(opts.UserAgent, opts.Timeout)
	}
	return f, nil
}

// CrawlDelay returns the robots.txt crawl delay that applies to rawURL, or 0
// when robots.txt is not consulted or sets none
func (f *Fetcher) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	if f.robots == nil {
		return 0
	}
	_, delay, err := f.robots.CanFetch(ctx, rawURL)
	if err != nil {
		return 0
	}
	return delay
}

// Fetch performs a single GET
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if delay > 0 {
			f.log.Debug().Str("url", rawURL).Dur("crawl_delay", delay).Msg("robots.txt crawl delay")
		}
		if !allowed {
			f.opts.Metrics.Fetch("disallowed")
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		Body:        string(body),
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// FetchWithRetry serves from the page cache when possible, otherwise fetches
// with exponential backoff on transient failures.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	key := cache.PageKey(rawURL)
	if f.opts.Cache != nil {
		var cached FetchResult
		if cache.GetJSON(f.opts.Cache, key, &cached) {
			f.opts.Metrics.Fetch("cached")
			cached.FromCache = true
			return &cached, nil
		}
	}

	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			f.log.Debug().Str("url", rawURL).Int("attempt", attempt+1).Err(lastErr).Msg("retrying fetch")
			if err := fetchSleepFunc(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}
		res, err := f.Fetch(ctx, rawURL)
		if err == nil {
			f.opts.Metrics.Fetch("ok")
			if f.opts.Cache != nil {
				if err := cache.SetJSON(f.opts.Cache, key, res, f.opts.CacheTTL); err != nil {
					f.log.Warn().Err(err).Str("url", rawURL).Msg("page cache write failed")
				}
			}
			return res, nil
		}
		lastErr = err
		if !errors.Is(err, ErrDisallowed) {
			f.opts.Metrics.Fetch("error")
		}
		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Get returns the body of rawURL, fetched with retries
func (f *Fetcher) Get(ctx context.Context, rawURL string) (string, error) {
	res, err := f.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return res.Body, nil
}

// isRetryableFetchError reports whether another attempt could succeed:
// 429, 5xx, and transport failures are; other statuses and local errors are not.
func isRetryableFetchError(err error) bool {
	if err == nil || errors.Is(err, ErrDisallowed) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return strings.HasPrefix(err.Error(), "fetch: ")
}
