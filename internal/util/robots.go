// Package util holds HTTP helpers shared by the page fetcher and the API clients
package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

const robotsTTL = 24 * time.Hour

// RobotsChecker answers whether a source page may be crawled, caching robots.txt per host
type RobotsChecker struct {
	hosts     *gocache.Cache
	client    *http.Client
	userAgent string
}

// NewRobotsChecker fetches robots.txt with its own timeout
func NewRobotsChecker(userAgent string, timeout time.Duration) *RobotsChecker {
	return &RobotsChecker{
		hosts:     gocache.New(robotsTTL, time.Hour),
		client:    &http.Client{Timeout: timeout},
		userAgent: ProductToken(userAgent),
	}
}

// CanFetch returns (allowed, crawlDelay). An unreachable robots.txt allows everything.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}
	data, err := r.robots(ctx, u)
	if err != nil {
		return true, 0, nil
	}
	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	allowed := data.TestAgent(path, r.userAgent)
	var delay time.Duration
	if g := data.FindGroup(r.userAgent); g != nil {
		delay = g.CrawlDelay
	}
	return allowed, delay, nil
}

func (r *RobotsChecker) robots(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Scheme + "://" + u.Host
	if v, ok := r.hosts.Get(host); ok {
		return v.(*robotstxt.RobotsData), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	r.hosts.SetDefault(host, data)
	return data, nil
}

// Forget drops every cached robots.txt
func (r *RobotsChecker) Forget() { r.hosts.Flush() }

// ProductToken reduces a User-Agent header to the product name robots.txt groups match on
func ProductToken(ua string) string {
	fields := strings.Fields(ua)
	if len(fields) == 0 {
		return ua
	}
	product, _, _ := strings.Cut(fields[0], "/")
	return product
}
