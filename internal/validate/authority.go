package validate

import (
	"net/url"
	"regexp"
	"strings"
)

// Authority classifies the publisher behind a source link
type Authority string

const (
	AuthorityJudicial   Authority = "judicial"
	AuthorityGovernment Authority = "government"
	AuthorityMedia      Authority = "media"
	AuthorityCommunity  Authority = "community"
	AuthorityUnknown    Authority = "unknown" // Synthesized or host-less links
)

// AuthorityConfig lists domains per authority; subdomains match their parent
type AuthorityConfig struct {
	JudicialDomains   []string
	GovernmentDomains []string
	MediaDomains      []string
	CommunityDomains  []string
	PathPatterns      map[string]Authority // regexp on URL path
}

// DefaultAuthorityConfig covers the sources this registry ingests
func DefaultAuthorityConfig() AuthorityConfig {
	return AuthorityConfig{
		JudicialDomains: []string{"judicial.gov.tw"},
		GovernmentDomains: []string{
			"gov.tw", "gov.taipei", "sfaa.gov.tw", "moe.edu.tw",
			"kindyinfo.com", // mirrors ECE penalty records verbatim
		},
		MediaDomains: []string{
			"udn.com", "ltn.com.tw", "chinatimes.com", "ettoday.net", "setn.com",
			"tvbs.com.tw", "cna.com.tw", "news.yahoo.com", "tw.news.yahoo.com",
			"news.google.com", "storm.mg", "nownews.com", "mirrormedia.mg", "pts.org.tw",
		},
		CommunityDomains: []string{
			"facebook.com", "ptt.cc", "dcard.tw", "threads.net", "instagram.com", "x.com", "twitter.com",
		},
		PathPatterns: map[string]Authority{
			`(?i)^/FJUD/`: AuthorityJudicial,
		},
	}
}

// AuthorityClassifier maps links to authorities
type AuthorityClassifier struct {
	domains  []domainRule
	patterns []pathRule
}

type domainRule struct {
	domain    string
	authority Authority
}

type pathRule struct {
	pattern   *regexp.Regexp
	authority Authority
}

// NewAuthorityClassifier compiles cfg; invalid path patterns are skipped
func NewAuthorityClassifier(cfg AuthorityConfig) *AuthorityClassifier {
	c := &AuthorityClassifier{}
	// judicial before government: judicial.gov.tw also ends in gov.tw
	for _, group := range []struct {
		domains   []string
		authority Authority
	}{
		{cfg.JudicialDomains, AuthorityJudicial},
		{cfg.GovernmentDomains, AuthorityGovernment},
		{cfg.MediaDomains, AuthorityMedia},
		{cfg.CommunityDomains, AuthorityCommunity},
	} {
		for _, d := range group.domains {
			c.domains = append(c.domains, domainRule{domain: strings.ToLower(d), authority: group.authority})
		}
	}
	for expr, authority := range cfg.PathPatterns {
		if re, err := regexp.Compile(expr); err == nil {
			c.patterns = append(c.patterns, pathRule{pattern: re, authority: authority})
		}
	}
	return c
}

// Classify returns the authority for rawURL
func (c *AuthorityClassifier) Classify(rawURL string) Authority {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return AuthorityUnknown
	}
	host := strings.ToLower(parsed.Hostname())

	for _, r := range c.domains {
		if host == r.domain || strings.HasSuffix(host, "."+r.domain) {
			return r.authority
		}
	}
	for _, r := range c.patterns {
		if r.pattern.MatchString(parsed.Path) {
			return r.authority
		}
	}
	if strings.HasSuffix(host, ".gov") {
		return AuthorityGovernment
	}
	return AuthorityUnknown
}

// CanVerify reports whether a record at rawURL may be marked verified
func (c *AuthorityClassifier) CanVerify(rawURL string) bool {
	switch c.Classify(rawURL) {
	case AuthorityMedia, AuthorityCommunity:
		return false
	}
	return true
}
