package model

import "time"

// MatchType buckets a similarity score
type MatchType string

const (
	MatchExact  MatchType = "exact"
	MatchHigh   MatchType = "high"
	MatchMedium MatchType = "medium"
	MatchLow    MatchType = "low"
)

// SearchQuery is a caller-supplied lookup; Name and Area are both optional
type SearchQuery struct {
	Name   string `json:"name,omitempty"`
	Area   string `json:"area,omitempty"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// SearchResult is one ranked match
type SearchResult struct {
	Case       Case      `json:"case"`
	Similarity int       `json:"similarity"`
	MatchType  MatchType `json:"match_type"`
}

// SearchResponse is the resolver output, including the disclaimer shown verbatim by callers
type SearchResponse struct {
	Found        bool           `json:"found"`
	SearchedName string         `json:"searched_name"`
	Results      []SearchResult `json:"results"`
	Total        int            `json:"total"`
	HasMore      bool           `json:"has_more"`
	Disclaimer   string         `json:"disclaimer"`
}

// SearchLog records one search for statistics
type SearchLog struct {
	ID           int64     `json:"id"`
	SearchedName string    `json:"searched_name"`
	SearchedArea string    `json:"searched_area,omitempty"`
	FoundResults bool      `json:"found_results"`
	ResultCount  int       `json:"result_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// KeywordCount is one entry of the popular-search ranking
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// RegistryStats summarizes registry contents for the stats command
type RegistryStats struct {
	TotalCases      int                `json:"total_cases"`
	CasesBySource   map[SourceType]int `json:"cases_by_source"`
	VerifiedCases   int                `json:"verified_cases"`
	LastUpdate      time.Time          `json:"last_update"`
	TotalSearches   int                `json:"total_searches"`
	PopularKeywords []KeywordCount     `json:"popular_keywords"`
}
