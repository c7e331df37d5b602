// Package score computes mask-aware name similarity and buckets it into match types
package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/kidregistry/internal/mask"
	"github.com/ppiankov/kidregistry/internal/model"
)

// Rule names the scoring rule that produced a score
type Rule string

const (
	RuleStrippedEqual Rule = "stripped_equal" // Equal once mask glyphs are removed
	RuleMaskedMatch   Rule = "masked_match"   // Every unmasked position agrees
	RuleEditDistance  Rule = "edit_distance"  // Normalized Levenshtein similarity
)

// Thresholds is the match policy; all values are on the 0-100 scale
type Thresholds struct {
	MinScore int
	Exact    int
	High     int
	Medium   int
}

// DefaultThresholds returns 50 / 95 / 80 / 60
func DefaultThresholds() Thresholds {
	return Thresholds{MinScore: 50, Exact: 95, High: 80, Medium: 60}
}

// ThresholdsFromConfig converts the config section
func ThresholdsFromConfig(c model.MatchConfig) Thresholds {
	return Thresholds{MinScore: c.MinScore, Exact: c.Exact, High: c.High, Medium: c.Medium}
}

// Validate checks ranges and ordering
func (t Thresholds) Validate() error {
	for name, v := range map[string]int{"min_score": t.MinScore, "exact": t.Exact, "high": t.High, "medium": t.Medium} {
		if v < 0 || v > 100 {
			return fmt.Errorf("match.%s must be within 0-100, got %d", name, v)
		}
	}
	if !(t.Exact >= t.High && t.High >= t.Medium) {
		return fmt.Errorf("match thresholds must satisfy exact >= high >= medium, got %d/%d/%d", t.Exact, t.High, t.Medium)
	}
	return nil
}

// Breakdown explains a score
type Breakdown struct {
	Score    int    `json:"score"`
	Rule     Rule   `json:"rule"`
	Against  string `json:"against"`            // "masked" or "raw"
	Distance int    `json:"distance,omitempty"` // Edit distance when Rule is RuleEditDistance
}

// Scorer scores a query name against a stored candidate
type Scorer struct {
	thresholds Thresholds
}

// NewScorer creates a scorer with the given thresholds
func NewScorer(t Thresholds) *Scorer {
	return &Scorer{thresholds: t}
}

// Thresholds returns the policy in use
func (s *Scorer) Thresholds() Thresholds { return s.thresholds }

// Score returns the best similarity of query against the candidate's masked
// name and, when present, its raw name.
func (s *Scorer) Score(query, maskedName, rawName string) int {
	return s.Explain(query, maskedName, rawName).Score
}

// Explain is Score with the rule that decided it
func (s *Scorer) Explain(query, maskedName, rawName string) Breakdown {
	best := compare(query, maskedName)
	best.Against = "masked"
	if rawName != "" {
		if alt := compare(query, rawName); alt.Score > best.Score {
			alt.Against = "raw"
			best = alt
		}
	}
	return best
}

// IsMatch reports whether score clears the minimum
func (s *Scorer) IsMatch(score int) bool {
	return score >= s.thresholds.MinScore
}

// Classify buckets a score into a match type
func (s *Scorer) Classify(score int) model.MatchType {
	switch {
	case score >= s.thresholds.Exact:
		return model.MatchExact
	case score >= s.thresholds.High:
		return model.MatchHigh
	case score >= s.thresholds.Medium:
		return model.MatchMedium
	default:
		return model.MatchLow
	}
}

// compare applies the rules in priority order; the first that fires decides
func compare(query, candidate string) Breakdown {
	q := mask.Normalize(query)
	c := mask.Normalize(candidate)
	qs, cs := []rune(mask.Strip(q)), []rune(mask.Strip(c))

	if len(qs) > 0 && string(qs) == string(cs) {
		return Breakdown{Score: 100, Rule: RuleStrippedEqual}
	}

	if maskedMatch([]rune(q), []rune(c)) {
		return Breakdown{Score: 95, Rule: RuleMaskedMatch}
	}

	maxLen := len(qs)
	if len(cs) > maxLen {
		maxLen = len(cs)
	}
	if maxLen == 0 {
		return Breakdown{Score: 0, Rule: RuleEditDistance}
	}
	d := levenshtein(qs, cs)
	score := int(math.Round(100 * float64(maxLen-d) / float64(maxLen)))
	if score < 0 {
		score = 0
	}
	return Breakdown{Score: score, Rule: RuleEditDistance, Distance: d}
}

// maskedMatch reports whether q and c have equal length and every
// non-glyph position of c equals q at that position
func maskedMatch(q, c []rune) bool {
	if len(q) == 0 || len(q) != len(c) {
		return false
	}
	unmasked := 0
	for i := range c {
		if c[i] == model.MaskGlyph {
			continue
		}
		if c[i] != q[i] {
			return false
		}
		unmasked++
	}
	return unmasked > 0
}

// levenshtein is the unit-cost insert/delete/substitute distance
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
