package taxonomy

import (
	"strings"

	"github.com/ppiankov/kidregistry/internal/model"
)

// divisions in canonical spelling (台 rather than 臺)
var divisions = []string{
	"台北市", "新北市", "桃園市", "台中市", "台南市", "高雄市",
	"基隆市", "新竹市", "嘉義市",
	"新竹縣", "苗栗縣", "彰化縣", "南投縣", "雲林縣", "嘉義縣",
	"屏東縣", "宜蘭縣", "花蓮縣", "台東縣", "澎湖縣", "金門縣", "連江縣",
}

// CanonicalDivision rewrites alternate spellings to the canonical one
func CanonicalDivision(s string) string {
	return strings.ReplaceAll(s, "臺", "台")
}

// Location returns the division that appears earliest in text, or
// model.LocationUnknown when none does.
func Location(text string) string {
	text = CanonicalDivision(text)
	best, bestAt := "", -1
	for _, d := range divisions {
		if at := strings.Index(text, d); at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = d, at
		}
	}
	if best == "" {
		return model.LocationUnknown
	}
	return best
}

// Divisions returns the canonical division list
func Divisions() []string {
	out := make([]string, len(divisions))
	copy(out, divisions)
	return out
}

// Areas returns the search-area choices: the all-areas sentinel followed by every division
func Areas() []string {
	return append([]string{model.AreaAll}, divisions...)
}
