// Package mask hides the interior of personal names and expands names into
// partial-mask probes for registry lookups.
package mask

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/ppiankov/kidregistry/internal/model"
)

const glyph = string(model.MaskGlyph)

// DefaultInstitutionMarkers identify organization names, which are never masked
var DefaultInstitutionMarkers = []string{"幼兒園", "幼稚園", "托嬰", "中心", "補習班", "安親班"}

// glyph look-alikes used by various sources
var glyphAliases = strings.NewReplacer("〇", glyph, "◯", glyph, "*", glyph)

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(unicode.Cf)), // zero-width joiners, BOM
			width.Fold,
		)
	},
}

// Normalize folds width and compatibility forms, unifies mask look-alikes and
// drops whitespace so that names from different sources compare equal.
func Normalize(name string) string {
	if name == "" {
		return ""
	}
	name = strings.ToValidUTF8(name, "")

	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, name)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		out = name
	}

	out = glyphAliases.Replace(out)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, out)
}

// Masker masks personal names, exempting configured institution markers
type Masker struct {
	markers []string
}

// NewMasker creates a masker; nil markers means DefaultInstitutionMarkers
func NewMasker(markers []string) *Masker {
	if markers == nil {
		markers = DefaultInstitutionMarkers
	}
	return &Masker{markers: markers}
}

var defaultMasker = NewMasker(nil)

// Mask masks name with the default institution markers
func Mask(name string) string { return defaultMasker.Mask(name) }

// IsInstitution reports whether name carries a default institution marker
func IsInstitution(name string) bool { return defaultMasker.IsInstitution(name) }

// IsInstitution reports whether name carries an institution marker
func (m *Masker) IsInstitution(name string) bool {
	for _, marker := range m.markers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// Mask keeps the first and last characters of a personal name and replaces
// every interior character with the mask glyph; two-character names keep the
// first character only. Already-masked names only get placeholders converted,
// which keeps Mask idempotent. Mask never changes the rune count and returns
// institution names unchanged; callers Normalize first when they want
// whitespace and width folded.
func (m *Masker) Mask(name string) string {
	r := []rune(name)
	if len(r) < 2 || m.IsInstitution(name) {
		return name
	}
	if IsMasked(name) {
		return strings.ReplaceAll(name, string(model.Placeholder), glyph)
	}
	if len(r) == 2 {
		return string(r[0]) + glyph
	}
	out := make([]rune, len(r))
	out[0] = r[0]
	for i := 1; i < len(r)-1; i++ {
		out[i] = model.MaskGlyph
	}
	out[len(r)-1] = r[len(r)-1]
	return string(out)
}

// IsMasked reports whether name already contains a mask glyph or placeholder
func IsMasked(name string) bool {
	return strings.ContainsRune(name, model.MaskGlyph) || strings.ContainsRune(name, model.Placeholder)
}

// Strip removes mask glyphs
func Strip(name string) string {
	return strings.ReplaceAll(name, glyph, "")
}
