package news

import (
	"regexp"
	"strings"

	"github.com/ppiankov/kidregistry/internal/model"
)

var (
	// 王姓男子, 陳姓保母, 林姓女童
	surnameForm = regexp.MustCompile(`([\p{Han}])姓(?:男子|女子|男|女|保母|保姆|教練|老師|教師|家教|園長|嫌犯|負責人)`)
	// 王○○, 陳○明, 李某某
	maskedForm = regexp.MustCompile(`[\p{Han}](?:[○〇Ｏ]{1,2}[\p{Han}]?|某某)`)
	// 吳男, 李女 standing alone
	bareForm = regexp.MustCompile(`^([\p{Han}])[男女]$`)
)

const surnameMask = string(model.MaskGlyph) + string(model.MaskGlyph)

// FallbackNames finds suspect name forms in text without a model.
// Surname forms become the surname plus two mask glyphs.
func FallbackNames(text string) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, m := range surnameForm.FindAllStringSubmatch(text, -1) {
		add(m[1] + surnameMask)
	}
	for _, m := range maskedForm.FindAllString(text, -1) {
		add(CanonicalName(m))
	}
	return names
}

// CanonicalName rewrites descriptive name forms into masked names
func CanonicalName(name string) string {
	if m := surnameForm.FindStringSubmatch(name); m != nil && m[0] == name {
		return m[1] + surnameMask
	}
	if m := bareForm.FindStringSubmatch(name); m != nil {
		return m[1] + surnameMask
	}
	return strings.ReplaceAll(name, string(model.Placeholder), string(model.MaskGlyph))
}
