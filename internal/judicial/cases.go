package judicial

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// childKeywords mark a judgment as child-related when found in title or body
var childKeywords = []string{
	"性侵", "強制性交", "猥褻", "性騷擾", "妨害性自主",
	"虐待", "傷害", "遺棄", "凌虐",
	"兒童", "少年", "未成年", "幼童", "幼年",
	"兒童及少年福利", "兒少權法", "性侵害犯罪防治",
}

var defendantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`被\s*告\s+(\S+)`),
	regexp.MustCompile(`被告人\s+(\S+)`),
}

// IsChildRelated reports whether a judgment concerns children
func IsChildRelated(title, content string) bool {
	text := title + " " + content
	for _, kw := range childKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Defendants returns the distinct defendant names in order of appearance.
// Tokens outside 2-5 runes are not names.
func Defendants(content string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, re := range defendantPatterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			name := strings.TrimSpace(m[1])
			n := utf8.RuneCountInString(name)
			if n < 2 || n > 5 || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// JID is a parsed judgment id: court,year,case kind,number,date,check number
type JID struct {
	Court    string
	Year     string
	CaseKind string
	CaseNo   string
	Date     string
	CheckNo  string
}

// ParseJID splits a judgment id; ok is false unless it has six parts
func ParseJID(jid string) (JID, bool) {
	parts := strings.Split(jid, ",")
	if len(parts) != 6 {
		return JID{}, false
	}
	return JID{
		Court:    parts[0],
		Year:     parts[1],
		CaseKind: parts[2],
		CaseNo:   parts[3],
		Date:     parts[4],
		CheckNo:  parts[5],
	}, true
}
