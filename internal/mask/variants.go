package mask

import "github.com/ppiankov/kidregistry/internal/model"

// Variants expands a candidate name into substring probes against stored
// masked names, in this order: the name itself, each single-interior-position
// masked form, the surname alone, and for three or more characters surname
// plus last character. Names shorter than two characters yield only themselves.
func Variants(name string) []string {
	name = Normalize(name)
	r := []rune(name)
	if len(r) < 2 {
		return []string{name}
	}

	out := make([]string, 0, len(r)+2)
	seen := make(map[string]bool, len(r)+2)
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	add(name)
	for i := 1; i < len(r)-1; i++ {
		masked := make([]rune, len(r))
		copy(masked, r)
		masked[i] = model.MaskGlyph
		add(string(masked))
	}
	add(string(r[0]))
	if len(r) >= 3 {
		add(string(r[0]) + string(r[len(r)-1]))
	}
	return out
}
