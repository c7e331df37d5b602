// Package adapters normalizes each source's raw field sets into CaseDrafts
package adapters

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/ppiankov/kidregistry/internal/mask"
	"github.com/ppiankov/kidregistry/internal/model"
)

// Adapter normalizes one source's raw records
type Adapter interface {
	// Name is the short source id used in config and logs
	Name() string

	// Label is the human-readable source name stored on each case
	Label() string

	SourceType() model.SourceType

	// Normalize maps one raw record to a draft. A record that cannot be
	// normalized returns an errs.KindMalformedRecord error.
	Normalize(rec model.RawRecord) (model.CaseDraft, error)
}

// Registry holds the adapters by name
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding the given adapters
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Default registers every built-in source adapter
func Default(m *mask.Masker) *Registry {
	if m == nil {
		m = mask.NewMasker(nil)
	}
	return NewRegistry(
		NewCRC(m),
		NewNCWIS(m),
		NewECE(),
		NewCounty(),
		NewKindyInfo(m),
		NewJudicial(m),
		NewNews(m),
		NewCommunity(m),
	)
}

// maskName folds a source name into its canonical form, then masks it
func maskName(m *mask.Masker, name string) string {
	return m.Mask(mask.Normalize(name))
}

// Register adds or replaces an adapter
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Get returns the adapter registered under name
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered source names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NormalizeAll normalizes recs, collecting per-record failures instead of stopping
func NormalizeAll(a Adapter, recs []model.RawRecord) ([]model.CaseDraft, []error) {
	drafts := make([]model.CaseDraft, 0, len(recs))
	var failures []error
	for _, rec := range recs {
		d, err := a.Normalize(rec)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		drafts = append(drafts, d)
	}
	return drafts, failures
}

// SynthLink derives a stable locator from base and the item's identifying fields
func SynthLink(base string, parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return base + "#" + hex.EncodeToString(sum[:])[:12]
}

// WithFragment keeps links unique when one source item yields several people
func WithFragment(link, masked string) string {
	if i := strings.IndexByte(link, '#'); i >= 0 {
		link = link[:i]
	}
	return link + "#" + masked
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
