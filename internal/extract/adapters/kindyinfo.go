package adapters

import (
	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/extract"
	"github.com/ppiankov/kidregistry/internal/mask"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/taxonomy"
)

var KindyInfoColumns = []string{"date", "city", "district", "name", "count", "penalty"}

// KindyInfoPages are the yearly penalty tables, newest first
var KindyInfoPages = []string{
	"https://www.kindyinfo.com/blog/preschool-penalties",
	"https://www.kindyinfo.com/blog/preschool-penalties/2024",
	"https://www.kindyinfo.com/blog/preschool-penalties/2023",
}

// KindyInfoAdapter normalizes the KindyInfo mirror of preschool penalty
// decisions. The fetcher adds the page URL under "page". Rows naming a
// kindergarten keep the name through the institution exemption; anything
// else is masked like a personal name.
type KindyInfoAdapter struct {
	masker *mask.Masker
}

func NewKindyInfo(m *mask.Masker) *KindyInfoAdapter { return &KindyInfoAdapter{masker: m} }

func (a *KindyInfoAdapter) Name() string                 { return "kindyinfo" }
func (a *KindyInfoAdapter) Label() string                { return "KindyInfo幼園通" }
func (a *KindyInfoAdapter) SourceType() model.SourceType { return model.SourceGovernmentNotice }

func (a *KindyInfoAdapter) Normalize(rec model.RawRecord) (model.CaseDraft, error) {
	name, date := rec.Get("name"), rec.Get("date")
	if name == "" || date == "" {
		return model.CaseDraft{}, errs.Malformedf(a.Name(), "row missing name or date: %v", rec)
	}
	city := taxonomy.CanonicalDivision(rec.Get("city"))
	district := rec.Get("district")
	location := taxonomy.Location(city + district)
	if location != model.LocationUnknown {
		location += district
	}

	penalty := rec.Get("penalty")
	summary := penalty
	if summary == "" {
		summary = "裁罰" + orDefault(rec.Get("count"), "1") + "次"
	}

	// one kindergarten page can carry several penalties, so the link is always keyed by date too
	base := orDefault(rec.Get("name"+extract.HrefSuffix), orDefault(rec.Get("page"), KindyInfoPages[0]))
	link := SynthLink(base, name, date, location)
	masked := maskName(a.masker, name)

	return model.CaseDraft{
		RawName:     name,
		MaskedName:  masked,
		Role:        model.RoleKindergarten,
		RiskTags:    taxonomy.RiskTags(penalty),
		Location:    location,
		CaseDate:    date,
		Description: masked + " - " + summary,
		SourceType:  a.SourceType(),
		SourceName:  a.Label(),
		SourceLink:  link,
		Verified:    true,
	}, nil
}
