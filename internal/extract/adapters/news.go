package adapters

import (
	"strconv"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/mask"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/taxonomy"
)

// News raw record keys. The feed poller emits one record per extracted name,
// or a single record with an empty name when none could be extracted.
const (
	NewsTitle     = "title"
	NewsLink      = "link"
	NewsSummary   = "summary"
	NewsPublished = "published"
	NewsPublisher = "publisher"
	NewsName      = "name"
	NewsNames     = "names" // names extracted from the item
	NewsRole      = "role"  // free-form role hint from the name extractor
)

// NewsAdapter normalizes news items. Media reports are never verified.
type NewsAdapter struct {
	masker *mask.Masker
}

func NewNews(m *mask.Masker) *NewsAdapter { return &NewsAdapter{masker: m} }

func (a *NewsAdapter) Name() string                 { return "news" }
func (a *NewsAdapter) Label() string                { return "新聞報導" }
func (a *NewsAdapter) SourceType() model.SourceType { return model.SourceMediaReport }

func (a *NewsAdapter) Normalize(rec model.RawRecord) (model.CaseDraft, error) {
	title, link := rec.Get(NewsTitle), rec.Get(NewsLink)
	if title == "" || link == "" {
		return model.CaseDraft{}, errs.Malformedf(a.Name(), "news item missing title or link: %v", rec)
	}
	summary := rec.Get(NewsSummary)

	name := rec.Get(NewsName)
	masked := model.NameUnknown
	if name != "" {
		masked = maskName(a.masker, name)
	}
	if n, _ := strconv.Atoi(rec.Get(NewsNames)); n > 1 {
		link = WithFragment(link, masked)
	}

	role := taxonomy.Role(rec.Get(NewsRole))
	if role == model.RoleOther {
		role = taxonomy.Role(title, summary)
	}

	description := title
	if summary != "" && summary != title {
		description = title + "\n" + summary
	}

	return model.CaseDraft{
		RawName:     name,
		MaskedName:  masked,
		Role:        role,
		RiskTags:    taxonomy.RiskTags(title, summary),
		Location:    taxonomy.Location(title + " " + summary),
		CaseDate:    rec.Get(NewsPublished),
		Description: description,
		SourceType:  a.SourceType(),
		SourceName:  orDefault(rec.Get(NewsPublisher), a.Label()),
		SourceLink:  link,
		Verified:    false,
	}, nil
}
