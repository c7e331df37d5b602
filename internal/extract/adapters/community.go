package adapters

import (
	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/mask"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/taxonomy"
)

// Community raw record keys, filled from approved reports
const (
	CommunityReportID    = "report_id"
	CommunitySuspect     = "suspect_name"
	CommunityLocation    = "location"
	CommunityDescription = "description"
	CommunityCreatedAt   = "created_at"
)

// CommunityLink is the locator for a stored community report
func CommunityLink(reportID string) string { return "report:" + reportID }

// CommunityAdapter turns approved community reports into unverified signals
type CommunityAdapter struct {
	masker *mask.Masker
}

func NewCommunity(m *mask.Masker) *CommunityAdapter { return &CommunityAdapter{masker: m} }

func (a *CommunityAdapter) Name() string                 { return "community" }
func (a *CommunityAdapter) Label() string                { return "社群通報" }
func (a *CommunityAdapter) SourceType() model.SourceType { return model.SourceCommunitySignal }

func (a *CommunityAdapter) Normalize(rec model.RawRecord) (model.CaseDraft, error) {
	id, name := rec.Get(CommunityReportID), rec.Get(CommunitySuspect)
	if id == "" || name == "" {
		return model.CaseDraft{}, errs.Malformedf(a.Name(), "report missing id or suspect: %v", rec)
	}
	desc := rec.Get(CommunityDescription)
	return model.CaseDraft{
		RawName:     name,
		MaskedName:  maskName(a.masker, name),
		Role:        taxonomy.Role(desc),
		RiskTags:    taxonomy.RiskTags(desc),
		Location:    taxonomy.Location(rec.Get(CommunityLocation) + " " + desc),
		CaseDate:    rec.Get(CommunityCreatedAt),
		Description: desc,
		SourceType:  a.SourceType(),
		SourceName:  a.Label(),
		SourceLink:  CommunityLink(id),
		Verified:    false,
	}, nil
}
