package adapters

import (
	"strings"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/mask"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/taxonomy"
)

var NCWISColumns = []string{"name", "type", "violation", "date", "location"}

const NCWISURL = "https://ncwisweb.sfaa.gov.tw/home/penalty"

// NCWISAdapter normalizes the childcare matching platform's penalty table
type NCWISAdapter struct {
	masker *mask.Masker
}

func NewNCWIS(m *mask.Masker) *NCWISAdapter { return &NCWISAdapter{masker: m} }

func (a *NCWISAdapter) Name() string                 { return "ncwis" }
func (a *NCWISAdapter) Label() string                { return "衛福部托育媒合平臺" }
func (a *NCWISAdapter) SourceType() model.SourceType { return model.SourceGovernmentNotice }

func (a *NCWISAdapter) Normalize(rec model.RawRecord) (model.CaseDraft, error) {
	name := rec.Get("name")
	if name == "" {
		return model.CaseDraft{}, errs.Malformedf(a.Name(), "row missing name: %v", rec)
	}
	kind := rec.Get("type")
	violation := rec.Get("violation")
	date := rec.Get("date")

	role := model.RoleNanny
	if strings.Contains(kind, "托嬰") {
		role = model.RoleDaycare
	}

	return model.CaseDraft{
		RawName:     name,
		MaskedName:  maskName(a.masker, name),
		Role:        role,
		RiskTags:    taxonomy.RiskTags(violation, kind),
		Location:    taxonomy.Location(orDefault(rec.Get("location"), name)),
		CaseDate:    date,
		Description: orDefault(kind, "托育人員") + " - " + orDefault(violation, "違反兒少相關法規"),
		SourceType:  a.SourceType(),
		SourceName:  a.Label(),
		SourceLink:  SynthLink(NCWISURL, name, date, violation, kind),
		Verified:    true,
	}, nil
}
