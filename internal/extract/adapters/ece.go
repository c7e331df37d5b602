package adapters

import (
	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/taxonomy"
)

var ECEColumns = []string{"kindergarten", "violation", "date", "location"}

const ECEURL = "https://ap.ece.moe.edu.tw/webecems/punishSearch.aspx"

// ECEAdapter normalizes kindergarten penalties from the national preschool portal.
// Records name institutions, so names are stored unmasked.
type ECEAdapter struct{}

func NewECE() *ECEAdapter { return &ECEAdapter{} }

func (a *ECEAdapter) Name() string                 { return "ece" }
func (a *ECEAdapter) Label() string                { return "全國教保資訊網" }
func (a *ECEAdapter) SourceType() model.SourceType { return model.SourceGovernmentNotice }

func (a *ECEAdapter) Normalize(rec model.RawRecord) (model.CaseDraft, error) {
	school := rec.Get("kindergarten")
	if school == "" {
		return model.CaseDraft{}, errs.Malformedf(a.Name(), "row missing kindergarten: %v", rec)
	}
	violation := orDefault(rec.Get("violation"), "違反幼照法")
	date := rec.Get("date")

	return model.CaseDraft{
		RawName:     school,
		MaskedName:  school,
		Role:        model.RoleKindergarten,
		RiskTags:    taxonomy.RiskTags(rec.Get("violation")),
		Location:    taxonomy.Location(orDefault(rec.Get("location"), school)),
		CaseDate:    date,
		Description: "幼兒園 - " + violation,
		SourceType:  a.SourceType(),
		SourceName:  a.Label(),
		SourceLink:  SynthLink(ECEURL, school, date, violation),
		Verified:    true,
	}, nil
}
