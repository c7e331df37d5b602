package adapters

import (
	"strings"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/mask"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/taxonomy"
)

// CRC sanction list columns, in page order
var CRCColumns = []string{"seq", "county", "target", "violation", "date"}

// CRCURL is the CRC child and youth law sanction listing
const CRCURL = "https://crc.sfaa.gov.tw/ChildYoungLaw/Sanction"

// CRCAdapter normalizes rows of the CRC child and youth law sanction list
type CRCAdapter struct {
	masker *mask.Masker
}

func NewCRC(m *mask.Masker) *CRCAdapter { return &CRCAdapter{masker: m} }

func (a *CRCAdapter) Name() string                 { return "crc" }
func (a *CRCAdapter) Label() string                { return "CRC兒少法裁罰公告" }
func (a *CRCAdapter) SourceType() model.SourceType { return model.SourceGovernmentNotice }

func (a *CRCAdapter) Normalize(rec model.RawRecord) (model.CaseDraft, error) {
	target := rec.Get("target")
	violation := rec.Get("violation")
	if target == "" || violation == "" {
		return model.CaseDraft{}, errs.Malformedf(a.Name(), "row missing target or violation: %v", rec)
	}
	// the registry prints dates as 2024.01.10
	date := strings.ReplaceAll(rec.Get("date"), ".", "-")

	return model.CaseDraft{
		RawName:     target,
		MaskedName:  maskName(a.masker, target),
		Role:        taxonomy.Role(target, violation),
		RiskTags:    taxonomy.RiskTags(violation),
		Location:    taxonomy.Location(rec.Get("county") + " " + target),
		CaseDate:    date,
		Description: "違反" + violation,
		SourceType:  a.SourceType(),
		SourceName:  a.Label(),
		SourceLink:  SynthLink(CRCURL, target, date, violation),
		Verified:    true,
	}, nil
}
