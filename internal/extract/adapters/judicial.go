package adapters

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/mask"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/taxonomy"
)

// Judicial raw record keys. The judgment client emits one record per defendant.
const (
	JudicialJID        = "jid"
	JudicialTitle      = "title"
	JudicialDate       = "date"
	JudicialDefendant  = "defendant"
	JudicialDefendants = "defendants" // defendant count in the judgment
	JudicialContent    = "content"
)

// JudgmentURL is the public viewer for a judgment id
const JudgmentURL = "https://judgment.judicial.gov.tw/FJUD/data.aspx"

// district and branch court codes (first JID component, minus the case-kind letter)
var courtDivisions = map[string]string{
	"TPD": "台北市", "SLD": "台北市", "PCD": "新北市", "TYD": "桃園市",
	"SCD": "新竹縣", "MLD": "苗栗縣", "TCD": "台中市", "CHD": "彰化縣",
	"NTD": "南投縣", "ULD": "雲林縣", "CYD": "嘉義縣", "TND": "台南市",
	"KSD": "高雄市", "CTD": "高雄市", "PTD": "屏東縣", "TTD": "台東縣",
	"HLD": "花蓮縣", "ILD": "宜蘭縣", "KLD": "基隆市", "PHD": "澎湖縣",
	"KMD": "金門縣", "LCD": "連江縣",
}

// JudicialAdapter normalizes defendants found in child-related judgments
type JudicialAdapter struct {
	masker *mask.Masker
}

func NewJudicial(m *mask.Masker) *JudicialAdapter { return &JudicialAdapter{masker: m} }

func (a *JudicialAdapter) Name() string                 { return "judicial" }
func (a *JudicialAdapter) Label() string                { return "司法院裁判書" }
func (a *JudicialAdapter) SourceType() model.SourceType { return model.SourceGovernmentNotice }

func (a *JudicialAdapter) Normalize(rec model.RawRecord) (model.CaseDraft, error) {
	jid, name := rec.Get(JudicialJID), rec.Get(JudicialDefendant)
	if jid == "" || name == "" {
		return model.CaseDraft{}, errs.Malformedf(a.Name(), "judgment record missing jid or defendant: %v", rec)
	}
	title, content := rec.Get(JudicialTitle), rec.Get(JudicialContent)
	masked := maskName(a.masker, name)

	link := JudgmentURL + "?jid=" + url.QueryEscape(jid)
	if n, _ := strconv.Atoi(rec.Get(JudicialDefendants)); n > 1 {
		link = WithFragment(link, masked)
	}

	location := taxonomy.Location(content)
	if location == model.LocationUnknown {
		location = CourtDivision(jid)
	}

	return model.CaseDraft{
		RawName:     name,
		MaskedName:  masked,
		Role:        taxonomy.Role(title),
		RiskTags:    taxonomy.RiskTags(title, content),
		Location:    location,
		CaseDate:    JudgmentDate(orDefault(rec.Get(JudicialDate), jidField(jid, 4))),
		Description: orDefault(title, "裁判書"),
		SourceType:  a.SourceType(),
		SourceName:  a.Label(),
		SourceLink:  link,
		Verified:    true,
		ExternalID:  jid,
	}, nil
}

// CourtDivision maps a judgment id like "TPDM,112,侵訴,5,20240110,1" to the court's division
func CourtDivision(jid string) string {
	code := jidField(jid, 0)
	if len(code) >= 3 {
		if d, ok := courtDivisions[code[:3]]; ok {
			return d
		}
	}
	return model.LocationUnknown
}

// JudgmentDate formats a compact yyyymmdd date as yyyy-mm-dd; other forms pass through
func JudgmentDate(s string) string {
	if len(s) != 8 {
		return s
	}
	if _, err := strconv.Atoi(s); err != nil {
		return s
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:]
}

func jidField(jid string, i int) string {
	parts := strings.Split(jid, ",")
	if i < len(parts) {
		return strings.TrimSpace(parts[i])
	}
	return ""
}
