package adapters

import (
	"regexp"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/taxonomy"
)

// CountySite is one municipal social-welfare bureau announcement page
type CountySite struct {
	Name string
	URL  string
	City string
}

// CountySites lists the bureaus polled by the county source
var CountySites = []CountySite{
	{Name: "台北市社會局", URL: "https://dosw.gov.taipei/News.aspx?n=F8B2A0E3B4F4C8D1", City: "台北市"},
	{Name: "新北市社會局", URL: "https://www.sw.ntpc.gov.tw/home.jsp?id=c3e0d9c2c3b4a5b6", City: "新北市"},
	{Name: "台中市社會局", URL: "https://www.society.taichung.gov.tw/13710/13735/13738/", City: "台中市"},
	{Name: "高雄市社會局", URL: "https://socbu.kcg.gov.tw/index.php", City: "高雄市"},
}

// CountyKeywords select announcement links worth recording
var CountyKeywords = []string{"兒少", "裁罰", "違反"}

var announcementDate = regexp.MustCompile(`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{2,3}年\d{1,2}月\d{1,2}日`)

// CountyAdapter records bureau announcements. The fetcher adds bureau and city
// to each {text, href} link record.
type CountyAdapter struct{}

func NewCounty() *CountyAdapter { return &CountyAdapter{} }

func (a *CountyAdapter) Name() string                 { return "county" }
func (a *CountyAdapter) Label() string                { return "縣市社會局公告" }
func (a *CountyAdapter) SourceType() model.SourceType { return model.SourceGovernmentNotice }

func (a *CountyAdapter) Normalize(rec model.RawRecord) (model.CaseDraft, error) {
	text, href := rec.Get("text"), rec.Get("href")
	if text == "" || href == "" {
		return model.CaseDraft{}, errs.Malformedf(a.Name(), "link missing text or href: %v", rec)
	}
	title := truncate(text, 50)
	location := taxonomy.CanonicalDivision(rec.Get("city"))
	if location == "" {
		location = taxonomy.Location(text)
	}

	return model.CaseDraft{
		RawName:     title,
		MaskedName:  title,
		Role:        taxonomy.Role(text),
		RiskTags:    taxonomy.RiskTags(text),
		Location:    location,
		CaseDate:    announcementDate.FindString(text),
		Description: text,
		SourceType:  a.SourceType(),
		SourceName:  orDefault(rec.Get("bureau"), a.Label()),
		SourceLink:  href,
		Verified:    true,
	}, nil
}
