package taxonomy

import (
	"strings"

	"github.com/ppiankov/kidregistry/internal/model"
)

var riskGroups = []struct {
	tag      model.RiskTag
	keywords []string
}{
	{model.RiskAbuse, []string{"虐", "傷害", "暴力", "體罰", "施暴", "毆打", "abuse", "violence"}},
	{model.RiskSexualHarassment, []string{"性侵", "性騷", "性交", "性剝削", "性自主", "猥褻", "騷擾", "harassment", "molest"}},
	{model.RiskNeglect, []string{"疏忽", "照顧不當", "遺棄", "neglect"}},
	{model.RiskImproperDiscipline, []string{"管教", "處罰", "不當"}},
	{model.RiskIllegalOperation, []string{"未立案", "違規", "超收", "無照", "未經許可"}},
	{model.RiskSafetyLapse, []string{"安全", "意外", "傷亡", "窒息"}},
}

// RiskTags returns every risk group whose keywords appear in the text.
// The result is never empty: unmatched text yields RiskGenericViolation.
func RiskTags(parts ...string) model.RiskTags {
	text := strings.ToLower(strings.Join(parts, " "))
	var tags model.RiskTags
	for _, g := range riskGroups {
		for _, kw := range g.keywords {
			if strings.Contains(text, kw) {
				tags = append(tags, g.tag)
				break
			}
		}
	}
	if len(tags) == 0 {
		return model.RiskTags{model.RiskGenericViolation}
	}
	return tags.Normalize()
}
