package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/kidregistry/internal/model"
)

func TestRole(t *testing.T) {
	tests := []struct {
		text string
		want model.RoleTag
	}{
		{"居家保母 王○明", model.RoleNanny},
		{"托育人員", model.RoleNanny},
		{"小天使托嬰中心", model.RoleDaycare},
		{"快樂幼兒園 教保員", model.RoleKindergarten},
		{"家庭教師涉嫌猥褻", model.RoleTutor},
		{"明日補習班老師", model.RoleCramSchoolTeacher},
		{"安親班", model.RoleCramSchoolTeacher},
		{"游泳教練", model.RoleCoach},
		{"國小老師", model.RoleSchoolTeacher},
		{"才藝老師", model.RoleSchoolTeacher},
		{"Swim COACH", model.RoleCoach},
		{"路人", model.RoleOther},
		{"", model.RoleOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Role(tt.text), tt.text)
	}
}

func TestRoleFirstMatchWins(t *testing.T) {
	// 幼兒園 comes before 老師 in priority
	assert.Equal(t, model.RoleKindergarten, Role("幼兒園老師"))
	assert.Equal(t, model.RoleTutor, Role("家教老師"))
	assert.Equal(t, model.RoleNanny, Role("補習班", "兼職保母"))
}

func TestRiskTags(t *testing.T) {
	assert.Equal(t, model.RiskTags{model.RiskAbuse}, RiskTags("體罰學童"))
	assert.Equal(t,
		model.RiskTags{model.RiskAbuse, model.RiskSexualHarassment}.Normalize(),
		RiskTags("涉嫌猥褻", "並施暴"))
	assert.Equal(t,
		model.RiskTags{model.RiskNeglect, model.RiskImproperDiscipline}.Normalize(),
		RiskTags("照顧不當"))
	assert.Equal(t, model.RiskTags{model.RiskIllegalOperation}, RiskTags("超收幼兒"))
	assert.Equal(t, model.RiskTags{model.RiskSafetyLapse}, RiskTags("意外"))
}

func TestRiskTagsNeverEmpty(t *testing.T) {
	for _, text := range []string{"", "罰鍰新台幣六萬元", "hello"} {
		got := RiskTags(text)
		assert.Equal(t, model.RiskTags{model.RiskGenericViolation}, got, text)
	}
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "台北市", Location("臺北市大安區"))
	assert.Equal(t, "台中市", Location("地點：台中市西屯區"))
	assert.Equal(t, "新北市", Location("新北市與台北市交界"))
	assert.Equal(t, model.LocationUnknown, Location("不明地點"))
	assert.Equal(t, model.LocationUnknown, Location(""))
}

func TestAreas(t *testing.T) {
	areas := Areas()
	assert.Equal(t, model.AreaAll, areas[0])
	assert.Len(t, areas, 23)
	assert.Len(t, Divisions(), 22)
}
