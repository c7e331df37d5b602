// Package taxonomy maps free text onto the closed role and risk vocabularies
// and resolves administrative divisions.
package taxonomy

import (
	"strings"

	"github.com/ppiankov/kidregistry/internal/model"
)

type roleRule struct {
	role     model.RoleTag
	keywords []string
}

// roleRules are checked in order; the first keyword hit wins.
// Specific job titles come before the generic teacher words they contain.
var roleRules = []roleRule{
	{model.RoleNanny, []string{"保母", "保姆", "褓姆", "托育人員", "托嬰人員", "居家托育", "nanny", "babysitter"}},
	{model.RoleDaycare, []string{"托嬰", "daycare"}},
	{model.RoleKindergarten, []string{"幼兒園", "幼稚園", "教保", "kindergarten", "preschool"}},
	{model.RoleTutor, []string{"家教", "家庭教師", "私人教師", "tutor"}},
	{model.RoleCramSchoolTeacher, []string{"補習班", "安親班", "課照班", "cram school"}},
	{model.RoleCoach, []string{"教練", "coach"}},
	{model.RoleSchoolTeacher, []string{"老師", "教師", "導師", "teacher"}},
}

// Role returns the canonical role for the concatenated text, or RoleOther.
// Matching is case-insensitive substring containment.
func Role(parts ...string) model.RoleTag {
	text := strings.ToLower(strings.Join(parts, " "))
	for _, rule := range roleRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.role
			}
		}
	}
	return model.RoleOther
}
