package model

import (
	"sort"
	"strings"
	"time"
)

// Sentinel values shared by adapters, the ingest engine and the resolver
const (
	LocationUnknown = "未知"   // Location could not be resolved from the source record
	AreaAll         = "全部地區" // Search area meaning "no area filter"
	NameUnknown     = "未知"   // News item without any extractable name
	MaskGlyph       = '○'    // Replaces interior characters of personal names
	Placeholder     = '某'    // Generic placeholder used by news outlets ("王某某")
)

// RoleTag is the closed set of suspect roles
type RoleTag string

const (
	RoleNanny             RoleTag = "nanny"               // 保母 / 托育人員
	RoleTutor             RoleTag = "tutor"               // 家教
	RoleCramSchoolTeacher RoleTag = "cram_school_teacher" // 補習班 / 安親班
	RoleCoach             RoleTag = "coach"               // 教練
	RoleSchoolTeacher     RoleTag = "school_teacher"      // 學校老師
	RoleDaycare           RoleTag = "daycare"             // 托嬰中心
	RoleKindergarten      RoleTag = "kindergarten"        // 幼兒園
	RoleOther             RoleTag = "other"               // 其他
)

var roleLabels = map[RoleTag]string{
	RoleNanny:             "保母",
	RoleTutor:             "家教",
	RoleCramSchoolTeacher: "補習班老師",
	RoleCoach:             "教練",
	RoleSchoolTeacher:     "學校老師",
	RoleDaycare:           "托嬰中心",
	RoleKindergarten:      "幼兒園",
	RoleOther:             "其他",
}

// Valid reports whether r is a member of the closed role set
func (r RoleTag) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// Label returns the display label
func (r RoleTag) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return roleLabels[RoleOther]
}

// RiskTag is the closed set of violation categories
type RiskTag string

const (
	RiskAbuse              RiskTag = "abuse"               // 虐待
	RiskSexualHarassment   RiskTag = "sexual_harassment"   // 性騷擾
	RiskNeglect            RiskTag = "neglect"             // 疏忽照顧
	RiskImproperDiscipline RiskTag = "improper_discipline" // 不當管教
	RiskIllegalOperation   RiskTag = "illegal_operation"   // 違規經營
	RiskSafetyLapse        RiskTag = "safety_lapse"        // 安全疏失
	RiskGenericViolation   RiskTag = "generic_violation"   // 違反兒少法
)

var riskLabels = map[RiskTag]string{
	RiskAbuse:              "虐待",
	RiskSexualHarassment:   "性騷擾",
	RiskNeglect:            "疏忽照顧",
	RiskImproperDiscipline: "不當管教",
	RiskIllegalOperation:   "違規經營",
	RiskSafetyLapse:        "安全疏失",
	RiskGenericViolation:   "違反兒少法",
}

// Valid reports whether t is a member of the closed risk set
func (t RiskTag) Valid() bool {
	_, ok := riskLabels[t]
	return ok
}

// Label returns the display label
func (t RiskTag) Label() string {
	if l, ok := riskLabels[t]; ok {
		return l
	}
	return string(t)
}

// RiskTags is a set of risk tags kept in a stable order
type RiskTags []RiskTag

// Normalize removes duplicates and sorts the set
func (ts RiskTags) Normalize() RiskTags {
	seen := make(map[RiskTag]bool, len(ts))
	out := make(RiskTags, 0, len(ts))
	for _, t := range ts {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports whether t is in the set
func (ts RiskTags) Contains(t RiskTag) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

// Labels returns display labels in set order
func (ts RiskTags) Labels() []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Label()
	}
	return out
}

// SourceType classifies where a record came from
type SourceType string

const (
	SourceGovernmentNotice SourceType = "government_notice" // 政府公告
	SourceMediaReport      SourceType = "media_report"      // 媒體報導
	SourceCommunitySignal  SourceType = "community_signal"  // 社群輿情
)

// Valid reports whether s is a known source type
func (s SourceType) Valid() bool {
	switch s {
	case SourceGovernmentNotice, SourceMediaReport, SourceCommunitySignal:
		return true
	}
	return false
}

// Label returns the display label
func (s SourceType) Label() string {
	switch s {
	case SourceGovernmentNotice:
		return "政府公告"
	case SourceMediaReport:
		return "媒體報導"
	case SourceCommunitySignal:
		return "社群輿情"
	}
	return string(s)
}

// CaseDraft is a normalized record produced by a source adapter, before persistence
type CaseDraft struct {
	RawName     string     `json:"raw_name,omitempty" validate:"max=100"`
	MaskedName  string     `json:"masked_name" validate:"required,max=100"`
	Role        RoleTag    `json:"role" validate:"required,roletag"`
	RiskTags    RiskTags   `json:"risk_tags" validate:"min=1,dive,risktag"`
	Location    string     `json:"location" validate:"required"`
	CaseDate    string     `json:"case_date,omitempty" validate:"max=20"`
	Description string     `json:"description"`
	SourceType  SourceType `json:"source_type" validate:"required,sourcetype"`
	SourceName  string     `json:"source_name,omitempty"`
	SourceLink  string     `json:"source_link" validate:"required,max=500"`
	Verified    bool       `json:"verified"`
	ExternalID  string     `json:"external_id,omitempty"`
}

// HasDedupKey reports whether the (maskedName, caseDate, location) triple is usable as a dedup key
func (d CaseDraft) HasDedupKey() bool {
	return d.MaskedName != "" && d.MaskedName != NameUnknown &&
		d.CaseDate != "" &&
		d.Location != "" && d.Location != LocationUnknown
}

// Case is a persisted registry record
type Case struct {
	ID int64 `json:"id"`
	CaseDraft
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RawRecord is one opaque field-set returned by a raw-fetch collaborator
type RawRecord map[string]string

// Get returns the trimmed value for key, or "" when absent
func (r RawRecord) Get(key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r[key])
}
