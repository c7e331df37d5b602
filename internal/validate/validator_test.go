package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/model"
)

func validDraft() model.CaseDraft {
	return model.CaseDraft{
		MaskedName: "王○明",
		Role:       model.RoleNanny,
		RiskTags:   model.RiskTags{model.RiskAbuse},
		Location:   "台北市",
		CaseDate:   "2024-01-15",
		SourceType: model.SourceGovernmentNotice,
		SourceName: "衛福部社家署",
		SourceLink: "https://crc.sfaa.gov.tw/ChildYoungLaw/Sanction#abc",
		Verified:   true,
	}
}

func TestDraftValid(t *testing.T) {
	v := New(nil)
	require.NoError(t, v.Draft(validDraft()))
}

func TestDraftRejects(t *testing.T) {
	v := New(nil)
	tests := []struct {
		name  string
		mut   func(*model.CaseDraft)
		field string
	}{
		{"empty masked name", func(d *model.CaseDraft) { d.MaskedName = "" }, "masked_name"},
		{"unknown role", func(d *model.CaseDraft) { d.Role = "babysitter" }, "role"},
		{"no risk tags", func(d *model.CaseDraft) { d.RiskTags = nil }, "risk_tags"},
		{"unknown risk tag", func(d *model.CaseDraft) { d.RiskTags = model.RiskTags{"arson"} }, "risk_tags[0]"},
		{"unknown source type", func(d *model.CaseDraft) { d.SourceType = "blog" }, "source_type"},
		{"verified media report", func(d *model.CaseDraft) {
			d.SourceType = model.SourceMediaReport
			d.SourceLink = "https://news.ltn.com.tw/1"
		}, "verified"},
		{"verified government type on media link", func(d *model.CaseDraft) {
			d.SourceLink = "https://udn.com/news/1"
		}, "verified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mut(&d)
			err := v.Draft(d)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindInvalid))
			var e *errs.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.field, e.Op)
		})
	}
}

func TestDraftUnverifiedMediaAllowed(t *testing.T) {
	d := validDraft()
	d.SourceType = model.SourceMediaReport
	d.SourceLink = "https://news.ltn.com.tw/1"
	d.Verified = false
	assert.NoError(t, New(nil).Draft(d))
}

func TestSubmission(t *testing.T) {
	v := New(nil)
	ok := model.ReportSubmission{
		SuspectName: "王小明",
		Description: "在安親班多次體罰學童並辱罵",
		Attachments: []string{"https://example.org/a.jpg"},
		ReporterIP:  "203.0.113.5",
	}
	require.NoError(t, v.Submission(ok))

	tests := []struct {
		name string
		mut  func(*model.ReportSubmission)
	}{
		{"blank name", func(s *model.ReportSubmission) { s.SuspectName = "   " }},
		{"short description", func(s *model.ReportSubmission) { s.Description = "太短" }},
		{"long name", func(s *model.ReportSubmission) { s.SuspectName = strings.Repeat("王", 101) }},
		{"bad attachment", func(s *model.ReportSubmission) { s.Attachments = []string{"not a url"} }},
		{"bad ip", func(s *model.ReportSubmission) { s.ReporterIP = "999.1.1.1" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ok
			tt.mut(&s)
			err := v.Submission(s)
			require.Error(t, err)
			assert.Equal(t, errs.KindInvalid, errs.KindOf(err))
		})
	}
}
