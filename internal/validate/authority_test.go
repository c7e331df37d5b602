package validate

import "testing"

func TestClassify(t *testing.T) {
	c := NewAuthorityClassifier(DefaultAuthorityConfig())
	tests := []struct {
		url  string
		want Authority
	}{
		{"https://judgment.judicial.gov.tw/FJUD/data.aspx?jid=TPDM,112", AuthorityJudicial},
		{"https://crc.sfaa.gov.tw/ChildYoungLaw/Sanction#abc", AuthorityGovernment},
		{"https://www.ece.moe.edu.tw/ch/filelist/", AuthorityGovernment},
		{"https://www.kindyinfo.com/penalty", AuthorityGovernment},
		{"https://news.ltn.com.tw/news/society/1", AuthorityMedia},
		{"https://tw.news.yahoo.com/abc", AuthorityMedia},
		{"https://www.ptt.cc/bbs/Baby/M.1.html", AuthorityCommunity},
		{"https://mirror.example.org/FJUD/data.aspx", AuthorityJudicial},
		{"https://example.org/page", AuthorityUnknown},
		{"community-report-12", AuthorityUnknown},
		{"", AuthorityUnknown},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.url); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestCanVerify(t *testing.T) {
	c := NewAuthorityClassifier(DefaultAuthorityConfig())
	if !c.CanVerify("https://crc.sfaa.gov.tw/x") {
		t.Error("government link should be verifiable")
	}
	if c.CanVerify("https://udn.com/news/story/1") {
		t.Error("media link must not be verifiable")
	}
	if c.CanVerify("https://www.facebook.com/groups/1") {
		t.Error("community link must not be verifiable")
	}
}

func TestInvalidPathPatternSkipped(t *testing.T) {
	cfg := DefaultAuthorityConfig()
	cfg.PathPatterns = map[string]Authority{`(`: AuthorityJudicial}
	c := NewAuthorityClassifier(cfg)
	if got := c.Classify("https://example.org/(x"); got != AuthorityUnknown {
		t.Errorf("got %q", got)
	}
}
