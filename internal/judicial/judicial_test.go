package judicial

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/extract/adapters"
	"github.com/ppiankov/kidregistry/internal/model"
)

const testJID = "TPDM,112,侵訴,5,20240110,1"

type fakeAPI struct {
	auths      atomic.Int32
	rejectOnce atomic.Bool
	docs       map[string]Document
	missing    []string // listed but not retrievable
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/Auth", func(w http.ResponseWriter, r *http.Request) {
		n := f.auths.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["user"] != "u" || body["password"] != "p" {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "帳號或密碼錯誤"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"Token": "tok-" + string(rune('0'+n))})
	})
	mux.HandleFunc("/JList", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.rejectOnce.CompareAndSwap(true, false) {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
			return
		}
		assert.NotEmpty(t, body["token"])
		list := make([]string, 0, len(f.docs))
		for jid := range f.docs {
			list = append(list, jid)
		}
		list = append(list, f.missing...)
		_ = json.NewEncoder(w).Encode([]ChangeSet{{Date: "2024-01-10", List: list}})
	})
	mux.HandleFunc("/JDoc", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		doc, ok := f.docs[body["j"]]
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "查無資料"})
			return
		}
		_ = json.NewEncoder(w).Encode(doc)
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(model.JudicialConfig{BaseURL: srv.URL, User: "u", Password: "p"}, 5*time.Second)
}

func alwaysOpen() Window {
	return Window{Start: 0, End: 0, Loc: time.UTC}
}

func TestClient_TokenCached(t *testing.T) {
	api := &fakeAPI{docs: map[string]Document{}}
	c := newTestClient(t, api)

	tok1, err := c.Token(context.Background())
	require.NoError(t, err)
	tok2, err := c.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tok1, tok2)
	assert.EqualValues(t, 1, api.auths.Load())
}

func TestClient_BadCredentials(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	c := NewClient(model.JudicialConfig{BaseURL: srv.URL, User: "u", Password: "wrong"}, time.Second)
	_, err := c.Token(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "帳號或密碼錯誤", apiErr.Message)
}

func TestClient_NoCredentials(t *testing.T) {
	c := NewClient(model.JudicialConfig{BaseURL: "http://127.0.0.1:1"}, time.Second)
	assert.False(t, c.Configured())
	_, err := c.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestClient_RefreshesRejectedToken(t *testing.T) {
	api := &fakeAPI{docs: map[string]Document{testJID: {}}}
	c := newTestClient(t, api)

	_, err := c.Token(context.Background())
	require.NoError(t, err)
	api.rejectOnce.Store(true)

	days, err := c.JList(context.Background())
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.EqualValues(t, 2, api.auths.Load())
}

func TestClient_JDocError(t *testing.T) {
	c := newTestClient(t, &fakeAPI{docs: map[string]Document{}})
	_, err := c.JDoc(context.Background(), "missing")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "JDoc", apiErr.Op)
}

func TestCollector_EmitsOneRecordPerDefendant(t *testing.T) {
	api := &fakeAPI{docs: map[string]Document{
		testJID: {
			JID:   testJID,
			Date:  "20240110",
			Title: "妨害性自主罪",
			Full:  FullText{Type: "text", Content: "被告 王小明 與 被告 李大華 對未成年人為猥褻行為"},
		},
		"TPDV,112,訴,9,20240110,1": {
			Title: "給付工程款",
			Full:  FullText{Content: "原告 某公司 被告 陳建國 給付工程款"},
		},
	}}
	collector := NewCollector(newTestClient(t, api), alwaysOpen(), 0)

	records, failed, err := collector.Collect(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Empty(t, failed)
	require.Len(t, records, 2)

	assert.Equal(t, "王小明", records[0].Get(adapters.JudicialDefendant))
	assert.Equal(t, "李大華", records[1].Get(adapters.JudicialDefendant))
	assert.Equal(t, "2", records[0].Get(adapters.JudicialDefendants))
	assert.Equal(t, testJID, records[0].Get(adapters.JudicialJID))
}

func TestCollector_FailedDocumentDoesNotAbort(t *testing.T) {
	api := &fakeAPI{
		docs:    map[string]Document{testJID: {Title: "傷害", Full: FullText{Content: "被告 王小明 傷害幼童"}}},
		missing: []string{"GONE,1,x,1,20240101,1"},
	}
	collector := NewCollector(newTestClient(t, api), alwaysOpen(), 0)

	records, failed, err := collector.Collect(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	require.Len(t, failed, 1)
	assert.True(t, errs.Is(failed[0], errs.KindMalformedRecord))
}

func TestCollector_ClosedWindow(t *testing.T) {
	orig := nowFunc
	nowFunc = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { nowFunc = orig })

	api := &fakeAPI{docs: map[string]Document{}}
	w := Window{Start: 0, End: 6, Loc: time.UTC}
	collector := NewCollector(newTestClient(t, api), w, 0)

	_, _, err := collector.Collect(context.Background(), nil, false)
	assert.True(t, errs.Is(err, errs.KindFetchUnavailable))
	var closed *ClosedError
	require.ErrorAs(t, err, &closed)
	assert.Equal(t, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), closed.NextOpen)
	assert.Zero(t, api.auths.Load(), "no request outside the window")

	_, _, err = collector.Collect(context.Background(), nil, true)
	assert.NoError(t, err, "force bypasses the window")
}

func TestWindow(t *testing.T) {
	taipei := time.FixedZone("CST", 8*3600)
	w := Window{Start: 0, End: 6, Loc: taipei}

	tests := []struct {
		name string
		at   time.Time
		open bool
	}{
		{"midnight", time.Date(2024, 1, 10, 0, 0, 0, 0, taipei), true},
		{"05:59", time.Date(2024, 1, 10, 5, 59, 0, 0, taipei), true},
		{"06:00", time.Date(2024, 1, 10, 6, 0, 0, 0, taipei), false},
		{"23:00", time.Date(2024, 1, 10, 23, 0, 0, 0, taipei), false},
		{"UTC 17:00 is 01:00 Taipei", time.Date(2024, 1, 10, 17, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, w.Open(tt.at))
		})
	}

	wrap := Window{Start: 22, End: 2, Loc: time.UTC}
	assert.True(t, wrap.Open(time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC)))
	assert.True(t, wrap.Open(time.Date(2024, 1, 10, 1, 0, 0, 0, time.UTC)))
	assert.False(t, wrap.Open(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)))
}

func TestNewWindow_Defaults(t *testing.T) {
	w := NewWindow(model.JudicialConfig{WindowStart: 0, WindowEnd: 6, TimeZone: "Nowhere/Invalid"})
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, w.Loc).Zone()
	assert.Equal(t, 8*3600, offset)
}

func TestDefendants(t *testing.T) {
	content := "被 告 王小明 男\n被告人 李○華\n被告 王小明\n被告 甲"
	assert.Equal(t, []string{"王小明", "李○華"}, Defendants(content))
	assert.Empty(t, Defendants("本件無被告資料"))
}

func TestIsChildRelated(t *testing.T) {
	assert.True(t, IsChildRelated("妨害性自主", ""))
	assert.True(t, IsChildRelated("", "被害人為未成年"))
	assert.False(t, IsChildRelated("給付工程款", "返還借款"))
}

func TestParseJID(t *testing.T) {
	j, ok := ParseJID(testJID)
	require.True(t, ok)
	assert.Equal(t, "TPDM", j.Court)
	assert.Equal(t, "20240110", j.Date)

	_, ok = ParseJID("bad,id")
	assert.False(t, ok)
}
