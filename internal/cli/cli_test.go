package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/search"
)

func init() { logger.Nop() }

func TestLoadConfigDefaults(t *testing.T) {
	c, err := loadConfig(viper.New())
	require.NoError(t, err)
	def := model.DefaultConfig()
	assert.Equal(t, def.Match, c.Match)
	assert.Equal(t, def.HTTP, c.HTTP)
	assert.Equal(t, def.Sync, c.Sync)
	assert.Equal(t, def.Judicial, c.Judicial)
	assert.Equal(t, def.Store, c.Store)
	assert.Nil(t, c.News.Keywords)
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
match:
  min_score: 70
sync:
  concurrency: 5
  batch_timeout: 10m
  pacing:
    crc: 2s
notify:
  policy: required
`), 0o600))

	t.Setenv("KIDREGISTRY_SYNC_CONCURRENCY", "7")
	t.Setenv("KIDREGISTRY_JUDICIAL_PASSWORD", "s3cret")
	t.Setenv("KIDREGISTRY_STORE_DRIVER", "postgres")

	v := viper.New()
	require.NoError(t, setupViper(v, file))
	c, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 70, c.Match.MinScore)
	assert.Equal(t, 95, c.Match.Exact, "unset keys keep their defaults")
	assert.Equal(t, 7, c.Sync.Concurrency, "environment beats the file")
	assert.Equal(t, 10*time.Minute, c.Sync.BatchTimeout)
	assert.Equal(t, 2*time.Second, c.Sync.Pacing["crc"])
	assert.Equal(t, 500*time.Millisecond, c.Sync.Pacing["judicial"])
	assert.Equal(t, model.NotifyRequired, c.Notify.Policy)
	assert.Equal(t, "s3cret", c.Judicial.Password)
	assert.Equal(t, "postgres", c.Store.Driver)
}

func TestLoadConfigRejectsBadThresholds(t *testing.T) {
	v := viper.New()
	v.Set("match.high", 99)
	_, err := loadConfig(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thresholds")

	v = viper.New()
	v.Set("notify.policy", "sometimes")
	_, err = loadConfig(v)
	assert.Error(t, err)
}

func TestSetupViperMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	assert.NoError(t, setupViper(viper.New(), ""), "no default config file is fine")
	assert.Error(t, setupViper(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestLoadDotenv(t *testing.T) {
	assert.NoError(t, loadDotenv(filepath.Join(t.TempDir(), ".env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KIDREGISTRY_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("KIDREGISTRY_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("KIDREGISTRY_TEST_DOTENV"))
	require.NoError(t, loadDotenv(path))
	assert.Equal(t, "from-file", os.Getenv("KIDREGISTRY_TEST_DOTENV"))
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))
	assert.Error(t, writeDefaultConfig(path), "never overwrites")

	v := viper.New()
	require.NoError(t, setupViper(v, path))
	c, err := loadConfig(v)
	require.NoError(t, err)
	def := model.DefaultConfig()
	assert.Equal(t, def.Match, c.Match)
	assert.Equal(t, def.Sync.Sources, c.Sync.Sources)
	assert.Equal(t, def.Sync.Pacing, c.Sync.Pacing)
	assert.Equal(t, def.Judicial.TokenTTL, c.Judicial.TokenTTL)
	assert.Equal(t, def.News.Feeds, c.News.Feeds)
	assert.Equal(t, def.Notify.Policy, c.Notify.Policy)
}

func TestRedact(t *testing.T) {
	c := model.DefaultConfig()
	c.LLM.APIKey = "sk-123"
	redact(c)
	assert.Equal(t, "********", c.LLM.APIKey)
	assert.Equal(t, "", c.Judicial.Password, "empty values stay empty")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, model.BatchSummary{
		RunID: "r1",
		Sources: []model.SourceSummary{
			{Source: "crc", Synced: 3, Counts: model.IngestCounts{Added: 2, Skipped: 1}},
			{Source: "judicial", Err: "judicial: outside service window", ErrKind: "fetch_unavailable"},
		},
		Synced: 3,
		Counts: model.IngestCounts{Added: 2, Skipped: 1},
		Failed: true,
	})
	out := buf.String()
	assert.Contains(t, out, "fetch_unavailable")
	assert.Contains(t, out, "added 2, skipped 1, errors 1")
	assert.Contains(t, out, "[FAILED]")
}

func TestPrintSearchNotFound(t *testing.T) {
	var buf bytes.Buffer
	printSearch(&buf, model.SearchResponse{Disclaimer: search.DisclaimerNotFound})
	assert.Equal(t, search.DisclaimerNotFound+"\n", buf.String())
}

func TestPrintSources(t *testing.T) {
	var buf bytes.Buffer
	printSources(&buf, []string{"crc", "news"}, []model.SyncLog{
		{SourceName: "crc", Status: model.SyncSuccess, RecordCount: 12, StartedAt: time.Now()},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "gov")
	assert.Contains(t, lines[1], "12")
	assert.Contains(t, lines[2], "never")
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, Execute(), out.String())
	return out.String()
}

func TestReportCommands(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KIDREGISTRY_STORE_SNAPSHOT_DIR", t.TempDir())

	out := execute(t, "report", "submit", "--name", "李大同", "--location", "高雄市",
		"--description", "安親班老師多次體罰學生，家長已報警")
	assert.Contains(t, out, "Report #1 stored")

	out = execute(t, "report", "review", "1", "--status", "reviewing")
	assert.Contains(t, out, "審核中")

	out = execute(t, "report", "list")
	assert.Contains(t, out, "李大同")

	xlsx := filepath.Join(t.TempDir(), "out.xlsx")
	out = execute(t, "export", "--out", xlsx)
	assert.Contains(t, out, "Exported 1 reports")
	assert.FileExists(t, xlsx)

	out = execute(t, "search", "李大同")
	assert.Contains(t, out, search.DisclaimerNotFound, "reports are not cases until approved and synced")
}
