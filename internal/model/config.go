package model

import "time"

// Config is the full runtime configuration
type Config struct {
	Match    MatchConfig    `yaml:"match" mapstructure:"match"`
	HTTP     HTTPConfig     `yaml:"http" mapstructure:"http"`
	Sync     SyncConfig     `yaml:"sync" mapstructure:"sync"`
	Judicial JudicialConfig `yaml:"judicial" mapstructure:"judicial"`
	News     NewsConfig     `yaml:"news" mapstructure:"news"`
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Lock     LockConfig     `yaml:"lock" mapstructure:"lock"`
	Notify   NotifyConfig   `yaml:"notify" mapstructure:"notify"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
}

// MatchConfig holds the similarity policy thresholds
type MatchConfig struct {
	MinScore int `yaml:"min_score" mapstructure:"min_score"` // Candidates below this are not matches
	Exact    int `yaml:"exact" mapstructure:"exact"`
	High     int `yaml:"high" mapstructure:"high"`
	Medium   int `yaml:"medium" mapstructure:"medium"`
}

// HTTPConfig controls outbound fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// SyncConfig controls the ingestion orchestrator
type SyncConfig struct {
	Concurrency  int                      `yaml:"concurrency" mapstructure:"concurrency"`
	BatchTimeout time.Duration            `yaml:"batch_timeout" mapstructure:"batch_timeout"`
	Sources      []string                 `yaml:"sources" mapstructure:"sources"`
	Pacing       map[string]time.Duration `yaml:"pacing" mapstructure:"pacing"` // Inter-request delay per source
	MaxPages     int                      `yaml:"max_pages" mapstructure:"max_pages"`
}

// JudicialConfig configures the judicial open-data API
type JudicialConfig struct {
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	User         string        `yaml:"user,omitempty" mapstructure:"user"`
	Password     string        `yaml:"password,omitempty" mapstructure:"password"`
	TokenTTL     time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`
	WindowStart  int           `yaml:"window_start" mapstructure:"window_start"` // Hour, inclusive
	WindowEnd    int           `yaml:"window_end" mapstructure:"window_end"`     // Hour, exclusive
	TimeZone     string        `yaml:"time_zone" mapstructure:"time_zone"`
	MaxDocuments int           `yaml:"max_documents" mapstructure:"max_documents"`
}

// NewsConfig configures news feed polling
type NewsConfig struct {
	Feeds    []string `yaml:"feeds" mapstructure:"feeds"`
	Keywords []string `yaml:"keywords" mapstructure:"keywords"`
	MaxItems int      `yaml:"max_items" mapstructure:"max_items"`
}

// LLMConfig configures AI name extraction
type LLMConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"` // "", "openai", "ollama"
	Model         string `yaml:"model" mapstructure:"model"`
	APIKey        string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL       string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout       int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	MinConfidence int    `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// StoreConfig selects the registry backend
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "memory", "postgres"
	DatabaseURL string `yaml:"database_url,omitempty" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	SnapshotDir string `yaml:"snapshot_dir,omitempty" mapstructure:"snapshot_dir"` // memory driver persistence
}

// LockConfig selects the per-dedup-key lock backend
type LockConfig struct {
	Driver   string        `yaml:"driver" mapstructure:"driver"` // "memory", "redis"
	RedisURL string        `yaml:"redis_url,omitempty" mapstructure:"redis_url"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// NotifyPolicy decides how a failed notification affects report submission
type NotifyPolicy string

const (
	NotifyBestEffort NotifyPolicy = "best_effort" // Report stored, failure reported alongside success
	NotifyRequired   NotifyPolicy = "required"    // Report stored, failure returned as an error for retry
)

// NotifyConfig configures report notifications
type NotifyConfig struct {
	Driver     string       `yaml:"driver" mapstructure:"driver"` // "none", "smtp", "webhook"
	Policy     NotifyPolicy `yaml:"policy" mapstructure:"policy"`
	Recipients []string     `yaml:"recipients" mapstructure:"recipients"`
	From       string       `yaml:"from" mapstructure:"from"`
	SMTPHost   string       `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort   int          `yaml:"smtp_port" mapstructure:"smtp_port"`
	SMTPUser   string       `yaml:"smtp_user,omitempty" mapstructure:"smtp_user"`
	SMTPPass   string       `yaml:"smtp_pass,omitempty" mapstructure:"smtp_pass"`
	WebhookURL string       `yaml:"webhook_url,omitempty" mapstructure:"webhook_url"`
}

// CacheConfig configures result and page caches
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	SearchTTL time.Duration `yaml:"search_ttl" mapstructure:"search_ttl"`
	PageTTL   time.Duration `yaml:"page_ttl" mapstructure:"page_ttl"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	RedisURL  string        `yaml:"redis_url,omitempty" mapstructure:"redis_url"` // Shared search cache
}

// LogConfig configures the structured logger
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "console", "json"
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" mapstructure:"addr"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Match: MatchConfig{
			MinScore: 50,
			Exact:    95,
			High:     80,
			Medium:   60,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "kidregistry/0.1 (+https://github.com/ppiankov/kidregistry)",
			MaxBodyBytes:  5_000_000,
			MaxRetries:    2,
			RespectRobots: true,
		},
		Sync: SyncConfig{
			Concurrency:  3,
			BatchTimeout: 30 * time.Minute,
			Sources:      []string{"crc", "ncwis", "ece", "county", "kindyinfo", "judicial", "news", "community"},
			Pacing: map[string]time.Duration{
				"crc":       time.Second,
				"ncwis":     time.Second,
				"ece":       time.Second,
				"county":    time.Second,
				"kindyinfo": time.Second,
				"judicial":  500 * time.Millisecond,
				"news":      time.Second,
			},
			MaxPages: 20,
		},
		Judicial: JudicialConfig{
			BaseURL:      "https://data.judicial.gov.tw/jdg/api",
			TokenTTL:     5*time.Hour + 30*time.Minute,
			WindowStart:  0,
			WindowEnd:    6,
			TimeZone:     "Asia/Taipei",
			MaxDocuments: 500,
		},
		News: NewsConfig{
			Feeds: []string{
				"https://news.google.com/rss/search?q=%E8%99%90%E7%AB%A5&hl=zh-TW&gl=TW&ceid=TW:zh-Hant",
				"https://news.google.com/rss/search?q=%E5%B9%BC%E5%85%92%E5%9C%92+%E4%B8%8D%E7%95%B6%E7%AE%A1%E6%95%99&hl=zh-TW&gl=TW&ceid=TW:zh-Hant",
				"https://news.google.com/rss/search?q=%E4%BF%9D%E6%AF%8D+%E5%88%A4%E6%B1%BA&hl=zh-TW&gl=TW&ceid=TW:zh-Hant",
			},
			MaxItems: 50,
		},
		LLM: LLMConfig{
			Timeout:       30,
			MaxTokens:     1000,
			MinConfidence: 60,
		},
		Store: StoreConfig{
			Driver:   "memory",
			MaxConns: 10,
		},
		Lock: LockConfig{
			Driver: "memory",
			TTL:    30 * time.Second,
		},
		Notify: NotifyConfig{
			Driver:   "none",
			Policy:   NotifyBestEffort,
			From:     "notify@kidregistry.local",
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
		},
		Cache: CacheConfig{
			Enabled:   true,
			SearchTTL: time.Minute,
			PageTTL:   6 * time.Hour,
			Dir:       ".kidregistry-cache",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
