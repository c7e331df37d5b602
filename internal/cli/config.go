package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/kidregistry/internal/model"
)

// secretKeys are omitted from the marshalled defaults, so they are bound to
// the environment explicitly
var secretKeys = []string{
	"judicial.user",
	"judicial.password",
	"llm.api_key",
	"llm.base_url",
	"store.database_url",
	"store.snapshot_dir",
	"lock.redis_url",
	"cache.redis_url",
	"notify.smtp_user",
	"notify.smtp_pass",
	"notify.webhook_url",
	"http.http_proxy",
	"http.https_proxy",
	"metrics.addr",
}

// loadConfig layers defaults, config file, environment and bound flags
func loadConfig(v *viper.Viper) (*model.Config, error) {
	defaults := model.DefaultConfig()
	raw, err := yaml.Marshal(defaults)
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)
	for _, key := range secretKeys {
		_ = v.BindEnv(key)
	}

	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == "ollama" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := val.(type) {
		case map[string]any:
			setDefaults(v, key, x)
			continue
		case []any:
			// an empty default would decode as a non-nil slice
			if len(x) == 0 {
				_ = v.BindEnv(key)
				continue
			}
		}
		v.SetDefault(key, val)
	}
}

func validateConfig(c *model.Config) error {
	m := c.Match
	if m.MinScore < 0 || m.Exact > 100 || m.Medium > m.High || m.High > m.Exact {
		return fmt.Errorf("match thresholds must satisfy 0 <= medium <= high <= exact <= 100 (got medium=%d high=%d exact=%d min=%d)",
			m.Medium, m.High, m.Exact, m.MinScore)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1")
	}
	if c.Judicial.WindowStart < 0 || c.Judicial.WindowStart > 23 || c.Judicial.WindowEnd < 0 || c.Judicial.WindowEnd > 24 {
		return fmt.Errorf("judicial window hours out of range: %d-%d", c.Judicial.WindowStart, c.Judicial.WindowEnd)
	}
	switch c.Notify.Policy {
	case model.NotifyBestEffort, model.NotifyRequired:
	default:
		return fmt.Errorf("notify.policy must be %q or %q", model.NotifyBestEffort, model.NotifyRequired)
	}
	return nil
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage kidregistry configuration",
	Long: `Manage kidregistry configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (KIDREGISTRY_*, e.g. KIDREGISTRY_STORE_DRIVER)
3. .env file in the working directory
4. Config file (~/.kidregistry/config.yaml)
5. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if f := viper.ConfigFileUsed(); f != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", f)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults and environment)\n\n")
		}

		shown := *cfg
		redact(&shown)
		yamlData, err := yaml.Marshal(&shown)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(yamlData)
		return err
	},
}

// redact masks credentials before display
func redact(c *model.Config) {
	hide := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	hide(&c.Judicial.Password)
	hide(&c.LLM.APIKey)
	hide(&c.Notify.SMTPPass)
	hide(&c.Store.DatabaseURL)
	hide(&c.Lock.RedisURL)
	hide(&c.Cache.RedisURL)
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  `Create ~/.kidregistry/config.yaml (or --config) holding every option at its default value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("error finding home directory: %w", err)
			}
			path = filepath.Join(home, ".kidregistry", "config.yaml")
		}
		if err := writeDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created default configuration: %s\n", path)
		fmt.Fprintf(cmd.OutOrStdout(), "\nTo view the effective configuration:\n  kidregistry config show\n")
		return nil
	},
}

const configHeader = `# kidregistry configuration
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (KIDREGISTRY_*)
#   3. .env file
#   4. This config file
#   5. Built-in defaults
#
# Keep credentials out of this file; set them in the environment instead:
#   KIDREGISTRY_JUDICIAL_USER / KIDREGISTRY_JUDICIAL_PASSWORD
#   KIDREGISTRY_STORE_DATABASE_URL=postgres://...
#   KIDREGISTRY_NOTIFY_SMTP_PASS=...
#   OPENAI_API_KEY=sk-...

`

// writeDefaultConfig refuses to overwrite an existing file
func writeDefaultConfig(path string) (err error) {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'kidregistry config show' to view it, or delete it first to recreate", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()
	if _, err := f.WriteString(configHeader); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	if _, err := f.Write(yamlData); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

// sortedKeys is used for stable table output
func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
