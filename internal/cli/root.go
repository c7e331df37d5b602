// Package cli is the kidregistry command line
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/model"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile string
	envFile string
	verbose bool

	// cfg is the effective configuration, loaded before any subcommand runs
	cfg *model.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kidregistry",
	Short: "kidregistry - child-safety violation registry",
	Long: `kidregistry aggregates public records of child-safety violations
(government sanction lists, court judgments, news reports and reviewed
community reports) into one deduplicated registry and answers name and
area lookups against it.

Results are reference material, not a determination about any person.
A search with no matches does not mean a person is safe.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = loaded
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logger.Init(logger.Options{Level: level, Format: cfg.Log.Format, Service: "kidregistry"})
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kidregistry %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.kidregistry/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().String("store", "", "store driver (memory, postgres)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads .env, the config file and KIDREGISTRY_* variables
func initConfig() {
	if err := loadDotenv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", envFile, err)
	}
	if err := setupViper(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
	} else if verbose && viper.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadDotenv loads path without overriding variables already set; a missing file is fine
func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setupViper points v at the config file and environment. A missing default
// config file is not an error; a missing explicit one is.
func setupViper(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".kidregistry"))
		}
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("KIDREGISTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && file == "" && errors.As(err, &notFound) {
		return nil
	}
	return err
}
