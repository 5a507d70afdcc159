package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gwi.com/chatsync/internal/config"
	"gwi.com/chatsync/internal/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "chatsync",
	Short: "Chat client with optimistic message reconciliation",
	Long: `chatsync talks to a GraphQL chat backend (or a local SQLite one) and keeps
a consistent transcript while replies are generated: messages show up at once,
are confirmed by the live feed, and never appear twice.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the selected command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML config file (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
}

// loadConfig applies the global flags on top of the environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := os.Setenv("CONFIG_FILE", path); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	config.AppConfig = cfg
	return cfg, nil
}

// setupLogging sends logs to LOG_FILE, or to fallbackSink when LOG_FILE is
// unset. An empty sink means stderr.
func setupLogging(cfg config.Config, fallbackSink string) error {
	sink := cfg.LogFile
	if sink == "" {
		sink = fallbackSink
	}
	return logger.Init(cfg.LogLevel, sink)
}
