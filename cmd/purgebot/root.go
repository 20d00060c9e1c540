package main

import (
	"fmt"
	"os"

	"github.com/aatumaykin/purgebot/internal/config"
	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/storage"
	"github.com/spf13/cobra"
)

const (
	defaultConfigPath = "./config.toml"
	defaultEnvPath    = "./.env"
)

var (
	configPath string
	envPath    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "purgebot",
	Short: "purgebot - scheduled and on-demand Discord channel purging",
	Long: `purgebot deletes messages from Discord channels on per-channel CRON
schedules and purges a single user's messages on demand after an
interactive confirmation.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (default ./config.toml when present)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", defaultEnvPath, "optional .env file loaded before the config")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cronCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(adminCmd)
}

// resolveConfigPath returns the explicit --config value, or the default
// file when it exists, or "" for defaults plus environment.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func loadConfig() (*config.Config, error) {
	if envPath != "" {
		if err := config.LoadEnvOptional(envPath); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// openStore loads the config and opens storage with a quiet logger on
// stderr, for CLI subcommands that work offline.
func openStore(cmd *cobra.Command) (storage.Repository, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(cfg.Storage, logger.NewWithWriter(cmd.ErrOrStderr(), "warn"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, cfg, nil
}
