package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/aatumaykin/purgebot/internal/app"
	"github.com/aatumaykin/purgebot/internal/logger"
	"github.com/aatumaykin/purgebot/internal/version"
	"github.com/spf13/cobra"
)

var serveLogLevel string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord and run the bot",
	Long: `Connect to Discord, start the purge scheduler and handle commands until
SIGINT or SIGTERM. Running purges get the configured shutdown grace period
to finish.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "", "override logging.level")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		out := cmd.ErrOrStderr()
		fmt.Fprintln(out, "Configuration validation failed:")
		for _, e := range errs {
			fmt.Fprintf(out, "  - %v\n", e)
		}
		return errors.New("invalid configuration")
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetDefault(log)

	log.Info("starting purgebot",
		logger.Field{Key: "version", Value: version.Version},
		logger.Field{Key: "git_commit", Value: version.GitCommit},
		logger.Field{Key: "config", Value: resolveConfigPath()},
		logger.Field{Key: "storage_driver", Value: cfg.Storage.Driver},
		logger.Field{Key: "scheduler_enabled", Value: cfg.Scheduler.Enabled},
		logger.Field{Key: "metrics_enabled", Value: cfg.Metrics.Enabled})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, log).Run(ctx); err != nil {
		log.Error("purgebot stopped with error", err)
		return err
	}
	return nil
}
