package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultCommandPrefix         = "!"
	DefaultTickIntervalSeconds   = 60
	DefaultCooldownSeconds       = 2
	DefaultShutdownGraceSeconds  = 10
	DefaultConfirmTimeoutSeconds = 5
	DefaultPageSize              = 100
	DefaultStorageDriver         = "sqlite"
	DefaultSQLitePath            = "./data/bot.db"
	DefaultJSONLPath             = "./data"
	DefaultMetricsListen         = ":9090"
)

// Load reads the TOML file at path. An empty path yields a configuration
// built from defaults and environment variables only.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Scheduler: SchedulerConfig{Enabled: true},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		// [scheduler] enabled defaults to true unless the file says otherwise.
		if !md.IsDefined("scheduler", "enabled") {
			cfg.Scheduler.Enabled = true
		}
	}

	expandEnvVars(cfg)
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// Validate returns every problem found; an empty slice means the config is usable.
func (c *Config) Validate() []error {
	var errs []error

	if c.Discord.Token == "" {
		errs = append(errs, fmt.Errorf("discord.token is required (or set DISCORD_TOKEN)"))
	} else if err := validateDiscordToken(c.Discord.Token); err != nil {
		errs = append(errs, err)
	}

	if strings.TrimSpace(c.Discord.CommandPrefix) == "" {
		errs = append(errs, fmt.Errorf("discord.command_prefix cannot be blank"))
	}

	if len(c.Auth.SuperAdmins) == 0 && len(c.Auth.AdminRoles) == 0 {
		errs = append(errs, fmt.Errorf("auth: at least one of super_admins or admin_roles must be set"))
	}
	for _, id := range c.Auth.SuperAdmins {
		if !isSnowflake(id) {
			errs = append(errs, fmt.Errorf("auth.super_admins contains invalid user id: %q", id))
		}
	}

	if c.Scheduler.TickIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("scheduler.tick_interval_seconds must be >= 1"))
	}
	if c.Scheduler.CooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("scheduler.cooldown_seconds must be >= 0"))
	}
	if c.Purge.ConfirmTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("purge.confirm_timeout_seconds must be >= 1"))
	}
	if c.Purge.PageSize < 2 || c.Purge.PageSize > 100 {
		errs = append(errs, fmt.Errorf("purge.page_size must be between 2 and 100 (got %d)", c.Purge.PageSize))
	}

	switch c.Storage.Driver {
	case "sqlite", "jsonl":
	default:
		errs = append(errs, fmt.Errorf("invalid storage.driver: %s (expected: sqlite, jsonl)", c.Storage.Driver))
	}
	if c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required"))
	} else if err := validatePath(c.Storage.Path, "storage.path"); err != nil {
		errs = append(errs, err)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, fmt.Errorf("metrics.listen is required when metrics are enabled"))
	}

	return errs
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	c.Discord.Token = maskDiscordToken(c.Discord.Token)
	return c
}

func validateDiscordToken(token string) error {
	if strings.HasPrefix(token, "Bot ") {
		return formatValidationError("discord.token", "must not include the \"Bot \" prefix", token)
	}
	if strings.Count(token, ".") != 2 {
		return formatValidationError("discord.token", "has invalid format (expected three dot-separated parts)", token)
	}
	return nil
}

func validatePath(path, fieldName string) error {
	if strings.HasPrefix(path, "~") {
		return nil
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}
	return nil
}

func isSnowflake(id string) bool {
	if len(id) < 5 || len(id) > 20 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func applyDefaults(c *Config) {
	if c.Discord.CommandPrefix == "" {
		c.Discord.CommandPrefix = DefaultCommandPrefix
	}

	if c.Scheduler.TickIntervalSeconds == 0 {
		c.Scheduler.TickIntervalSeconds = DefaultTickIntervalSeconds
	}
	if c.Scheduler.CooldownSeconds == 0 {
		c.Scheduler.CooldownSeconds = DefaultCooldownSeconds
	}
	if c.Scheduler.ShutdownGraceSeconds == 0 {
		c.Scheduler.ShutdownGraceSeconds = DefaultShutdownGraceSeconds
	}

	if c.Purge.ConfirmTimeoutSeconds == 0 {
		c.Purge.ConfirmTimeoutSeconds = DefaultConfirmTimeoutSeconds
	}
	if c.Purge.PageSize == 0 {
		c.Purge.PageSize = DefaultPageSize
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Storage.Path == "" {
		if c.Storage.Driver == "jsonl" {
			c.Storage.Path = DefaultJSONLPath
		} else {
			c.Storage.Path = DefaultSQLitePath
		}
	}
	c.Storage.Path = expandHome(c.Storage.Path)

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultMetricsListen
	}
}

// applyEnvOverrides honours the variables the bot has always been configured with.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("BOT_PREFIX"); v != "" {
		c.Discord.CommandPrefix = v
	}
	if v := os.Getenv("SUPER_ADMIN"); v != "" {
		c.Auth.SuperAdmins = splitList(v)
	}
	if v := os.Getenv("ADMIN_ROLES"); v != "" {
		c.Auth.AdminRoles = splitList(v)
	}
	if v := os.Getenv("ALLOWED_CHANNELS"); v != "" {
		c.Commands.AllowedChannels = splitList(v)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func expandEnvVars(c *Config) {
	c.Discord.Token = expandEnv(c.Discord.Token)
	c.Storage.Path = expandEnv(c.Storage.Path)
	c.Logging.Output = expandEnv(c.Logging.Output)
	c.Metrics.Listen = expandEnv(c.Metrics.Listen)
}

// expandEnv expands a value of the form ${VAR} or ${VAR:default}.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if key, defaultVal, ok := strings.Cut(content, ":"); ok {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultVal
	}

	return os.Getenv(content)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
