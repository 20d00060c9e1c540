// Package config provides configuration loading and validation for purgebot.
// It reads a TOML file, expands ${VAR} / ${VAR:default} references, applies
// defaults and lets the classic bot environment variables override the file.
//
// Configuration structure:
//   - [discord]: bot token and command prefix
//   - [auth]: super admin user IDs and admin role names
//   - [commands]: channels where commands are accepted
//   - [scheduler]: tick interval, dispatch cooldown and shutdown grace
//   - [purge]: confirmation timeout and history page size
//   - [storage]: persistence driver (sqlite, jsonl) and path
//   - [logging]: level, format and output
//   - [metrics]: Prometheus endpoint
//
// Environment overrides:
// DISCORD_TOKEN, BOT_PREFIX, SUPER_ADMIN, ADMIN_ROLES and ALLOWED_CHANNELS
// take precedence over the file. List variables are comma separated.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Discord   DiscordConfig   `toml:"discord" yaml:"discord"`
	Auth      AuthConfig      `toml:"auth" yaml:"auth"`
	Commands  CommandsConfig  `toml:"commands" yaml:"commands"`
	Scheduler SchedulerConfig `toml:"scheduler" yaml:"scheduler"`
	Purge     PurgeConfig     `toml:"purge" yaml:"purge"`
	Storage   StorageConfig   `toml:"storage" yaml:"storage"`
	Logging   LoggingConfig   `toml:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
}

// DiscordConfig holds the bot credentials.
type DiscordConfig struct {
	Token         string `toml:"token" yaml:"token"`
	CommandPrefix string `toml:"command_prefix" yaml:"command_prefix"`
}

// AuthConfig lists operators that bypass the admin table.
type AuthConfig struct {
	SuperAdmins []string `toml:"super_admins" yaml:"super_admins"`
	AdminRoles  []string `toml:"admin_roles" yaml:"admin_roles"`
}

// CommandsConfig restricts where commands are accepted. Empty means everywhere.
type CommandsConfig struct {
	AllowedChannels []string `toml:"allowed_channels" yaml:"allowed_channels"`
}

// SchedulerConfig configures the purge polling loop.
type SchedulerConfig struct {
	Enabled              bool `toml:"enabled" yaml:"enabled"`
	TickIntervalSeconds  int  `toml:"tick_interval_seconds" yaml:"tick_interval_seconds"`
	CooldownSeconds      int  `toml:"cooldown_seconds" yaml:"cooldown_seconds"`
	ShutdownGraceSeconds int  `toml:"shutdown_grace_seconds" yaml:"shutdown_grace_seconds"`
}

// TickInterval returns the tick interval as a duration.
func (c SchedulerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// Cooldown returns the in-flight release delay.
func (c SchedulerConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// ShutdownGrace returns how long shutdown waits for running purges.
func (c SchedulerConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

// PurgeConfig configures manual purges.
type PurgeConfig struct {
	ConfirmTimeoutSeconds int `toml:"confirm_timeout_seconds" yaml:"confirm_timeout_seconds"`
	PageSize              int `toml:"page_size" yaml:"page_size"`
}

// ConfirmTimeout returns the confirmation prompt lifetime.
func (c PurgeConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSeconds) * time.Second
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `toml:"driver" yaml:"driver"` // sqlite, jsonl
	Path   string `toml:"path" yaml:"path"`     // database file (sqlite) or directory (jsonl)
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	Output string `toml:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Listen  string `toml:"listen" yaml:"listen"`
}
