package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aatumaykin/purgebot/internal/cron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken      = "MTIzNDU2Nzg5MDEyMzQ1Njc4.GAbCdE.abcdefghijklmnopqrstuvwxyz0123456789AB"
	testSuperAdmin = "123456789012345678"
)

// executeCommand runs the root command with args and returns stdout and
// stderr. Package-level flag variables are reset first because cobra keeps
// values between executions.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	configPath = ""
	envPath = ""
	showFormat = "toml"
	cronNextCount = 5
	cronNextFrom = ""
	scheduleSetName = ""
	serveLogLevel = ""

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func clearBotEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DISCORD_TOKEN", "BOT_PREFIX", "SUPER_ADMIN", "ADMIN_ROLES", "ALLOWED_CHANNELS"} {
		t.Setenv(key, "")
	}
}

// writeTestConfig writes a valid config backed by a temporary SQLite file.
func writeTestConfig(t *testing.T, token string) string {
	t.Helper()
	clearBotEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[discord]
token = %q

[auth]
super_admins = [%q]
admin_roles = ["Moderator"]

[storage]
driver = "sqlite"
path = %q
`, token, testSuperAdmin, filepath.Join(dir, "bot.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCommandStructure(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "config", "cron", "schedule", "admin", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:")
	assert.Contains(t, out, "Go Version:")
}

func TestConfigValidate(t *testing.T) {
	path := writeTestConfig(t, testToken)

	out, _, err := executeCommand(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestConfigValidate_Invalid(t *testing.T) {
	path := writeTestConfig(t, "not-a-token")

	_, stderr, err := executeCommand(t, "config", "validate", "--config", path)
	require.Error(t, err)
	assert.Contains(t, stderr, "discord.token")
	assert.NotContains(t, stderr, "not-a-token")
}

func TestConfigShow_MasksToken(t *testing.T) {
	path := writeTestConfig(t, testToken)

	for _, format := range []string{"toml", "yaml"} {
		t.Run(format, func(t *testing.T) {
			out, _, err := executeCommand(t, "config", "show", "--config", path, "--format", format)
			require.NoError(t, err)
			assert.NotContains(t, out, "abcdefghijklmnopqrstuvwxyz")
			assert.Contains(t, out, "MTIzNDU2Nzg5MDEyMzQ1Njc4.")
			assert.Contains(t, out, testSuperAdmin)
		})
	}

	_, _, err := executeCommand(t, "config", "show", "--config", path, "--format", "xml")
	assert.Error(t, err)
}

func TestCronNext(t *testing.T) {
	out, _, err := executeCommand(t, "cron", "next", "*/15", "*", "*", "*", "*", "--from", "2026-03-01T12:07:00Z", "-n", "3")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{
		"2026-03-01T12:15:00Z",
		"2026-03-01T12:30:00Z",
		"2026-03-01T12:45:00Z",
	}, lines)
}

func TestCronValidate(t *testing.T) {
	out, _, err := executeCommand(t, "cron", "validate", "`0 3 * * *`")
	require.NoError(t, err)
	assert.Contains(t, out, `"0 3 * * *" is valid`)

	_, _, err = executeCommand(t, "cron", "validate", "not", "a", "cron")
	assert.ErrorIs(t, err, cron.ErrInvalidExpression)
}

func TestScheduleLifecycle(t *testing.T) {
	path := writeTestConfig(t, testToken)

	out, _, err := executeCommand(t, "schedule", "list", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No channel configurations found.")

	_, _, err = executeCommand(t, "schedule", "set", "-c", path, "--name", "general", "111", "0", "3", "*", "*", "*")
	require.NoError(t, err)

	_, _, err = executeCommand(t, "schedule", "set", "-c", path, "222", "not a cron")
	assert.ErrorIs(t, err, cron.ErrInvalidExpression)

	_, _, err = executeCommand(t, "schedule", "disable", "-c", path, "111")
	require.NoError(t, err)

	_, _, err = executeCommand(t, "schedule", "enable", "-c", path, "999")
	assert.Error(t, err)

	out, _, err = executeCommand(t, "schedule", "list", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "111")
	assert.Contains(t, out, "general")
	assert.Contains(t, out, "0 3 * * *")
	assert.Contains(t, out, "false")
	assert.NotContains(t, out, "222")

	_, _, err = executeCommand(t, "schedule", "remove", "-c", path, "111")
	require.NoError(t, err)

	out, _, err = executeCommand(t, "schedule", "list", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No channel configurations found.")
}

func TestScheduleExportImport(t *testing.T) {
	src := writeTestConfig(t, testToken)
	_, _, err := executeCommand(t, "schedule", "set", "-c", src, "--name", "general", "111", "*/5 * * * *")
	require.NoError(t, err)
	_, _, err = executeCommand(t, "schedule", "set", "-c", src, "--name", "logs", "222", "0 0 * * 0")
	require.NoError(t, err)
	_, _, err = executeCommand(t, "schedule", "disable", "-c", src, "222")
	require.NoError(t, err)

	exported := filepath.Join(t.TempDir(), "schedules.yaml")
	_, _, err = executeCommand(t, "schedule", "export", "-c", src, exported)
	require.NoError(t, err)

	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(data), "schedules:")
	assert.Contains(t, string(data), "channel_id: \"111\"")

	dst := writeTestConfig(t, testToken)
	out, _, err := executeCommand(t, "schedule", "import", "-c", dst, exported)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 schedule(s).")

	out, _, err = executeCommand(t, "schedule", "export", "-c", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "channel_name: general")
	assert.Contains(t, out, "channel_name: logs")
	assert.Contains(t, out, "enabled: false")
}

func TestScheduleImport_RejectsInvalidFile(t *testing.T) {
	path := writeTestConfig(t, testToken)

	file := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`schedules:
  - channel_id: "111"
    cron_expr: "0 3 * * *"
    enabled: true
  - channel_id: "111"
    cron_expr: "0 4 * * *"
  - channel_id: ""
    cron_expr: "not a cron"
`), 0o600))

	_, _, err := executeCommand(t, "schedule", "import", "-c", path, file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate channel_id 111")
	assert.Contains(t, err.Error(), "channel_id is required")
	assert.ErrorIs(t, err, cron.ErrInvalidExpression)

	out, _, err := executeCommand(t, "schedule", "list", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No channel configurations found.")
}

func TestAdminCommands(t *testing.T) {
	path := writeTestConfig(t, testToken)

	out, _, err := executeCommand(t, "admin", "list", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, testSuperAdmin+"\tsuper admin (config)")
	assert.Contains(t, out, "@Moderator\tadmin role (config)")
	assert.Contains(t, out, "No admins in the admin list.")

	_, _, err = executeCommand(t, "admin", "add", "-c", path, "555555555555555555")
	require.NoError(t, err)

	_, _, err = executeCommand(t, "admin", "add", "-c", path, "<@555>")
	assert.Error(t, err)

	out, _, err = executeCommand(t, "admin", "list", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "555555555555555555\tadded ")

	_, _, err = executeCommand(t, "admin", "remove", "-c", path, "555555555555555555")
	require.NoError(t, err)

	out, _, err = executeCommand(t, "admin", "list", "-c", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "555555555555555555")
}

func TestServe_InvalidConfigFailsFast(t *testing.T) {
	path := writeTestConfig(t, "")

	_, stderr, err := executeCommand(t, "serve", "-c", path)
	require.Error(t, err)
	assert.Contains(t, stderr, "Configuration validation failed")
}
