package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the wardlog config dir.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "wardlog")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_EnvOnly(t *testing.T) {
	setupTestHome(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:env-token")
	t.Setenv("GOOGLE_SHEET_KEY", "env-sheet")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, "123:env-token", cfg.Telegram.BotToken.Value())
	assert.Equal(t, "env-sheet", cfg.Google.SheetKey)
	assert.Equal(t, TelegramPolling, cfg.Telegram.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Zero(t, cfg.Google.RequestTimeout)
}

func TestLoadWithFile_SheetsRequestTimeoutFromEnv(t *testing.T) {
	setupTestHome(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:env-token")
	t.Setenv("GOOGLE_SHEET_KEY", "env-sheet")
	t.Setenv("GOOGLE_REQUEST_TIMEOUT", "45s")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Google.RequestTimeout)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  http_port: 9191
  shutdown_timeout: 3s
telegram:
  bot_token: "123:file-token"
  mode: webhook
google:
  sheet_key: file-sheet
dispatch:
  max_in_flight: 4
nats:
  enabled: true
  subject: ward.in
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, TelegramWebhook, cfg.Telegram.Mode)
	assert.Equal(t, "file-sheet", cfg.Google.SheetKey)
	assert.Equal(t, 4, cfg.Dispatch.MaxInFlight)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "ward.in", cfg.NATS.Subject)
	assert.Equal(t, "wardlog.replies", cfg.NATS.ReplyPrefix)
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `telegram:
  bot_token: "123:file-token"
google:
  sheet_key: file-sheet
server:
  http_port: 9191
`, 0600)

	t.Setenv("GOOGLE_SHEET_KEY", "env-sheet")
	t.Setenv("SERVER_HTTP_PORT", "7070")
	t.Setenv("DISPATCH_MAX_IN_FLIGHT", "2")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "env-sheet", cfg.Google.SheetKey)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Dispatch.MaxInFlight)
	assert.Equal(t, "123:file-token", cfg.Telegram.BotToken.Value())
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "telegram:\n  bot_token: x\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_PathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

func TestLoadWithFile_InvalidConfig(t *testing.T) {
	setupTestHome(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:env-token")
	t.Setenv("STORE_DRIVER", "excel")

	_, err := LoadWithFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestRead_LeavesValidationToCaller(t *testing.T) {
	setupTestHome(t)
	t.Setenv("STORE_DRIVER", "memory")

	// No bot token: the full config is invalid, the store part is not.
	cfg, err := Read("")
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateStore())
	assert.Equal(t, 32, cfg.Dispatch.MaxInFlight)
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())

	info, err := os.Stat(filepath.Join(home, ".config", "wardlog"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
