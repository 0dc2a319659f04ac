package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Telegram.BotToken = Secret("123:abc")
	cfg.Google.SheetKey = "sheet-key"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, TelegramPolling, cfg.Telegram.Mode)
	assert.Equal(t, 60, cfg.Telegram.PollTimeout)
	assert.Equal(t, "credentials.json", cfg.Google.CredentialsFile)
	assert.Equal(t, "GCP_CREDS_JSON", cfg.Google.CredentialsEnv)
	assert.Equal(t, StoreSheets, cfg.Store.Driver)
	assert.Equal(t, 32, cfg.Dispatch.MaxInFlight)
	assert.Empty(t, cfg.Dispatch.SuccessReply)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "wardlog.messages", cfg.NATS.Subject)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Observability.EnableTelemetry)
	assert.Equal(t, "wardlog", cfg.Observability.ServiceName)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "non-positive shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "shutdown timeout",
		},
		{
			name:    "missing bot token",
			mutate:  func(c *Config) { c.Telegram.BotToken = "" },
			wantErr: "telegram.bot_token",
		},
		{
			name:    "negative sheets request timeout",
			mutate:  func(c *Config) { c.Google.RequestTimeout = -time.Second },
			wantErr: "google.request_timeout",
		},
		{
			name:    "unknown telegram mode",
			mutate:  func(c *Config) { c.Telegram.Mode = "carrier-pigeon" },
			wantErr: "telegram.mode",
		},
		{
			name: "telegram disabled without nats",
			mutate: func(c *Config) {
				c.Telegram.Mode = TelegramDisabled
				c.Telegram.BotToken = ""
			},
			wantErr: "no transport enabled",
		},
		{
			name: "nats only is valid",
			mutate: func(c *Config) {
				c.Telegram.Mode = TelegramDisabled
				c.Telegram.BotToken = ""
				c.NATS.Enabled = true
			},
		},
		{
			name: "nats without url",
			mutate: func(c *Config) {
				c.NATS.Enabled = true
				c.NATS.URL = ""
			},
			wantErr: "nats.url",
		},
		{
			name:    "sheets store without key",
			mutate:  func(c *Config) { c.Google.SheetKey = "" },
			wantErr: "google.sheet_key",
		},
		{
			name: "memory store needs no key",
			mutate: func(c *Config) {
				c.Store.Driver = StoreMemory
				c.Google.SheetKey = ""
			},
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Config) { c.Store.Driver = "excel" },
			wantErr: "store.driver",
		},
		{
			name:    "zero in-flight limit",
			mutate:  func(c *Config) { c.Dispatch.MaxInFlight = 0 },
			wantErr: "max_in_flight",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"TELEGRAM_BOT_TOKEN":     "telegram.bot_token",
		"GOOGLE_SHEET_KEY":       "google.sheet_key",
		"SERVER_HTTP_PORT":       "server.http_port",
		"DISPATCH_MAX_IN_FLIGHT": "dispatch.max_in_flight",
		"PATH":                   "",
		"HOME":                   "",
		"GCP_CREDS_JSON":         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), "envKey(%q)", in)
	}
}

func TestSecret(t *testing.T) {
	s := Secret("123456:telegram-token")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "Secret([REDACTED])", s.GoString())
	assert.Equal(t, "123456:telegram-token", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	text, err := s.MarshalText()
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(text), "telegram-token"))

	var empty Secret
	assert.False(t, empty.IsSet())
	assert.Equal(t, "", empty.String())

	var parsed Secret
	require.NoError(t, parsed.UnmarshalText([]byte("raw")))
	assert.Equal(t, "raw", parsed.Value())
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
