// Package config provides configuration loading for wardlog.
//
// Configuration is read from an optional YAML file and overridden by
// environment variables. See LoadWithFile for precedence and mapping rules.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Transport and store selectors.
const (
	TelegramPolling  = "polling"
	TelegramWebhook  = "webhook"
	TelegramDisabled = "disabled"

	StoreSheets = "sheets"
	StoreMemory = "memory"
)

// Config holds the complete wardlog configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Telegram      TelegramConfig      `koanf:"telegram"`
	Google        GoogleConfig        `koanf:"google"`
	Store         StoreConfig         `koanf:"store"`
	Dispatch      DispatchConfig      `koanf:"dispatch"`
	NATS          NATSConfig          `koanf:"nats"`
	Log           LogConfig           `koanf:"log"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TelegramConfig holds chat transport settings.
type TelegramConfig struct {
	BotToken      Secret `koanf:"bot_token"`
	Mode          string `koanf:"mode"`           // polling, webhook, disabled
	WebhookSecret Secret `koanf:"webhook_secret"` // checked against X-Telegram-Bot-Api-Secret-Token
	PollTimeout   int    `koanf:"poll_timeout"`   // long-poll timeout in seconds
	Debug         bool   `koanf:"debug"`
}

// GoogleConfig identifies the target spreadsheet and its credentials.
type GoogleConfig struct {
	SheetKey        string `koanf:"sheet_key"`
	CredentialsFile string `koanf:"credentials_file"`
	CredentialsEnv  string `koanf:"credentials_env"` // env var holding service account JSON

	// RequestTimeout bounds each Sheets call; zero waits for the API.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// StoreConfig selects the table backend.
type StoreConfig struct {
	Driver string `koanf:"driver"` // sheets, memory
}

// DispatchConfig controls message handling.
type DispatchConfig struct {
	MaxInFlight  int    `koanf:"max_in_flight"`
	SuccessReply string `koanf:"success_reply"` // empty keeps the built-in acknowledgement
	FailureReply string `koanf:"failure_reply"`
}

// NATSConfig holds the optional NATS transport settings.
type NATSConfig struct {
	Enabled     bool   `koanf:"enabled"`
	URL         string `koanf:"url"`
	Subject     string `koanf:"subject"`
	ReplyPrefix string `koanf:"reply_prefix"`
}

// LogConfig holds logger overrides.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	Protocol        string `koanf:"protocol"` // grpc, http/protobuf
	Insecure        bool   `koanf:"insecure"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - No transport is enabled
//   - A selected transport or store lacks its required settings
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Telegram.Mode {
	case TelegramPolling, TelegramWebhook:
		if !c.Telegram.BotToken.IsSet() {
			return errors.New("telegram.bot_token is required (TELEGRAM_BOT_TOKEN)")
		}
		if c.Telegram.PollTimeout < 0 {
			return fmt.Errorf("telegram.poll_timeout must be >= 0, got %d", c.Telegram.PollTimeout)
		}
	case TelegramDisabled:
	default:
		return fmt.Errorf("telegram.mode must be polling, webhook or disabled, got %q", c.Telegram.Mode)
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return errors.New("nats.url is required when nats is enabled")
		}
		if c.NATS.Subject == "" || c.NATS.ReplyPrefix == "" {
			return errors.New("nats.subject and nats.reply_prefix are required when nats is enabled")
		}
	}

	if c.Telegram.Mode == TelegramDisabled && !c.NATS.Enabled {
		return errors.New("no transport enabled: set telegram.mode or nats.enabled")
	}

	if err := c.ValidateStore(); err != nil {
		return err
	}

	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format must be 'json' or 'console', got %q", c.Log.Format)
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	return nil
}

// ValidateStore checks only the settings needed to append records:
// the store selection and the dispatch bound.
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case StoreSheets:
		if c.Google.SheetKey == "" {
			return errors.New("google.sheet_key is required for the sheets store (GOOGLE_SHEET_KEY)")
		}
		if c.Google.RequestTimeout < 0 {
			return fmt.Errorf("google.request_timeout must be >= 0, got %s", c.Google.RequestTimeout)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store.driver must be sheets or memory, got %q", c.Store.Driver)
	}

	if c.Dispatch.MaxInFlight < 1 {
		return fmt.Errorf("dispatch.max_in_flight must be >= 1, got %d", c.Dispatch.MaxInFlight)
	}
	return nil
}
