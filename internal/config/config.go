package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the messaging-api service.
type Config struct {
	// Service settings
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"messaging-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"MESSAGING_API_PORT" envDefault:"8190"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// OpenTelemetry
	EnableTracing bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`

	// Auth (Keycloak)
	AuthEnabled  bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer   string `env:"ISSUER"`
	AuthAudience string `env:"AUDIENCE"`
	AuthJWKSURL  string `env:"JWKS_URL"`

	// Database
	DatabaseURL     string        `env:"DB_POSTGRESQL_WRITE_DSN,notEmpty"`
	DBMaxIdleConns  int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns  int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBConnLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	RedisURL        string        `env:"REDIS_URL" envDefault:""`
	UnreadCacheTTL  time.Duration `env:"UNREAD_CACHE_TTL" envDefault:"30s"`
	PairLockTTL     time.Duration `env:"PAIR_LOCK_TTL" envDefault:"5s"`
	CORSAllowOrigin []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// Messaging
	MessageMaxLength int `env:"MESSAGE_MAX_LENGTH" envDefault:"2000"`

	// Websocket transport
	WSSendBuffer     int           `env:"WS_SEND_BUFFER" envDefault:"128"`
	WSWriteWait      time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	WSPongWait       time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	WSMaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`
	WSRateLimit      float64       `env:"WS_RATE_LIMIT" envDefault:"10"`
	WSRateBurst      int           `env:"WS_RATE_BURST" envDefault:"20"`

	// Presence
	PresenceSweepInterval time.Duration `env:"PRESENCE_SWEEP_INTERVAL" envDefault:"30s"`
	PresenceStaleTTL      time.Duration `env:"PRESENCE_STALE_TTL" envDefault:"2m"`

	// Unread reminders
	UnreadReminderEnabled bool          `env:"UNREAD_REMINDER_ENABLED" envDefault:"true"`
	UnreadReminderCron    string        `env:"UNREAD_REMINDER_CRON" envDefault:"*/15 * * * *"`
	UnreadReminderMinAge  time.Duration `env:"UNREAD_REMINDER_MIN_AGE" envDefault:"10m"`
	UnreadReminderBatch   int           `env:"UNREAD_REMINDER_BATCH" envDefault:"500"`
	NotificationWebhook   string        `env:"NOTIFICATION_WEBHOOK_URL" envDefault:""`
	NotificationTimeout   time.Duration `env:"NOTIFICATION_TIMEOUT" envDefault:"5s"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if cfg.AuthEnabled {
		if strings.TrimSpace(cfg.AuthIssuer) == "" {
			return nil, fmt.Errorf("ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(cfg.AuthAudience) == "" {
			return nil, fmt.Errorf("AUDIENCE is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(cfg.AuthJWKSURL) == "" {
			return nil, fmt.Errorf("JWKS_URL is required when AUTH_ENABLED is true")
		}
	}

	if cfg.MessageMaxLength <= 0 {
		return nil, fmt.Errorf("MESSAGE_MAX_LENGTH must be positive")
	}
	if cfg.WSSendBuffer <= 0 {
		return nil, fmt.Errorf("WS_SEND_BUFFER must be positive")
	}
	if cfg.WSPongWait <= time.Second {
		return nil, fmt.Errorf("WS_PONG_WAIT must be longer than one second")
	}

	return cfg, nil
}

// Addr returns the HTTP server address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// WSPingPeriod returns how often pings are written; it must stay below the pong wait.
func (c *Config) WSPingPeriod() time.Duration {
	return (c.WSPongWait * 9) / 10
}
