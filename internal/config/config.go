package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

const envPrefix = "DEPOSITS_"

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Payment  PaymentConfig  `koanf:"payment"`
	Retry    RetryConfig    `koanf:"retry"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Poller   PollerConfig   `koanf:"poller"`
	Dialogs  DialogsConfig  `koanf:"dialogs"`
	Worker   WorkerConfig   `koanf:"worker"`
	Events   EventsConfig   `koanf:"events"`
	Logger   LoggerConfig   `koanf:"logger"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port           string        `koanf:"port" validate:"required"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"required"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// PaymentConfig points at the external payment API. ServiceToken is the
// credential the reconciler uses when no member session is around.
type PaymentConfig struct {
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	ConnTimeout  time.Duration `koanf:"conn_timeout" validate:"required"`
	ServiceToken string        `koanf:"service_token"`
}

// RetryConfig applies to status queries only.
type RetryConfig struct {
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxRetries int           `koanf:"max_retries" validate:"min=1"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `koanf:"max_requests"`
	Interval            time.Duration `koanf:"interval"`
	Timeout             time.Duration `koanf:"timeout" validate:"required"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures" validate:"required"`
}

type PollerConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"required"`
	Timeout   time.Duration `koanf:"timeout" validate:"required"`
	MinAmount int64         `koanf:"min_amount" validate:"min=1"`
}

type DialogsConfig struct {
	JanitorInterval time.Duration `koanf:"janitor_interval" validate:"required"`
	MaxIdle         time.Duration `koanf:"max_idle" validate:"required"`
}

type WorkerConfig struct {
	Interval   time.Duration `koanf:"interval" validate:"required"`
	BatchSize  int           `koanf:"batch_size" validate:"required"`
	StaleAfter time.Duration `koanf:"stale_after" validate:"required"`
	MaxAge     time.Duration `koanf:"max_age" validate:"required"`
}

// EventsConfig configures settlement publishing. Without a NATS URL events
// are only logged.
type EventsConfig struct {
	NatsURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix" validate:"required"`
}

type LoggerConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=text json"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"primary.env":                  "development",
		"server.port":                  "8080",
		"server.read_timeout":          "10s",
		"server.idle_timeout":          "60s",
		"server.request_timeout":       "30s",
		"database.host":                "localhost",
		"database.port":                5432,
		"database.ssl_mode":            "disable",
		"database.max_open_conns":      10,
		"database.max_idle_conns":      2,
		"database.conn_max_lifetime":   "1h",
		"database.conn_max_idle_time":  "30m",
		"payment.conn_timeout":         "10s",
		"retry.base_delay":             "200ms",
		"retry.max_retries":            3,
		"breaker.max_requests":         1,
		"breaker.interval":             "60s",
		"breaker.timeout":              "30s",
		"breaker.consecutive_failures": 5,
		"poller.interval":              "3s",
		"poller.timeout":               "5m",
		"poller.min_amount":            1000,
		"dialogs.janitor_interval":     "1m",
		"dialogs.max_idle":             "30m",
		"worker.interval":              "1m",
		"worker.batch_size":            50,
		"worker.stale_after":           "10m",
		"worker.max_age":               "24h",
		"events.subject_prefix":        "deposits.settled",
		"logger.level":                 "info",
		"logger.format":                "text",
	}
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		logger.Error("failed to load config defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
