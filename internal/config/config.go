package config

import (
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the Gearbook server.
type Config struct {
	DBPath         string
	DBBusyTimeout  time.Duration
	DBMaxOpenConns int
	DBMaxIdleConns int
	ServerPort     int
	LogLevel       string
	SentryDSN      string
	Environment    string
	ShutdownGrace  time.Duration
	RateLimit      RateLimitConfig
}

// RateLimitConfig controls the per-client HTTP rate limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

const (
	defaultDBPath         = "./data/gearbook.db"
	defaultDBBusyTimeout  = 5 * time.Second
	defaultDBMaxOpenConns = 10
	defaultDBMaxIdleConns = 5
	defaultServerPort     = 8080
	defaultLogLevel       = "info"
	defaultEnvironment    = "development"
	defaultShutdownGrace  = 10 * time.Second
	defaultRateLimitRPS   = 5.0
	defaultRateLimitBurst = 20
	defaultRateLimitTTL   = 10 * time.Minute
)

var logLevels = []interface{}{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"}

// Load reads configuration values from environment variables, applying
// defaults where necessary and validating the result.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:         getEnv("DB_PATH", defaultDBPath),
		DBBusyTimeout:  defaultDBBusyTimeout,
		DBMaxOpenConns: defaultDBMaxOpenConns,
		DBMaxIdleConns: defaultDBMaxIdleConns,
		LogLevel:       getEnv("LOG_LEVEL", defaultLogLevel),
		SentryDSN:      os.Getenv("SENTRY_DSN"),
		Environment:    getEnv("ENV", defaultEnvironment),
		ShutdownGrace:  defaultShutdownGrace,
		RateLimit: RateLimitConfig{
			RequestsPerSecond: defaultRateLimitRPS,
			Burst:             defaultRateLimitBurst,
			ClientTTL:         defaultRateLimitTTL,
		},
	}

	portValue := getEnv("SERVER_PORT", strconv.Itoa(defaultServerPort))
	port, err := strconv.Atoi(portValue)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid SERVER_PORT value: %s", portValue)
	}
	cfg.ServerPort = port

	if timeoutValue := os.Getenv("DB_BUSY_TIMEOUT_MS"); timeoutValue != "" {
		millis, err := strconv.Atoi(timeoutValue)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid DB_BUSY_TIMEOUT_MS value: %s", timeoutValue)
		}
		cfg.DBBusyTimeout = time.Duration(millis) * time.Millisecond
	}

	if connsValue := os.Getenv("DB_MAX_OPEN_CONNS"); connsValue != "" {
		conns, err := strconv.Atoi(connsValue)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid DB_MAX_OPEN_CONNS value: %s", connsValue)
		}
		cfg.DBMaxOpenConns = conns
	}

	if connsValue := os.Getenv("DB_MAX_IDLE_CONNS"); connsValue != "" {
		conns, err := strconv.Atoi(connsValue)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid DB_MAX_IDLE_CONNS value: %s", connsValue)
		}
		cfg.DBMaxIdleConns = conns
	}

	if rpsValue := os.Getenv("RATE_LIMIT_RPS"); rpsValue != "" {
		rps, err := strconv.ParseFloat(rpsValue, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid RATE_LIMIT_RPS value: %s", rpsValue)
		}
		cfg.RateLimit.RequestsPerSecond = rps
	}

	if burstValue := os.Getenv("RATE_LIMIT_BURST"); burstValue != "" {
		burst, err := strconv.Atoi(burstValue)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid RATE_LIMIT_BURST value: %s", burstValue)
		}
		cfg.RateLimit.Burst = burst
	}

	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "validating configuration")
	}

	return cfg, nil
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DBPath, validation.Required),
		validation.Field(&c.DBBusyTimeout, validation.Required),
		validation.Field(&c.DBMaxOpenConns, validation.Required, validation.Min(1)),
		validation.Field(&c.DBMaxIdleConns, validation.Required, validation.Min(1)),
		validation.Field(&c.ServerPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.LogLevel, validation.Required, validation.In(logLevels...)),
		validation.Field(&c.RateLimit),
	)
}

// Validate checks the rate limiter settings.
func (c RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RequestsPerSecond, validation.Required, validation.Min(0.1)),
		validation.Field(&c.Burst, validation.Required, validation.Min(1)),
		validation.Field(&c.ClientTTL, validation.Required),
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
