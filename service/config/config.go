package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/itchyny/gojq"
)

// Config is the review server configuration, read from the environment.
type Config struct {
	ServerAddr      string
	LogLevel        string
	ShutdownTimeout time.Duration

	DatabaseURL string

	// NATSURL is optional at runtime: the server keeps reviewing when NATS is down.
	NATSURL string

	// DecoderJQ maps an upload onto an array of transaction objects.
	DecoderJQ      string
	MaxUploadBytes int64

	WriteTimeout time.Duration
	PingInterval time.Duration
}

// Load reads the configuration from the environment. Every malformed variable is
// reported, not just the first.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr:  getEnvOrDefault("SERVER_ADDR", ":8000"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		NATSURL:     getEnvOrDefault("NATS_URL", "nats://localhost:4222"),
		DecoderJQ:   getEnvOrDefault("DECODER_JQ", "."),
	}
	var errs []error

	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if _, err := gojq.Parse(cfg.DecoderJQ); err != nil {
		errs = append(errs, fmt.Errorf("DECODER_JQ: invalid jq program %q: %w", cfg.DecoderJQ, err))
	}

	maxUpload, err := parseInt("MAX_UPLOAD_BYTES", 10<<20)
	errs = appendErr(errs, err)
	cfg.MaxUploadBytes = int64(maxUpload)

	cfg.WriteTimeout, err = parseDuration("WRITE_TIMEOUT", "10s")
	errs = appendErr(errs, err)
	cfg.PingInterval, err = parseDuration("PING_INTERVAL", "30s")
	errs = appendErr(errs, err)
	cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", "30s")
	errs = appendErr(errs, err)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks the relationships between fields. Tests call it on literal configs.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DatabaseURL is required"))
	}
	if c.DecoderJQ == "" {
		errs = append(errs, errors.New("DecoderJQ is required"))
	}
	if c.MaxUploadBytes < 1024 {
		errs = append(errs, errors.New("MaxUploadBytes must be at least 1024"))
	}
	if c.WriteTimeout < time.Second {
		errs = append(errs, errors.New("WriteTimeout must be at least 1 second"))
	}
	if c.PingInterval <= c.WriteTimeout {
		errs = append(errs, fmt.Errorf("PingInterval (%v) must be greater than WriteTimeout (%v)", c.PingInterval, c.WriteTimeout))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("ShutdownTimeout must not be negative"))
	}
	if c.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
			errs = append(errs, fmt.Errorf("LogLevel %q is not one of debug, info, warn, error", c.LogLevel))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Level is the slog level named by LogLevel, info when unset.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
