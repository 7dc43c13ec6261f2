package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type Config struct {
	port                 string
	cacheDir             string
	maxAgeDays           int
	maxSizeMB            int
	cleanupTargetPercent int
	maxContentLength     int
	chunkLimit           int
	queueCapacity        int
	chunkTimeout         time.Duration
	consumerTimeout      time.Duration
	voice                string
	rate                 string
	volume               string
	sentryDSN            string
	env                  environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) CacheDir() string {
	return c.cacheDir
}

func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.maxAgeDays) * 24 * time.Hour
}

func (c *Config) MaxSizeBytes() int64 {
	return int64(c.maxSizeMB) * 1024 * 1024
}

// TargetSizeBytes is the size the cleanup routine shrinks the cache to once
// MaxSizeBytes is exceeded. Strictly less than MaxSizeBytes (hysteresis).
func (c *Config) TargetSizeBytes() int64 {
	return c.MaxSizeBytes() * int64(c.cleanupTargetPercent) / 100
}

func (c *Config) MaxContentLength() int {
	return c.maxContentLength
}

func (c *Config) ChunkLimit() int {
	return c.chunkLimit
}

func (c *Config) QueueCapacity() int {
	return c.queueCapacity
}

func (c *Config) ChunkTimeout() time.Duration {
	return c.chunkTimeout
}

func (c *Config) ConsumerTimeout() time.Duration {
	return c.consumerTimeout
}

func (c *Config) Voice() string {
	return c.voice
}

func (c *Config) Rate() string {
	return c.rate
}

func (c *Config) Volume() string {
	return c.volume
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, cacheDir: %s, maxAgeDays: %d, maxSizeMB: %d, targetPercent: %d, voice: %s, ...}",
		string(c.env), c.cacheDir, c.maxAgeDays, c.maxSizeMB, c.cleanupTargetPercent, c.voice,
	)
}

// intFromEnv reads an integer environment variable. An unset variable yields
// the fallback; an unparsable one is logged and also yields the fallback.
func intFromEnv(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return value
}

func stringFromEnv(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("RADIOTRUYEN_ENVIRONMENT")
	if !ok {
		return missingKey("RADIOTRUYEN_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: RADIOTRUYEN_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	if (env == production || env == staging) && sentryDSN == "" {
		return missingKey("SENTRY_DSN")
	}

	cleanupTargetPercent := intFromEnv("CACHE_CLEANUP_TARGET_PERCENT", 70)
	if cleanupTargetPercent <= 0 || cleanupTargetPercent >= 100 {
		return Config{}, fmt.Errorf(
			"%w: CACHE_CLEANUP_TARGET_PERCENT (%d) must be between 1 and 99",
			ErrInvalidValue, cleanupTargetPercent,
		)
	}

	return Config{
		port:                 stringFromEnv("PORT", "5001"),
		cacheDir:             stringFromEnv("CACHE_DIR", "audio_cache"),
		maxAgeDays:           intFromEnv("CACHE_MAX_AGE_DAYS", 7),
		maxSizeMB:            intFromEnv("CACHE_MAX_SIZE_MB", 400),
		cleanupTargetPercent: cleanupTargetPercent,
		maxContentLength:     intFromEnv("MAX_CONTENT_LENGTH", 200000),
		chunkLimit:           intFromEnv("TTS_CHUNK_LIMIT", 2500),
		queueCapacity:        intFromEnv("TTS_QUEUE_CAPACITY", 100),
		chunkTimeout:         time.Duration(intFromEnv("TTS_CHUNK_TIMEOUT_SECONDS", 60)) * time.Second,
		consumerTimeout:      time.Duration(intFromEnv("TTS_CONSUMER_TIMEOUT_SECONDS", 30)) * time.Second,
		voice:                stringFromEnv("TTS_VOICE", "vi-VN-HoaiMyNeural"),
		rate:                 stringFromEnv("TTS_RATE", "+0%"),
		volume:               stringFromEnv("TTS_VOLUME", "+0%"),
		sentryDSN:            sentryDSN,
		env:                  env,
	}, nil
}
