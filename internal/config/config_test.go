package config_test

import (
	"testing"
	"time"

	"github.com/hxann/radiotruyen/internal/config"
	"github.com/stretchr/testify/require"
)

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

func TestConfigFromEnv(t *testing.T) {
	t.Run("environment is required", func(t *testing.T) {
		_, err := config.ConfigFromEnv()
		require.ErrorIs(t, err, config.ErrMissingRequiredValue)
	})

	t.Run("unknown environment is rejected", func(t *testing.T) {
		t.Setenv("RADIOTRUYEN_ENVIRONMENT", "prod")
		_, err := config.ConfigFromEnv()
		require.ErrorIs(t, err, config.ErrInvalidValue)
	})

	t.Run("defaults in development", func(t *testing.T) {
		t.Setenv("RADIOTRUYEN_ENVIRONMENT", "development")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)

		require.Equal(t, "5001", conf.Port())
		require.Equal(t, "audio_cache", conf.CacheDir())
		require.Equal(t, 7*24*time.Hour, conf.MaxAge())
		require.Equal(t, int64(400*1024*1024), conf.MaxSizeBytes())
		require.Equal(t, int64(280*1024*1024), conf.TargetSizeBytes())
		require.Equal(t, 200000, conf.MaxContentLength())
		require.Equal(t, 2500, conf.ChunkLimit())
		require.Equal(t, 100, conf.QueueCapacity())
		require.Equal(t, 60*time.Second, conf.ChunkTimeout())
		require.Equal(t, 30*time.Second, conf.ConsumerTimeout())
		require.Equal(t, "vi-VN-HoaiMyNeural", conf.Voice())
		require.Equal(t, "+0%", conf.Rate())
		require.Equal(t, "+0%", conf.Volume())
		require.True(t, conf.IsDevelopment())
		require.False(t, conf.IsProduction())
	})

	t.Run("values are read from the environment", func(t *testing.T) {
		t.Setenv("RADIOTRUYEN_ENVIRONMENT", "development")
		t.Setenv("PORT", "8080")
		t.Setenv("CACHE_DIR", "/var/cache/radiotruyen")
		t.Setenv("CACHE_MAX_AGE_DAYS", "3")
		t.Setenv("CACHE_MAX_SIZE_MB", "100")
		t.Setenv("CACHE_CLEANUP_TARGET_PERCENT", "50")
		t.Setenv("TTS_VOICE", "vi-VN-NamMinhNeural")
		t.Setenv("TTS_RATE", "+10%")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)

		require.Equal(t, "8080", conf.Port())
		require.Equal(t, "/var/cache/radiotruyen", conf.CacheDir())
		require.Equal(t, 3*24*time.Hour, conf.MaxAge())
		require.Equal(t, int64(100*1024*1024), conf.MaxSizeBytes())
		require.Equal(t, int64(50*1024*1024), conf.TargetSizeBytes())
		require.Equal(t, "vi-VN-NamMinhNeural", conf.Voice())
		require.Equal(t, "+10%", conf.Rate())
	})

	t.Run("invalid integers fall back to defaults", func(t *testing.T) {
		t.Setenv("RADIOTRUYEN_ENVIRONMENT", "development")
		t.Setenv("CACHE_MAX_AGE_DAYS", "a week")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)
		require.Equal(t, 7*24*time.Hour, conf.MaxAge())
	})

	t.Run("cleanup target must leave hysteresis", func(t *testing.T) {
		for _, target := range []string{"0", "100", "150", "-5"} {
			t.Run(target, func(t *testing.T) {
				t.Setenv("RADIOTRUYEN_ENVIRONMENT", "development")
				t.Setenv("CACHE_CLEANUP_TARGET_PERCENT", target)

				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})

	t.Run("sentry DSN is required outside development", func(t *testing.T) {
		for _, env := range []environment{production, staging} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("RADIOTRUYEN_ENVIRONMENT", string(env))

				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrMissingRequiredValue)

				t.Setenv("SENTRY_DSN", "https://key@sentry.example/1")
				conf, err := config.ConfigFromEnv()
				require.NoError(t, err)
				require.Equal(t, "https://key@sentry.example/1", conf.SentryDSN())
			})
		}
	})
}
