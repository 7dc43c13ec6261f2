package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	// Embed fallback certificate roots so outbound TLS works in containers
	// without a system cert store.
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/hxann/radiotruyen/internal/adapters/cache"
	"github.com/hxann/radiotruyen/internal/adapters/chapterprovider"
	"github.com/hxann/radiotruyen/internal/adapters/speech"
	"github.com/hxann/radiotruyen/internal/app"
	"github.com/hxann/radiotruyen/internal/audiocache"
	"github.com/hxann/radiotruyen/internal/config"
	"github.com/hxann/radiotruyen/internal/domain"
	"github.com/hxann/radiotruyen/internal/ports"
	"github.com/hxann/radiotruyen/internal/reporting"
	"github.com/hxann/radiotruyen/internal/telemetry"
	"github.com/hxann/radiotruyen/internal/tts"
)

// TODO: Put in config
const PROD_DOMAIN_SUFFIX = "radiotruyen.app"
const STAGING_DOMAIN_SUFFIX = "radiotruyen.pages.dev"

func main() {
	godotenv.Load()

	instanceID := uuid.New().String()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.SetupOTelSDK(ctx, "radiotruyen")
	if err != nil {
		fail("Failed to initialize telemetry", "error", err.Error())
	}
	defer func() {
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Error("Failed to shut down telemetry", "error", err.Error())
		}
	}()

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	store := audiocache.NewStore(config.CacheDir())
	// The service degrades to serving cached audio when the cache directory
	// can't be created; nothing to serve then on a fresh disk, but an
	// operator can still hit the health endpoint.
	synthesisEnabled := true
	if err := store.Setup(); err != nil {
		logger.Error("Failed to set up cache directory, audio generation disabled", "error", err.Error())
		synthesisEnabled = false
	}

	params, err := speech.NewParams(config.Voice(), config.Rate(), config.Volume())
	if err != nil {
		fail("Invalid TTS parameters", "error", err.Error())
	}

	engine := tts.NewEngine(speech.NewEdgeClient(params), tts.Config{
		ChunkLimit:      config.ChunkLimit(),
		QueueCapacity:   config.QueueCapacity(),
		ChunkTimeout:    config.ChunkTimeout(),
		ConsumerTimeout: config.ConsumerTimeout(),
	})

	httpClient := &http.Client{
		Timeout: 20 * time.Second,
	}
	provider := chapterprovider.NewHTMLChapterProvider(httpClient)

	metadataCache := cache.NewTTLCache[domain.Chapter](24 * time.Hour)

	allowedOrigins, err := ports.NewDomainSuffixes(PROD_DOMAIN_SUFFIX, STAGING_DOMAIN_SUFFIX)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	getMetadata := app.BuildGetChapterMetadataWithCache(metadataCache, provider)
	streamAudio := app.BuildStreamChapterAudio(store, getMetadata, engine, config.MaxContentLength())

	http.HandleFunc(
		"OPTIONS /api/metadata",
		ports.BuildCORSHandler(allowedOrigins),
	)
	http.HandleFunc(
		"GET /api/metadata",
		ports.MakeGetMetadataHandler(
			getMetadata,
			allowedOrigins,
			logger.With("port", "metadata"),
			sentryMiddleware,
		),
	)

	http.HandleFunc(
		"OPTIONS /api/read",
		ports.BuildCORSHandler(allowedOrigins),
	)
	http.HandleFunc(
		"GET /api/read",
		ports.MakeReadHandler(
			streamAudio,
			synthesisEnabled,
			allowedOrigins,
			logger.With("port", "read"),
			sentryMiddleware,
		),
	)

	http.HandleFunc(
		"GET /health",
		ports.MakeHealthHandler(synthesisEnabled),
	)

	logger.Info("Init complete")
	err = http.ListenAndServe(fmt.Sprintf(":%s", config.Port()), nil)
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("Server shutdown")
	} else {
		fail("Server error", "error", err.Error())
	}
}
