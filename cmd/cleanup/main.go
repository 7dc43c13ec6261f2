// Command cleanup prunes the audio cache. It is meant to run from cron; a
// run lock in the system temp directory keeps overlapping invocations from
// racing each other.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/hxann/radiotruyen/internal/audiocache"
	"github.com/hxann/radiotruyen/internal/config"
	"github.com/hxann/radiotruyen/internal/logging"
)

const runLockName = "radiotruyen_cleanup.lock"

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "cleanup")

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	lockPath := filepath.Join(os.TempDir(), runLockName)
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, fs.ErrExist) {
		// Another instance is running. Not an error under cron.
		logger.Warn("Cleanup already running, exiting", "lockPath", lockPath)
		return
	}
	if err != nil {
		fail("Failed to create run lock", "error", err.Error(), "lockPath", lockPath)
	}
	defer func() {
		lockFile.Close()
		if err := os.Remove(lockPath); err != nil {
			logger.Error("Failed to remove run lock", "error", err.Error(), "lockPath", lockPath)
		}
	}()

	store := audiocache.NewStore(config.CacheDir())
	if err := store.Setup(); err != nil {
		fail("Failed to set up cache directory", "error", err.Error())
	}

	ctx := logging.AddToContext(context.Background(), logger)

	logger.Info("Cache cleanup started", "cacheDir", config.CacheDir())
	err = store.RunCleanup(ctx, audiocache.CleanupPolicy{
		MaxAge:     config.MaxAge(),
		MaxSize:    config.MaxSizeBytes(),
		TargetSize: config.TargetSizeBytes(),
	})
	if err != nil {
		fail("Cache cleanup failed", "error", err.Error())
	}
	logger.Info("Cache cleanup finished")
}
