package audiocache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	e "github.com/hxann/radiotruyen/internal/errors"
	"github.com/hxann/radiotruyen/internal/logging"
)

// Stale lock and temp artifacts are garbage after this long, regardless of
// the max age policy for completed entries. This is how orphans from crashed
// generations get reclaimed.
const staleArtifactThreshold = 1 * time.Hour

type CleanupPolicy struct {
	MaxAge     time.Duration
	MaxSize    int64
	TargetSize int64
}

// RunCleanup performs the age pass followed by the size pass. Both passes are
// best effort: failures on individual entries are logged and skipped, and
// deletion races with readers or another cleanup run read as success. Only a
// failure to open the cache directory aborts the run.
func (s *Store) RunCleanup(ctx context.Context, policy CleanupPolicy) error {
	logger := logging.FromContext(ctx)
	logger.Info("Starting cache cleanup")

	deletedByAge, err := s.cleanupByAge(ctx, policy.MaxAge)
	if err != nil {
		return err
	}
	if deletedByAge > 0 {
		logger.Info("Cleanup by age removed entries", "count", deletedByAge)
	}

	deletedBySize, err := s.cleanupBySize(ctx, policy.MaxSize, policy.TargetSize)
	if err != nil {
		return err
	}
	if deletedBySize > 0 {
		logger.Info("Cleanup by size removed entries", "count", deletedBySize)
	}

	logger.Info("Cache cleanup finished")
	return nil
}

func isStaleArtifact(name string) bool {
	return strings.HasSuffix(name, tempSuffix) || strings.HasSuffix(name, lockSuffix)
}

func (s *Store) cleanupByAge(ctx context.Context, maxAge time.Duration) (int, error) {
	logger := logging.FromContext(ctx)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("%w: could not scan cache directory: %w", e.ErrStorageFailure, err)
	}

	now := time.Now()
	deleted := 0

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Deleted by another process while we were scanning.
				continue
			}
			logger.Error("Could not stat entry during age cleanup", "name", entry.Name(), "error", err.Error())
			continue
		}

		age := now.Sub(info.ModTime())
		tooOld := age > maxAge
		staleArtifact := isStaleArtifact(entry.Name()) && age > staleArtifactThreshold

		if !tooOld && !staleArtifact {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			logger.Error("Could not delete entry during age cleanup", "path", path, "error", err.Error())
			continue
		}
		deleted++
	}

	return deleted, nil
}

type sizeScanEntry struct {
	path    string
	size    int64
	modTime time.Time
}

func (s *Store) cleanupBySize(ctx context.Context, maxSize, targetSize int64) (int, error) {
	logger := logging.FromContext(ctx)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("%w: could not scan cache directory: %w", e.ErrStorageFailure, err)
	}

	var files []sizeScanEntry
	var totalSize int64

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			logger.Error("Could not stat entry during size scan", "name", entry.Name(), "error", err.Error())
			continue
		}

		files = append(files, sizeScanEntry{
			path:    filepath.Join(s.dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		totalSize += info.Size()
	}

	if totalSize < maxSize {
		return 0, nil
	}

	logger.Info(
		"Cache size exceeds limit, starting LRU cleanup",
		"totalBytes", totalSize,
		"maxBytes", maxSize,
		"targetBytes", targetSize,
	)

	// Least recently used first
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	deleted := 0
	for _, file := range files {
		if totalSize <= targetSize {
			break
		}
		if err := os.Remove(file.path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Already gone; still account for the size so the loop
				// terminates even when deletions race with another run.
				totalSize -= file.size
				continue
			}
			logger.Error("Could not delete entry during size cleanup", "path", file.path, "error", err.Error())
			continue
		}
		totalSize -= file.size
		deleted++
	}

	logger.Info("Finished LRU cleanup", "totalBytes", totalSize)
	return deleted, nil
}
