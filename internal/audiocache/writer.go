package audiocache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	e "github.com/hxann/radiotruyen/internal/errors"
	"github.com/hxann/radiotruyen/internal/logging"
)

// CacheWriter accumulates generated audio in a temp file next to the final
// cache path. Commit publishes the entry with an atomic rename, so concurrent
// readers only ever observe either nothing or a complete file. Abort removes
// the temp file; exactly one of Commit/Abort takes effect.
type CacheWriter struct {
	file      *os.File
	tempPath  string
	finalPath string
	done      bool
}

// NewCacheWriter opens the temp artifact for exclusive write. A temp file
// already present means a concurrent generation slipped past the lock (or a
// crashed one left debris younger than the staleness sweep); both are
// surfaced as storage failures.
func (s *Store) NewCacheWriter(key string) (*CacheWriter, error) {
	tempPath := s.tempPathFor(key)

	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create temp file %s: %w", e.ErrStorageFailure, tempPath, err)
	}

	return &CacheWriter{
		file:      f,
		tempPath:  tempPath,
		finalPath: s.PathFor(key),
	}, nil
}

func (w *CacheWriter) Write(frame []byte) (int, error) {
	n, err := w.file.Write(frame)
	if err != nil {
		return n, fmt.Errorf("%w: could not write to temp file: %w", e.ErrStorageFailure, err)
	}
	return n, nil
}

// Commit publishes the fully written entry. The rename is atomic within the
// cache directory, which is what keeps partially written files invisible.
func (w *CacheWriter) Commit(ctx context.Context) error {
	if w.done {
		return nil
	}
	w.done = true

	if err := w.file.Sync(); err != nil {
		w.discard(ctx)
		return fmt.Errorf("%w: could not sync temp file: %w", e.ErrStorageFailure, err)
	}
	if err := w.file.Close(); err != nil {
		w.remove(ctx)
		return fmt.Errorf("%w: could not close temp file: %w", e.ErrStorageFailure, err)
	}
	if err := os.Rename(w.tempPath, w.finalPath); err != nil {
		w.remove(ctx)
		return fmt.Errorf("%w: could not publish cache entry: %w", e.ErrStorageFailure, err)
	}

	logging.FromContext(ctx).Info("Cache entry saved", "path", w.finalPath)
	return nil
}

// Abort deletes the temp artifact. Safe to defer unconditionally: after a
// successful Commit it is a no-op.
func (w *CacheWriter) Abort(ctx context.Context) {
	if w.done {
		return
	}
	w.done = true

	logging.FromContext(ctx).Warn("Generation did not complete, removing temp file", "path", w.tempPath)
	w.discard(ctx)
}

func (w *CacheWriter) discard(ctx context.Context) {
	w.file.Close()
	w.remove(ctx)
}

func (w *CacheWriter) remove(ctx context.Context) {
	if err := os.Remove(w.tempPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.FromContext(ctx).Error("Failed to remove temp file", "path", w.tempPath, "error", err.Error())
	}
}
