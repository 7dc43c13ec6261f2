package audiocache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	e "github.com/hxann/radiotruyen/internal/errors"
	"github.com/hxann/radiotruyen/internal/logging"
)

// Lock is ownership of a per-key generation slot, backed by a lock file.
// At most one Lock per key exists at a time, across every process sharing
// the cache directory.
type Lock struct {
	path        string
	releaseOnce sync.Once
}

// TryLock attempts to acquire the generation lock for key without blocking.
// The O_EXCL create is the single-flight guarantee: it fails atomically when
// another thread or process already holds the lock, in which case ErrLockBusy
// is returned.
func (s *Store) TryLock(key string) (*Lock, error) {
	path := s.lockPathFor(key)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, e.ErrLockBusy
		}
		return nil, fmt.Errorf("%w: could not create lock file %s: %w", e.ErrStorageFailure, path, err)
	}
	// The file's existence is the lock; the handle itself carries no state.
	f.Close()

	return &Lock{path: path}, nil
}

// Release deletes the lock file. Idempotent; meant to run in a defer so the
// lock is released on success, error and client cancellation alike. If the
// process dies before Release, the cleanup staleness sweep reclaims the file.
func (l *Lock) Release(ctx context.Context) {
	l.releaseOnce.Do(func() {
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.FromContext(ctx).Error("Failed to remove lock file", "path", l.path, "error", err.Error())
		}
	})
}
