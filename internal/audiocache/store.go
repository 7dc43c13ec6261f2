package audiocache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	e "github.com/hxann/radiotruyen/internal/errors"
	"github.com/hxann/radiotruyen/internal/logging"
)

const (
	finalSuffix = ".audio"
	lockSuffix  = ".lock"
	tempSuffix  = ".audio.tmp"

	// Frame size used when streaming a cached file to a client.
	streamFrameSize = 8 * 1024
)

// Store is a disk-backed cache of synthesized chapter audio. The filesystem
// is the single source of truth: the directory listing is the index, and the
// lock files it holds coordinate generations across independent processes.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// Setup ensures the cache directory exists. Called once on startup; failure
// disables generation but the service can still serve whatever already exists.
func (s *Store) Setup() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: could not create cache directory %s: %w", e.ErrStorageFailure, s.dir, err)
	}
	return nil
}

// KeyForURL derives the content-addressed cache key for a chapter URL.
// The same URL always maps to the same key.
func KeyForURL(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// PathFor maps a key to the final cache entry path. Pure, no IO.
func (s *Store) PathFor(key string) string {
	return filepath.Join(s.dir, key+finalSuffix)
}

func (s *Store) lockPathFor(key string) string {
	return filepath.Join(s.dir, key+lockSuffix)
}

func (s *Store) tempPathFor(key string) string {
	return filepath.Join(s.dir, key+tempSuffix)
}

// Exists reports whether a completed cache entry is present at path.
// Races with concurrent eviction are expected; they read as absent.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// Touch marks the entry as recently used for the LRU size pass. A failed
// touch only degrades eviction ordering, so it is logged and swallowed.
func (s *Store) Touch(ctx context.Context, path string) {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		logging.FromContext(ctx).Error("Failed to touch cache entry", "path", path, "error", err.Error())
	}
}

// StreamTo copies the cache entry at path to w in fixed-size frames, flushing
// after each frame when w supports it. A file that disappears mid-stream
// (eviction race) terminates the stream early without error; callers must
// treat the result as best effort.
func (s *Store) StreamTo(ctx context.Context, path string, w io.Writer) error {
	logger := logging.FromContext(ctx)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Cache entry vanished before streaming", "path", path)
			return nil
		}
		return fmt.Errorf("%w: could not open cache entry: %w", e.ErrStorageFailure, err)
	}
	defer f.Close()

	flusher, _ := w.(http.Flusher)

	buf := make([]byte, streamFrameSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, readErr := f.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				// Client went away; nothing to clean up on the hit path.
				return writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			// Treat mid-stream read failures (including the entry being
			// evicted under us) as early termination, not a hard error.
			logger.Warn("Cache entry read ended early", "path", path, "error", readErr.Error())
			return nil
		}
	}
}
