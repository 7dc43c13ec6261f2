package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/hxann/radiotruyen/internal/audiocache"
	e "github.com/hxann/radiotruyen/internal/errors"
	"github.com/hxann/radiotruyen/internal/logging"
	"github.com/hxann/radiotruyen/internal/reporting"
	"github.com/hxann/radiotruyen/internal/tts"
)

// Spoken when a chapter exceeds the content length limit, so listeners know
// the audio ends early on purpose.
const truncationNotice = "\n\nBot nói: Chương này quá dài, bot chỉ đọc một phần thôi nhé."

type StreamChapterAudio func(ctx context.Context, chapterURL string, w io.Writer) error

type audioStreamer interface {
	Stream(ctx context.Context, text string) *tts.Stream
}

// BuildStreamChapterAudio serves chapter audio from the disk cache, and on a
// miss generates it while teeing the frames to the cache. The per-key file
// lock keeps concurrent generation of the same chapter to a single process;
// losers get ErrLockBusy immediately instead of queueing.
func BuildStreamChapterAudio(
	store *audiocache.Store,
	getChapter GetChapterMetadata,
	engine audioStreamer,
	maxContentLength int,
) StreamChapterAudio {
	return func(ctx context.Context, chapterURL string, w io.Writer) error {
		logger := logging.FromContext(ctx)

		key := audiocache.KeyForURL(chapterURL)
		path := store.PathFor(key)

		if store.Exists(path) {
			logger.Info("audio cache hit", "key", key)
			store.Touch(ctx, path)
			return store.StreamTo(ctx, path, w)
		}

		lock, err := store.TryLock(key)
		if err != nil {
			if errors.Is(err, e.ErrLockBusy) {
				logger.Info("audio generation already in progress", "key", key)
			}
			return err
		}
		defer lock.Release(ctx)

		// Another process may have finished between the existence check and
		// the lock grab.
		if store.Exists(path) {
			logger.Info("audio cache hit after lock", "key", key)
			store.Touch(ctx, path)
			return store.StreamTo(ctx, path, w)
		}

		logger.Info("audio cache miss, generating", "key", key)

		chapter, err := getChapter(ctx, chapterURL)
		if err != nil {
			return err
		}

		content := chapter.Content
		if len(content) > maxContentLength {
			content = truncate(content, maxContentLength) + truncationNotice
			logger.Warn("chapter content truncated", "key", key, "limit", maxContentLength)
		}

		return generateAndCache(ctx, store, engine, key, content, w)
	}
}

func generateAndCache(
	ctx context.Context,
	store *audiocache.Store,
	engine audioStreamer,
	key string,
	content string,
	w io.Writer,
) error {
	logger := logging.FromContext(ctx)

	// A stale temp file from a crashed generation can block the writer until
	// the cleanup sweep reclaims it. The listener still gets audio, it just
	// isn't cached.
	writer, err := store.NewCacheWriter(key)
	if err != nil {
		logger.Error("failed to open cache writer, streaming without caching", "error", err)
		reporting.Report(ctx, err)
	}

	stream := engine.Stream(ctx, content)
	defer stream.Close()

	flusher, _ := w.(http.Flusher)

	for {
		frame, err := stream.Next()
		if errors.Is(err, io.EOF) {
			if writer != nil {
				if err := writer.Commit(ctx); err != nil {
					// The listener already has the full audio, only the
					// cache entry is lost.
					logger.Error("failed to commit cache entry", "error", err)
					reporting.Report(ctx, err)
				} else {
					logger.Info("audio cache entry saved", "key", key)
				}
			}
			return nil
		}
		if err != nil {
			if writer != nil {
				writer.Abort(ctx)
			}
			return err
		}

		if writer != nil {
			if _, err := writer.Write(frame); err != nil {
				logger.Error("failed to write cache entry, streaming without caching", "error", err)
				reporting.Report(ctx, err)
				writer.Abort(ctx)
				writer = nil
			}
		}

		if _, err := w.Write(frame); err != nil {
			if writer != nil {
				writer.Abort(ctx)
			}
			return fmt.Errorf("failed to write audio frame: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// truncate cuts at a byte limit without splitting a multi-byte rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
