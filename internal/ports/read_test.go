package ports_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hxann/radiotruyen/internal/app"
	e "github.com/hxann/radiotruyen/internal/errors"
	"github.com/hxann/radiotruyen/internal/ports"
)

func TestMakeReadHandler(t *testing.T) {
	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	allowedOrigins, err := ports.NewDomainSuffixes("example.com")
	require.NoError(t, err)
	noopMiddleware := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			h(w, r)
		}
	}

	chapterURL := "https://truyenfull.vn/truyen/chuong-1"

	makeHandler := func(streamAudio app.StreamChapterAudio, synthesisEnabled bool) http.HandlerFunc {
		return ports.MakeReadHandler(
			streamAudio,
			synthesisEnabled,
			allowedOrigins,
			testLogger,
			noopMiddleware,
		)
	}

	makeRequest := func() *http.Request {
		return httptest.NewRequest("GET", "/api/read?url="+chapterURL, nil)
	}

	t.Run("streams audio", func(t *testing.T) {
		streamAudio := func(ctx context.Context, gotURL string, w io.Writer) error {
			require.Equal(t, chapterURL, gotURL)
			_, err := w.Write([]byte("mp3 bytes"))
			require.NoError(t, err)
			return nil
		}
		handler := makeHandler(streamAudio, true)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest())

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "mp3 bytes", w.Body.String())
		require.Equal(t, "audio/mpeg", w.Result().Header.Get("Content-Type"))
	})

	t.Run("missing url", func(t *testing.T) {
		streamAudio := func(ctx context.Context, gotURL string, w io.Writer) error {
			t.Error("streamAudio must not be called")
			return nil
		}
		handler := makeHandler(streamAudio, true)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/read", nil))

		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, "application/json", w.Result().Header.Get("Content-Type"))
	})

	t.Run("synthesis disabled", func(t *testing.T) {
		streamAudio := func(ctx context.Context, gotURL string, w io.Writer) error {
			t.Error("streamAudio must not be called")
			return nil
		}
		handler := makeHandler(streamAudio, false)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest())

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("generation in progress", func(t *testing.T) {
		streamAudio := func(ctx context.Context, gotURL string, w io.Writer) error {
			return e.ErrLockBusy
		}
		handler := makeHandler(streamAudio, true)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest())

		require.Equal(t, http.StatusTooManyRequests, w.Code)
		require.Equal(t, "application/json", w.Result().Header.Get("Content-Type"))
	})

	t.Run("content extraction failed", func(t *testing.T) {
		streamAudio := func(ctx context.Context, gotURL string, w io.Writer) error {
			return e.ErrContentUnavailable
		}
		handler := makeHandler(streamAudio, true)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest())

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		require.Contains(t, w.Body.String(), "CONTENT_EXTRACTION_FAILED")
	})

	t.Run("synthesis failure before first byte", func(t *testing.T) {
		for _, synthErr := range []error{e.ErrSynthesisTimeout, e.ErrSynthesisFailure, e.ErrConsumerStarved} {
			streamAudio := func(ctx context.Context, gotURL string, w io.Writer) error {
				return synthErr
			}
			handler := makeHandler(streamAudio, true)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, makeRequest())

			require.Equal(t, http.StatusServiceUnavailable, w.Code, "error: %v", synthErr)
		}
	})

	t.Run("failure mid-stream leaves the partial body", func(t *testing.T) {
		streamAudio := func(ctx context.Context, gotURL string, w io.Writer) error {
			_, err := w.Write([]byte("partial"))
			require.NoError(t, err)
			return e.ErrSynthesisTimeout
		}
		handler := makeHandler(streamAudio, true)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest())

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "partial", w.Body.String())
		require.Equal(t, "audio/mpeg", w.Result().Header.Get("Content-Type"))
	})

	t.Run("storage failure", func(t *testing.T) {
		streamAudio := func(ctx context.Context, gotURL string, w io.Writer) error {
			return e.ErrStorageFailure
		}
		handler := makeHandler(streamAudio, true)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, makeRequest())

		require.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
