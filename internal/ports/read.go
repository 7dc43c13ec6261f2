package ports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hxann/radiotruyen/internal/app"
	e "github.com/hxann/radiotruyen/internal/errors"
	"github.com/hxann/radiotruyen/internal/logging"
	"github.com/hxann/radiotruyen/internal/ratelimiting"
	"github.com/hxann/radiotruyen/internal/reporting"
)

// countingResponseWriter tracks whether any of the audio body has been
// written. Once it has, the 200 header is on the wire and errors can only
// terminate the stream.
type countingResponseWriter struct {
	http.ResponseWriter
	bytesWritten int64
}

func (w *countingResponseWriter) Write(data []byte) (int, error) {
	n, err := w.ResponseWriter.Write(data)
	w.bytesWritten += int64(n)
	return n, err
}

func (w *countingResponseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func MakeReadHandler(
	streamAudio app.StreamChapterAudio,
	synthesisEnabled bool,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	// Generation is expensive, so the read endpoint allows fewer requests
	// than metadata. Cache hits burn the same tokens, listeners only start
	// a handful of chapters per minute anyway.
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(2),
		ratelimiting.BurstSize(30),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	onLimitExceeded := func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, http.StatusTooManyRequests, "Bạn thao tác hơi nhanh, chờ một chút rồi thử lại nhé.")
	}

	middleware := ComposeMiddlewares(
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("read"),
		buildMetricsMiddleware(),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		chapterURL := r.URL.Query().Get("url")
		if chapterURL == "" {
			writeError(ctx, w, http.StatusBadRequest, "URL không được để trống.")
			return
		}

		if !synthesisEnabled {
			writeError(ctx, w, http.StatusServiceUnavailable, "Dịch vụ đọc truyện đang tạm thời gián đoạn. Mẹ có thể nghe lại các truyện đã có sẵn.")
			return
		}

		ctx = reporting.AddExtrasToContext(ctx,
			map[string]string{
				"chapterURL": chapterURL,
			},
		)

		counting := &countingResponseWriter{ResponseWriter: w}
		w.Header().Set("Content-Type", "audio/mpeg")

		err := streamAudio(ctx, chapterURL, counting)
		if err == nil {
			return
		}

		if counting.bytesWritten > 0 {
			// Headers and part of the body are already sent. All we can do
			// is cut the stream short.
			if !errors.Is(err, context.Canceled) && r.Context().Err() == nil {
				logger.Error("audio stream terminated mid-body", "error", err, "bytesWritten", counting.bytesWritten)
				reporting.Report(ctx, fmt.Errorf("audio stream terminated mid-body: %w", err))
			}
			return
		}

		switch {
		case errors.Is(err, e.ErrLockBusy):
			writeError(ctx, w, http.StatusTooManyRequests, "Truyện này đang được chuẩn bị. Mẹ vui lòng thử lại sau vài giây.")
		case errors.Is(err, e.ErrContentUnavailable):
			writeCodedError(ctx, w, http.StatusUnprocessableEntity,
				errCodeContentExtractionFailed,
				"Bot không đọc được nội dung từ link này. Có thể trang web đã thay đổi hoặc không được hỗ trợ.",
			)
		case errors.Is(err, e.ErrSynthesisTimeout),
			errors.Is(err, e.ErrSynthesisFailure),
			errors.Is(err, e.ErrConsumerStarved):
			reporting.Report(ctx, fmt.Errorf("failed to synthesize audio: %w", err))
			writeError(ctx, w, http.StatusServiceUnavailable, "Lỗi từ hệ thống đọc truyện. Mẹ vui lòng thử lại sau.")
		case errors.Is(err, context.Canceled):
			// Listener left before the first byte
		default:
			reporting.Report(ctx, fmt.Errorf("failed to stream chapter audio: %w", err))
			writeError(ctx, w, http.StatusInternalServerError, "Máy chủ gặp lỗi, bot không thể xử lý yêu cầu này.")
		}
	}

	return middleware(handler)
}
