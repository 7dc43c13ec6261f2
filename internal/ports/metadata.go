package ports

import (
	"encoding/json"
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

type metadataResponse struct {
	Title   string `json:"title"`
	NextURL string `json:"next_url,omitempty"`
	PrevURL string `json:"prev_url,omitempty"`
}

func MakeGetMetadataHandler(
	getMetadata app.GetChapterMetadata,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(8),
		ratelimiting.BurstSize(120),
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
		reporting.NewAddMetaMiddleware("metadata"),
		buildMetricsMiddleware(),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		chapterURL := r.URL.Query().Get("url")
		if chapterURL == "" {
			writeError(ctx, w, http.StatusBadRequest, "URL không được để trống.")
			return
		}

		ctx = reporting.AddExtrasToContext(ctx,
			map[string]string{
				"chapterURL": chapterURL,
			},
		)

		chapter, err := getMetadata(ctx, chapterURL)
		if err != nil || !chapter.Complete() {
			if err != nil && !errors.Is(err, e.ErrContentUnavailable) {
				reporting.Report(ctx, fmt.Errorf("failed to get chapter metadata: %w", err))
				writeError(ctx, w, http.StatusInternalServerError, "Đã có lỗi xảy ra khi lấy thông tin truyện.")
				return
			}
			writeCodedError(ctx, w, http.StatusUnprocessableEntity,
				errCodeMetadataExtractionFailed,
				"Bot không tìm thấy tiêu đề từ link này. Mẹ thử kiểm tra lại link nhé.",
			)
			return
		}

		data, err := json.Marshal(metadataResponse{
			Title:   chapter.Title,
			NextURL: chapter.NextURL,
			PrevURL: chapter.PrevURL,
		})
		if err != nil {
			reporting.Report(ctx, fmt.Errorf("failed to marshal metadata response: %w", err))
			writeError(ctx, w, http.StatusInternalServerError, "Đã có lỗi xảy ra khi lấy thông tin truyện.")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}

	return middleware(handler)
}
