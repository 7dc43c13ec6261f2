package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hxann/radiotruyen/internal/adapters/cache"
	"github.com/hxann/radiotruyen/internal/adapters/chapterprovider"
	"github.com/hxann/radiotruyen/internal/domain"
	e "github.com/hxann/radiotruyen/internal/errors"
	"github.com/hxann/radiotruyen/internal/reporting"
)

const maxChapterURLLength = 2048

type GetChapterMetadata func(ctx context.Context, chapterURL string) (domain.Chapter, error)

// BuildGetChapterMetadataWithCache wraps the chapter provider in an
// in-process cache. Only successful extractions reach the cache, so a
// temporarily broken page does not poison later requests for the same URL.
func BuildGetChapterMetadataWithCache(
	chapterCache cache.Cache[domain.Chapter],
	provider chapterprovider.ChapterProvider,
) GetChapterMetadata {
	return func(ctx context.Context, chapterURL string) (domain.Chapter, error) {
		urlLength := len(chapterURL)
		if urlLength == 0 || urlLength > maxChapterURLLength {
			err := fmt.Errorf("%w: invalid chapter url length", e.ErrContentUnavailable)
			reporting.Report(ctx, err, map[string]string{
				"length": strconv.Itoa(urlLength),
			})
			return domain.Chapter{}, err
		}

		chapter, _, err := cache.GetOrCreate(ctx, chapterCache, chapterURL, func() (domain.Chapter, error) {
			// NOTE: The provider fails when no content is found, so
			// every cached chapter has content.
			return provider.GetChapter(ctx, chapterURL)
		})
		if err != nil {
			// NOTE: GetOrCreate only returns an error if create() fails.
			// The provider handles its own error reporting
			return domain.Chapter{}, fmt.Errorf("failed to cache.GetOrCreate chapter for url: %w", err)
		}

		return chapter, nil
	}
}
