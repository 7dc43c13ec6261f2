package chapterprovider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hxann/radiotruyen/internal/domain"
	e "github.com/hxann/radiotruyen/internal/errors"
	"github.com/hxann/radiotruyen/internal/logging"
	"github.com/hxann/radiotruyen/internal/reporting"
)

// Story sites commonly refuse requests without a browser user agent.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type ChapterProvider interface {
	GetChapter(ctx context.Context, chapterURL string) (domain.Chapter, error)
}

type htmlChapterProvider struct {
	httpClient HttpClient
}

func NewHTMLChapterProvider(httpClient HttpClient) ChapterProvider {
	return htmlChapterProvider{
		httpClient: httpClient,
	}
}

func (provider htmlChapterProvider) GetChapter(ctx context.Context, chapterURL string) (domain.Chapter, error) {
	logger := logging.FromContext(ctx)

	base, err := url.Parse(chapterURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		logger.Error("invalid chapter url", "url", chapterURL)
		return domain.Chapter{}, fmt.Errorf("%w: invalid chapter url", e.ErrContentUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chapterURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		logger.Error(err.Error())
		reporting.Report(ctx, err)
		return domain.Chapter{}, fmt.Errorf("%w: %w", e.ErrContentUnavailable, err)
	}

	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "vi,en;q=0.8")

	resp, err := provider.httpClient.Do(req)
	if err != nil {
		err := fmt.Errorf("failed to fetch chapter: %w", err)
		logger.Error(err.Error())
		return domain.Chapter{}, fmt.Errorf("%w: %w", e.ErrContentUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("chapter fetch returned non-200", "status", resp.StatusCode)
		return domain.Chapter{}, fmt.Errorf("%w: upstream status %d", e.ErrContentUnavailable, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		logger.Error("chapter fetch returned non-html", "contentType", contentType)
		return domain.Chapter{}, fmt.Errorf("%w: unexpected content type %q", e.ErrContentUnavailable, contentType)
	}

	root, err := html.Parse(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to parse chapter html: %w", err)
		logger.Error(err.Error())
		reporting.Report(ctx, err)
		return domain.Chapter{}, fmt.Errorf("%w: %w", e.ErrContentUnavailable, err)
	}

	chapter := extractChapter(root, base)
	if chapter.Content == "" {
		logger.Error("no chapter content found", "url", chapterURL)
		return domain.Chapter{}, fmt.Errorf("%w: no content found", e.ErrContentUnavailable)
	}

	logger.Info("chapter extracted",
		"title", chapter.Title,
		"contentLength", len(chapter.Content),
		"hasNext", chapter.NextURL != "",
		"hasPrev", chapter.PrevURL != "",
	)

	return chapter, nil
}
