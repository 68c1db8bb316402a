package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

var _ domain.Crawler = (*BrowserCrawler)(nil)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

// BrowserCrawler renders a page in headless Chrome and returns the visible
// text of its body. Used when no scrape service is configured.
type BrowserCrawler struct {
	settle time.Duration
	logger *slog.Logger
}

// NewBrowserCrawler creates a crawler that waits settle after navigation
// before reading the page.
func NewBrowserCrawler(settle time.Duration, logger *slog.Logger) *BrowserCrawler {
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &BrowserCrawler{
		settle: settle,
		logger: logger.With(slog.String("component", "browser_crawler")),
	}
}

// Fetch navigates to url and returns the page title and body text.
func (b *BrowserCrawler) Fetch(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(defaultUserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		b.logger.Debug(fmt.Sprintf(format, v...))
	}))
	defer cancel()

	var title, text string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(b.settle),
		chromedp.Title(&title),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("crawl/browser: fetch %s: %w", url, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("crawl/browser: fetch %s: empty document", url)
	}
	if title != "" {
		text = "# " + strings.TrimSpace(title) + "\n\n" + text
	}
	return text, nil
}
