package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"

	"oispurts/internal/config"
)

// BrowserLocator renders the page in Chrome and searches the resulting
// DOM, for pages that build their download links with script
type BrowserLocator struct {
	cfg    config.ScraperConfig
	logger *slog.Logger
}

// NewBrowserLocator creates a chromedp backed locator
func NewBrowserLocator(cfg config.ScraperConfig, logger *slog.Logger) *BrowserLocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserLocator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "browser_locator")),
	}
}

// LocateDownloadURL loads pageURL and returns the first export link
// found in the rendered HTML
func (b *BrowserLocator) LocateDownloadURL(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Headless),
		chromedp.UserAgent(b.cfg.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	timeout := b.cfg.BrowserTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	browserCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	start := time.Now()
	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", pageURL, err)
	}

	b.logger.InfoContext(ctx, "Rendered page in browser",
		slog.String("url", pageURL),
		slog.Duration("duration", time.Since(start)),
		slog.Int("html_bytes", len(html)))

	link, ok := FindDownloadURL(html, pageURL, b.cfg.BaseURL)
	if !ok {
		return "", fmt.Errorf("no download link in rendered page %s", pageURL)
	}
	return link, nil
}
