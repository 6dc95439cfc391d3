package scraper

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"oispurts/internal/config"
	apperrors "oispurts/internal/errors"
	"oispurts/internal/table"
)

// Result is one downloaded and decoded export
type Result struct {
	Table    *table.Table
	SourceID string
	URL      string
	Size     int
	Fallback bool
	Duration time.Duration
}

// Fetcher retrieves the latest OI spurts table
type Fetcher interface {
	FetchLatestTable(ctx context.Context) (*Result, error)
}

// RawStore keeps downloaded exports on disk
type RawStore interface {
	SaveRaw(data []byte, at time.Time, ext string) (string, error)
}

// PageLocator finds the export link on a page by other means than
// plain HTTP, such as a headless browser
type PageLocator interface {
	LocateDownloadURL(ctx context.Context, pageURL string) (string, error)
}

// HTTPFetcher downloads the export the way a browser session would:
// landing page first, then the discovered download link, then the
// fallback JSON endpoints
type HTTPFetcher struct {
	client  *Client
	cfg     config.ScraperConfig
	raw     RawStore
	locator PageLocator
	logger  *slog.Logger
	now     func() time.Time
}

// NewHTTPFetcher creates a fetcher. raw and locator may be nil.
func NewHTTPFetcher(client *Client, cfg config.ScraperConfig, raw RawStore, locator PageLocator, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		client:  client,
		cfg:     cfg,
		raw:     raw,
		locator: locator,
		logger:  logger.With(slog.String("component", "fetcher")),
		now:     time.Now,
	}
}

// FetchLatestTable runs the primary download and, when it fails, the
// fallback endpoints. A payload that cannot be decoded is a decode
// failure; everything else that goes wrong is a network failure.
func (f *HTTPFetcher) FetchLatestTable(ctx context.Context) (*Result, error) {
	start := f.now()

	data, url, err := f.primary(ctx)
	if err == nil {
		res, err := f.finish(ctx, data, url, false)
		if res != nil {
			res.Duration = f.now().Sub(start)
		}
		return res, err
	}
	if ctx.Err() != nil {
		return nil, apperrors.NewNetworkError("fetch cancelled", ctx.Err())
	}

	f.logger.WarnContext(ctx, "Primary scraping failed, trying fallback endpoints",
		slog.String("error", err.Error()))

	res, ferr := f.fallback(ctx)
	if ferr != nil {
		f.logger.ErrorContext(ctx, "All scraping methods failed", slog.String("error", ferr.Error()))
		return nil, ferr
	}
	res.Duration = f.now().Sub(start)
	return res, nil
}

func (f *HTTPFetcher) primary(ctx context.Context) ([]byte, string, error) {
	f.logger.InfoContext(ctx, "Starting OI spurts scrape", slog.String("page", f.cfg.PageURL))

	page, err := f.client.Get(ctx, f.cfg.PageURL, AcceptHTML, f.cfg.RequestTimeout, f.cfg.MaxRetries)
	if err != nil {
		return nil, "", err
	}

	url, ok := FindDownloadURL(string(page.Body), f.cfg.PageURL, f.cfg.BaseURL)
	if !ok {
		url, ok = f.probe(ctx)
	}
	if !ok && f.locator != nil {
		located, lerr := f.locator.LocateDownloadURL(ctx, f.cfg.PageURL)
		if lerr != nil {
			f.logger.WarnContext(ctx, "Browser locator failed", slog.String("error", lerr.Error()))
		} else {
			url, ok = located, located != ""
		}
	}
	if !ok {
		return nil, "", apperrors.NewNetworkError("could not find download URL", nil).
			WithContext("page", f.cfg.PageURL)
	}

	f.logger.InfoContext(ctx, "Found download URL", slog.String("url", url))
	data, err := f.download(ctx, url)
	if err != nil {
		return nil, "", err
	}
	return data, url, nil
}

// probe tries the well-known endpoints once each
func (f *HTTPFetcher) probe(ctx context.Context) (string, bool) {
	for _, endpoint := range ProbeEndpoints {
		url := resolveLink(endpoint, f.cfg.PageURL, f.cfg.BaseURL)
		f.logger.DebugContext(ctx, "Testing endpoint", slog.String("url", url))

		resp, err := f.client.Get(ctx, url, AcceptSheet, f.cfg.RequestTimeout, 0)
		if err != nil {
			continue
		}
		if IsSpreadsheetContentType(resp.ContentType) {
			f.logger.InfoContext(ctx, "Found working endpoint", slog.String("url", url))
			return url, true
		}
	}
	return "", false
}

// download fetches the export with a doubled timeout and rejects error
// pages and suspiciously small bodies
func (f *HTTPFetcher) download(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.Get(ctx, url, AcceptSheet, 2*f.cfg.RequestTimeout, f.cfg.MaxRetries)
	if err != nil {
		return nil, err
	}

	if !IsSpreadsheetContentType(resp.ContentType) {
		f.logger.WarnContext(ctx, "Unexpected content type",
			slog.String("url", url),
			slog.String("content_type", resp.ContentType))
		if looksLikeHTML(resp.Body) {
			return nil, apperrors.NewNetworkError("received HTML instead of a spreadsheet", nil).
				WithContext("url", url)
		}
	}

	if len(resp.Body) < f.cfg.MinFileSize {
		return nil, apperrors.NewNetworkError("download too small", nil).
			WithContext("url", url).
			WithContext("size", len(resp.Body))
	}

	f.logger.InfoContext(ctx, "Downloaded export",
		slog.String("url", url),
		slog.Int("size_bytes", len(resp.Body)))
	return resp.Body, nil
}

// fallback walks the configured JSON endpoints. JSON bodies are decoded
// directly. Other bodies are kept when large enough to be a real export.
func (f *HTTPFetcher) fallback(ctx context.Context) (*Result, error) {
	var lastErr error = apperrors.NewNetworkError("no fallback endpoints configured", nil)

	for _, url := range f.cfg.FallbackURLs {
		f.logger.InfoContext(ctx, "Trying fallback URL", slog.String("url", url))

		resp, err := f.client.Get(ctx, url, AcceptJSON, f.cfg.RequestTimeout, f.cfg.MaxRetries)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		format := table.DetectFormat(resp.Body)
		if format != table.FormatJSON && len(resp.Body) <= f.cfg.MinFileSize {
			lastErr = apperrors.NewNetworkError("fallback body too small", nil).WithContext("url", url)
			continue
		}

		res, err := f.finish(ctx, resp.Body, url, true)
		if err != nil {
			lastErr = err
			continue
		}
		return res, nil
	}

	return nil, lastErr
}

// finish decodes the payload and saves the raw bytes
func (f *HTTPFetcher) finish(ctx context.Context, data []byte, url string, fallback bool) (*Result, error) {
	t, err := table.Decode(data)
	if err != nil {
		return nil, err
	}

	at := f.now()
	sourceID := config.RawFileName(at, string(t.Format))
	if f.raw != nil {
		path, err := f.raw.SaveRaw(data, at, string(t.Format))
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to save raw export", slog.String("error", err.Error()))
		} else {
			sourceID = filepath.Base(path)
		}
	}

	return &Result{
		Table:    t,
		SourceID: sourceID,
		URL:      url,
		Size:     len(data),
		Fallback: fallback,
	}, nil
}
