package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/time/rate"

	"oispurts/internal/config"
	apperrors "oispurts/internal/errors"
)

// maxBodySize caps how much of a response is read
const maxBodySize = 32 << 20

// Accept headers for page and spreadsheet requests
const (
	AcceptHTML  = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	AcceptSheet = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,application/vnd.ms-excel,*/*"
	AcceptJSON  = "application/json,text/plain,*/*"
)

// Response is a fully read HTTP response
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client is a paced HTTP session with a cookie jar shared across requests,
// so the cookies set by the landing page are sent with the download.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	cfg     config.ScraperConfig
	logger  *slog.Logger
	wait    func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for the configured site
func NewClient(cfg config.ScraperConfig, logger *slog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Client{
		http:    &http.Client{Jar: jar},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "scraper_client")),
		wait:    sleepContext,
	}, nil
}

// Get fetches url, retrying up to retries extra times. A 429 backs off
// for 2^attempt seconds, a transport error waits RetryDelay, any other
// non-200 status is retried immediately.
func (c *Client) Get(ctx context.Context, url, accept string, timeout time.Duration, retries int) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperrors.NewNetworkError("request cancelled", err)
		}

		c.logger.DebugContext(ctx, "Making request",
			slog.String("url", url),
			slog.Int("attempt", attempt+1))

		resp, err := c.do(ctx, url, accept, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.NewNetworkError("request cancelled", ctx.Err())
			}
			lastErr = err
			c.logger.WarnContext(ctx, "Request failed",
				slog.String("url", url),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			if attempt < retries {
				if err := c.wait(ctx, c.cfg.RetryDelay); err != nil {
					return nil, apperrors.NewNetworkError("request cancelled", err)
				}
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			lastErr = fmt.Errorf("rate limited by %s", url)
			c.logger.WarnContext(ctx, "Rate limited, backing off",
				slog.String("url", url),
				slog.Duration("wait", backoff))
			if err := c.wait(ctx, backoff); err != nil {
				return nil, apperrors.NewNetworkError("request cancelled", err)
			}
		default:
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			c.logger.WarnContext(ctx, "Unexpected status",
				slog.String("url", url),
				slog.Int("status", resp.StatusCode))
		}
	}

	c.logger.ErrorContext(ctx, "All request attempts failed", slog.String("url", url))
	return nil, apperrors.NewNetworkError("fetch failed after retries", lastErr).
		WithContext("url", url).
		WithContext("attempts", retries+1)
}

func (c *Client) do(ctx context.Context, url, accept string, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// setHeaders makes the request look like a browser navigation
func (c *Client) setHeaders(req *http.Request, accept string) {
	if accept == "" {
		accept = AcceptHTML
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	if accept == AcceptHTML {
		req.Header.Set("Sec-Fetch-Site", "none")
		req.Header.Set("Cache-Control", "max-age=0")
	} else {
		req.Header.Set("Sec-Fetch-Site", "same-origin")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
