package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent = "WhatsApp/2.24.1.84"
	DefaultTimeout   = 10 * time.Second
	DefaultDelay     = 2 * time.Second

	maxBodySize = 5 << 20
)

var (
	ErrInvalidURL = errors.New("invalid URL")
	ErrNotHTML    = errors.New("response is not HTML")
	ErrTooLarge   = errors.New("response body too large")
)

// Fetcher downloads tweet pages. Successive fetches are paced by a limiter.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
}

func NewFetcher(httpClient *http.Client, userAgent string, delay time.Duration) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (f *Fetcher) Run(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch throttled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Cache-Control", "max-age=0")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(strings.ToLower(contentType), "html") {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > maxBodySize {
		slog.Warn("Page exceeds size limit", "url", u.String(), "limit", maxBodySize)
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBodySize)
	}

	slog.Debug("Page fetched", "url", u.String(), "status", resp.StatusCode, "bytes", len(data), "duration", time.Since(start))

	return data, nil
}
