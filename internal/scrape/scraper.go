// Package scrape fetches raw HTML for the spider stage: a plain HTTP
// fast path with retries, an optional headless-renderer fallback for
// JS-heavy pages, robots.txt checks, and per-domain rate limiting.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// RenderMode controls when the headless renderer is used.
type RenderMode string

const (
	RenderAuto   RenderMode = "auto"   // fall back when the page looks JS-rendered
	RenderAlways RenderMode = "always" // skip the HTTP fast path entirely
	RenderNever  RenderMode = "never"  // HTTP only
)

// ParseRenderMode maps a config string onto a RenderMode, defaulting to auto.
func ParseRenderMode(s string) RenderMode {
	switch RenderMode(strings.ToLower(s)) {
	case RenderAlways:
		return RenderAlways
	case RenderNever:
		return RenderNever
	default:
		return RenderAuto
	}
}

// Document is one successfully scraped page, as handed to the refiner.
type Document struct {
	URL        string `json:"url"`
	HTMLPath   string `json:"html_path"`
	StatusCode int    `json:"status_code"`
	Method     string `json:"method"`
	Title      string `json:"title"`
	Language   string `json:"language"`
}

// Result is the outcome of fetching a single URL.
type Result struct {
	URL        string
	HTML       string
	StatusCode int
	Method     string // "http" or "renderer"
	Title      string
	Language   string
}

// Renderer fetches a page with a headless browser. Implementations wrap
// an external rendering service; the scraper only needs the final DOM.
type Renderer interface {
	Render(ctx context.Context, url string) (*Result, error)
}

const defaultUserAgent = "forge/0.1 (+https://github.com/dataforge-ai/forge)"

// ClientConfig configures a scrape Client.
type ClientConfig struct {
	UserAgent     string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	Renderer      Renderer
	Logger        *slog.Logger

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client scrapes URLs over HTTP with an optional renderer fallback.
type Client struct {
	http          *http.Client
	userAgent     string
	retryAttempts int
	retryDelay    time.Duration
	renderer      Renderer
	robots        *robotsCache
	logger        *slog.Logger
}

// NewClient builds a scrape client with sane defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		http:          httpClient,
		userAgent:     cfg.UserAgent,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		renderer:      cfg.Renderer,
		robots:        newRobotsCache(httpClient, cfg.UserAgent),
		logger:        cfg.Logger,
	}
}

// Allowed reports whether robots.txt permits fetching url. Unreachable
// or missing robots.txt allows the fetch.
func (c *Client) Allowed(ctx context.Context, url string) bool {
	return c.robots.allowed(ctx, url)
}

// Fetch retrieves url according to mode. The HTTP fast path retries
// transient failures with exponential backoff (base delay, doubling).
func (c *Client) Fetch(ctx context.Context, url string, mode RenderMode) (*Result, error) {
	if mode == RenderAlways {
		return c.render(ctx, url)
	}

	res, err := c.fetchHTTP(ctx, url)
	if err != nil {
		if mode == RenderAuto && c.renderer != nil {
			c.logger.Info("http fetch failed, falling back to renderer", "url", url, "error", err)
			return c.render(ctx, url)
		}
		return nil, err
	}

	if mode == RenderAuto && needsRender(res.HTML) {
		if c.renderer == nil {
			c.logger.Debug("page looks JS-rendered but no renderer configured", "url", url)
			return res, nil
		}
		c.logger.Info("page looks JS-rendered, falling back to renderer", "url", url)
		rendered, rerr := c.render(ctx, url)
		if rerr != nil {
			// Keep the static result rather than failing the URL.
			c.logger.Warn("renderer fallback failed", "url", url, "error", rerr)
			return res, nil
		}
		return rendered, nil
	}

	return res, nil
}

func (c *Client) fetchHTTP(ctx context.Context, url string) (*Result, error) {
	var out *Result

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", c.userAgent)

			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			if resp.StatusCode != http.StatusOK {
				err = fmt.Errorf("HTTP %d", resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(err)
				}
				return err
			}

			language := ""
			if cl := resp.Header.Get("Content-Language"); cl != "" {
				language = strings.TrimSpace(strings.Split(cl, ",")[0])
			}

			out = &Result{
				URL:        url,
				HTML:       string(body),
				StatusCode: resp.StatusCode,
				Method:     "http",
				Language:   language,
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.retryAttempts)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return out, nil
}

func (c *Client) render(ctx context.Context, url string) (*Result, error) {
	if c.renderer == nil {
		return nil, fmt.Errorf("renderer not configured")
	}
	res, err := c.renderer.Render(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}
	res.Method = "renderer"
	return res, nil
}

// jsRootMarkers are container ids used by common JS frameworks. A page
// whose body has one of these but no paragraph or article tags is very
// likely rendered client-side.
var jsRootMarkers = []string{
	`id="__next"`, // Next.js
	`id="app"`,    // Vue
	`id="root"`,   // React
	"<noscript>",
}

// needsRender is the heuristic for detecting JS-rendered pages.
func needsRender(html string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(html))
	if len(trimmed) < 500 {
		return true
	}

	body := trimmed
	if i := strings.Index(trimmed, "<body"); i >= 0 {
		body = trimmed[i:]
	}

	if strings.Contains(body, "<p") || strings.Contains(body, "<article") {
		return false
	}
	for _, marker := range jsRootMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
