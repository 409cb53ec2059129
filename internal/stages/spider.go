// Package stages implements the five pipeline stages. Each stage is
// constructed per job with its config slice baked in and consumes the
// previous stage's output.
package stages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dataforge-ai/forge/internal/pipeline"
	"github.com/dataforge-ai/forge/internal/scrape"
	"github.com/dataforge-ai/forge/internal/store"
)

// Spider scrapes the job's URLs and saves raw HTML under
// {dataDir}/raw/{jobID}. Individual URL failures are recorded, not
// fatal; the stage succeeds with whatever it could fetch.
type Spider struct {
	client  *scrape.Client
	dataDir string
	jobID   string
	cfg     store.ScrapingConfig
	logger  *slog.Logger
}

// NewSpider builds the spider stage for one job.
func NewSpider(client *scrape.Client, dataDir, jobID string, cfg store.ScrapingConfig, logger *slog.Logger) *Spider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Spider{client: client, dataDir: dataDir, jobID: jobID, cfg: cfg, logger: logger}
}

func (s *Spider) Name() string { return pipeline.StageSpider }

// Run scrapes all URLs concurrently, bounded by the configured
// max_concurrent, pacing requests per domain.
func (s *Spider) Run(ctx context.Context, input any) (*pipeline.Result, error) {
	urls, ok := input.([]string)
	if !ok {
		return nil, fmt.Errorf("invalid input: expected []string of URLs, got %T", input)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("invalid input: no URLs to scrape")
	}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid input: %q is not an absolute URL", raw)
		}
	}

	rawDir := filepath.Join(s.dataDir, "raw", s.jobID)
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw dir: %w", err)
	}

	mode := scrape.ParseRenderMode(s.cfg.UseRenderer)
	limiter := scrape.NewDomainLimiter(s.cfg.RateLimit, s.cfg.MaxConcurrent)

	var (
		mu            sync.Mutex
		docs          []scrape.Document
		errs          []string
		failed        int
		robotsBlocked int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrent)

	for _, rawURL := range urls {
		g.Go(func() error {
			u, _ := url.Parse(rawURL)

			if s.cfg.RespectRobotsTxt && !s.client.Allowed(gctx, rawURL) {
				s.logger.Info("blocked by robots.txt", "url", rawURL)
				mu.Lock()
				robotsBlocked++
				mu.Unlock()
				return nil
			}

			if err := limiter.Acquire(gctx, u.Host); err != nil {
				return err
			}
			res, err := s.client.Fetch(gctx, rawURL, mode)
			limiter.Release(u.Host)

			if err != nil {
				s.logger.Warn("scrape failed", "url", rawURL, "error", err)
				mu.Lock()
				failed++
				errs = append(errs, fmt.Sprintf("failed to scrape %s: %v", rawURL, err))
				mu.Unlock()
				return nil
			}

			sum := sha256.Sum256([]byte(rawURL))
			htmlPath := filepath.Join(rawDir, hex.EncodeToString(sum[:])[:16]+".html")
			if werr := os.WriteFile(htmlPath, []byte(res.HTML), 0o644); werr != nil {
				mu.Lock()
				failed++
				errs = append(errs, fmt.Sprintf("failed to save %s: %v", rawURL, werr))
				mu.Unlock()
				return nil
			}

			s.logger.Info("scraped", "url", rawURL, "method", res.Method, "status", res.StatusCode)
			mu.Lock()
			docs = append(docs, scrape.Document{
				URL:        rawURL,
				HTMLPath:   htmlPath,
				StatusCode: res.StatusCode,
				Method:     res.Method,
				Title:      res.Title,
				Language:   res.Language,
			})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &pipeline.Result{
		Success: true,
		Data:    docs,
		Errors:  errs,
		Stats: map[string]any{
			"total_urls":     len(urls),
			"successful":     len(docs),
			"failed":         failed,
			"robots_blocked": robotsBlocked,
		},
	}, nil
}
