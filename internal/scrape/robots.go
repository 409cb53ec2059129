package scrape

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsCache fetches and caches robots.txt per host for the lifetime
// of the scrape client.
type robotsCache struct {
	http      *http.Client
	userAgent string

	mu    sync.Mutex
	hosts map[string]*robotstxt.RobotsData // nil entry = fetch failed, allow all
}

func newRobotsCache(httpClient *http.Client, userAgent string) *robotsCache {
	return &robotsCache{
		http:      httpClient,
		userAgent: userAgent,
		hosts:     make(map[string]*robotstxt.RobotsData),
	}
}

func (rc *robotsCache) allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	data, err := rc.lookup(ctx, u)
	if err != nil || data == nil {
		// Unreachable robots.txt allows the scrape.
		return true
	}
	return data.TestAgent(u.Path, rc.userAgent)
}

func (rc *robotsCache) lookup(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	rc.mu.Lock()
	if data, ok := rc.hosts[u.Host]; ok {
		rc.mu.Unlock()
		return data, nil
	}
	rc.mu.Unlock()

	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", rc.userAgent)

	var data *robotstxt.RobotsData
	resp, err := rc.http.Do(req)
	if err == nil {
		body, rerr := io.ReadAll(resp.Body)
		resp.Body.Close()
		// A 5xx is treated like an unreachable robots.txt: the scrape
		// proceeds rather than being blocked by a flaky host.
		if rerr == nil && resp.StatusCode < 500 {
			if parsed, perr := robotstxt.FromStatusAndBytes(resp.StatusCode, body); perr == nil {
				data = parsed
			}
		}
	}

	rc.mu.Lock()
	rc.hosts[u.Host] = data
	rc.mu.Unlock()

	return data, nil
}
