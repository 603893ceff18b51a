package robots

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/webcrawler/internal/log"
)

// robotsTxtPath is the well-known path for robots.txt files.
const robotsTxtPath = "/robots.txt"

// defaultMaxBodySize limits the size of robots.txt responses we will read.
const defaultMaxBodySize = 512 * 1024 // 512 KB

// defaultTimeout bounds a single robots.txt request.
const defaultTimeout = 10 * time.Second

// Policy is the cached robots.txt outcome for one host.
type Policy struct {
	// FetchedAt is when the robots.txt request completed.
	FetchedAt time.Time

	// Rules is the parsed robots.txt, nil when the fetch failed.
	Rules *robotstxt.RobotsData

	// AllowAll decides every path when Rules is nil: true in fail-open
	// mode, false (deny all) otherwise.
	AllowAll bool
}

// Allows reports whether path may be fetched by userAgent.
func (p *Policy) Allows(path, userAgent string) bool {
	if p.Rules == nil {
		return p.AllowAll
	}
	return p.Rules.TestAgent(path, userAgent)
}

// Gate checks URLs against per-host robots.txt policies.
// It is safe for concurrent use.
type Gate struct {
	client      *http.Client
	enabled     bool
	failOpen    bool
	userAgent   string
	maxBodySize int64
	timeout     time.Duration
	logger      *slog.Logger

	flight singleflight.Group

	mu    sync.RWMutex
	cache map[string]*Policy

	fetches atomic.Int64
}

// Option configures a Gate.
type Option func(*Gate)

// WithEnabled turns robots.txt compliance on or off. It is on by default.
func WithEnabled(enabled bool) Option {
	return func(g *Gate) {
		g.enabled = enabled
	}
}

// WithFailOpen makes fetch and parse failures allow every path instead
// of denying them.
func WithFailOpen(failOpen bool) Option {
	return func(g *Gate) {
		g.failOpen = failOpen
	}
}

// WithUserAgent sets the User-Agent of robots.txt requests and the default
// agent matched against robots.txt groups.
func WithUserAgent(ua string) Option {
	return func(g *Gate) {
		g.userAgent = ua
	}
}

// WithMaxBodySize limits how many bytes of a robots.txt are read.
func WithMaxBodySize(size int64) Option {
	return func(g *Gate) {
		if size > 0 {
			g.maxBodySize = size
		}
	}
}

// WithTimeout bounds each robots.txt request. A host that does not answer
// in time gets the fallback policy.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger for fetch failures.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// New creates a Gate that fetches robots.txt files with client.
func New(client *http.Client, opts ...Option) *Gate {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	g := &Gate{
		client:      client,
		enabled:     true,
		userAgent:   "*",
		maxBodySize: defaultMaxBodySize,
		timeout:     defaultTimeout,
		cache:       make(map[string]*Policy),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.Discard()
	}
	return g
}

// Enabled reports whether compliance checks are performed.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// IsAllowed reports whether rawURL may be fetched by userAgent. An empty
// userAgent falls back to the gate's own. Malformed URLs are denied.
func (g *Gate) IsAllowed(ctx context.Context, rawURL, userAgent string) bool {
	if !g.enabled {
		return true
	}

	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		g.logger.Warn("robots check on malformed url", "url", rawURL, "error", err)
		return false
	}
	if userAgent == "" {
		userAgent = g.userAgent
	}

	policy := g.policy(ctx, target)
	return policy.Allows(requestPath(target), userAgent)
}

// Policy returns the cached policy for the origin of rawURL, if one has
// been fetched. Policies are kept per scheme and host.
func (g *Gate) Policy(rawURL string) (*Policy, bool) {
	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		return nil, false
	}
	return g.cached(originKey(target))
}

// CrawlDelay returns the Crawl-delay robots.txt declares for userAgent on
// the origin of rawURL, or zero when none is known.
func (g *Gate) CrawlDelay(rawURL, userAgent string) time.Duration {
	p, ok := g.Policy(rawURL)
	if !ok || p.Rules == nil {
		return 0
	}
	if userAgent == "" {
		userAgent = g.userAgent
	}
	group := p.Rules.FindGroup(userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// FetchCount returns how many robots.txt requests the gate has sent.
func (g *Gate) FetchCount() int64 {
	return g.fetches.Load()
}

func (g *Gate) cached(key string) (*Policy, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.cache[key]
	return p, ok
}

// policy returns the origin's policy, fetching it once if needed.
func (g *Gate) policy(ctx context.Context, target *url.URL) *Policy {
	key := originKey(target)
	if p, ok := g.cached(key); ok {
		return p
	}

	v, _, _ := g.flight.Do(key, func() (any, error) {
		if p, ok := g.cached(key); ok {
			return p, nil
		}
		p, err := g.fetch(ctx, key)
		if err != nil {
			g.logger.Warn("robots.txt unavailable",
				"origin", key,
				"error", err,
				"allow_all", p.AllowAll,
			)
			if ctx.Err() != nil {
				// A cancelled caller must not decide the host for the whole run.
				return p, nil
			}
		}
		g.mu.Lock()
		g.cache[key] = p
		g.mu.Unlock()
		return p, nil
	})
	return v.(*Policy)
}

// fetch downloads and parses the robots.txt of origin. On error it still
// returns the fallback policy.
func (g *Gate) fetch(ctx context.Context, origin string) (*Policy, error) {
	fallback := &Policy{FetchedAt: time.Now(), AllowAll: g.failOpen}
	robotsURL := origin + robotsTxtPath

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return fallback, fmt.Errorf("build robots request: %w", err)
	}
	if g.userAgent != "" && g.userAgent != "*" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	g.fetches.Add(1)
	resp, err := g.client.Do(req)
	if err != nil {
		return fallback, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fallback, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBodySize))
	if err != nil {
		return fallback, fmt.Errorf("read robots.txt: %w", err)
	}

	rules, err := robotstxt.FromBytes(body)
	if err != nil {
		return fallback, fmt.Errorf("parse robots.txt: %w", err)
	}

	return &Policy{FetchedAt: time.Now(), Rules: rules}, nil
}

// originKey returns the lowercase scheme://host a policy is cached under.
func originKey(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + strings.ToLower(u.Host)
}

// requestPath returns the path and query matched against robots rules.
func requestPath(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}
