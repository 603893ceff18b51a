package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newRobotsServer(t *testing.T, status int, body string, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != robotsTxtPath {
			w.WriteHeader(http.StatusOK)
			return
		}
		hits.Add(1)
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGateIsAllowed(t *testing.T) {
	t.Parallel()

	const robots = "User-agent: *\nDisallow: /private/\nCrawl-delay: 2\n"
	var hits atomic.Int64
	srv := newRobotsServer(t, http.StatusOK, robots, &hits)
	gate := New(srv.Client())
	ctx := context.Background()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "public page", path: "/public", want: true},
		{name: "root", path: "/", want: true},
		{name: "private page", path: "/private/x", want: false},
		{name: "private with query", path: "/private/x?a=1", want: false},
	}
	for _, tt := range tests {
		if got := gate.IsAllowed(ctx, srv.URL+tt.path, "testbot"); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}

	if hits.Load() != 1 {
		t.Errorf("expected 1 robots.txt request, got %d", hits.Load())
	}
	if gate.FetchCount() != 1 {
		t.Errorf("expected FetchCount 1, got %d", gate.FetchCount())
	}
}

func TestGateSingleFlight(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newRobotsServer(t, http.StatusOK, "User-agent: *\nDisallow:\n", &hits)
	gate := New(srv.Client())

	const n = 32
	var wg sync.WaitGroup
	var allowed atomic.Int64
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if gate.IsAllowed(context.Background(), fmt.Sprintf("%s/page/%d", srv.URL, i), "") {
				allowed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if hits.Load() != 1 {
		t.Errorf("expected exactly 1 robots.txt request, got %d", hits.Load())
	}
	if allowed.Load() != n {
		t.Errorf("expected %d allowed, got %d", n, allowed.Load())
	}
}

func TestGateFailClosed(t *testing.T) {
	t.Parallel()

	t.Run("404 denies", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int64
		srv := newRobotsServer(t, http.StatusNotFound, "", &hits)
		gate := New(srv.Client())
		if gate.IsAllowed(context.Background(), srv.URL+"/page", "") {
			t.Error("expected deny when robots.txt is missing")
		}
		p, ok := gate.Policy(srv.URL + "/page")
		if !ok {
			t.Fatal("expected cached policy")
		}
		if p.Rules != nil || p.AllowAll {
			t.Errorf("expected deny-all policy, got %+v", p)
		}
	})

	t.Run("5xx denies", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int64
		srv := newRobotsServer(t, http.StatusInternalServerError, "", &hits)
		gate := New(srv.Client())
		if gate.IsAllowed(context.Background(), srv.URL+"/page", "") {
			t.Error("expected deny on server error")
		}
		// The failure is cached, not retried.
		gate.IsAllowed(context.Background(), srv.URL+"/other", "")
		if hits.Load() != 1 {
			t.Errorf("expected 1 robots.txt request, got %d", hits.Load())
		}
	})

	t.Run("unreachable host denies", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()
		gate := New(&http.Client{Timeout: time.Second})
		if gate.IsAllowed(context.Background(), addr+"/page", "") {
			t.Error("expected deny when robots.txt cannot be fetched")
		}
	})

	t.Run("fail open allows", func(t *testing.T) {
		t.Parallel()
		var hits atomic.Int64
		srv := newRobotsServer(t, http.StatusNotFound, "", &hits)
		gate := New(srv.Client(), WithFailOpen(true))
		if !gate.IsAllowed(context.Background(), srv.URL+"/page", "") {
			t.Error("expected allow in fail-open mode")
		}
	})
}

func TestGateDisabled(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newRobotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /\n", &hits)
	gate := New(srv.Client(), WithEnabled(false))

	if !gate.IsAllowed(context.Background(), srv.URL+"/anything", "") {
		t.Error("expected allow when compliance is disabled")
	}
	if hits.Load() != 0 {
		t.Errorf("expected no network access, got %d requests", hits.Load())
	}
	if gate.FetchCount() != 0 {
		t.Errorf("expected FetchCount 0, got %d", gate.FetchCount())
	}
}

func TestGateMalformedURL(t *testing.T) {
	t.Parallel()

	gate := New(nil)
	if gate.IsAllowed(context.Background(), "not a url", "") {
		t.Error("expected deny for malformed url")
	}
	if gate.FetchCount() != 0 {
		t.Errorf("expected no fetch, got %d", gate.FetchCount())
	}
}

func TestGateCrawlDelay(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newRobotsServer(t, http.StatusOK, "User-agent: *\nCrawl-delay: 2\n", &hits)
	gate := New(srv.Client())

	if d := gate.CrawlDelay(srv.URL+"/a", ""); d != 0 {
		t.Errorf("expected 0 before fetch, got %v", d)
	}
	gate.IsAllowed(context.Background(), srv.URL+"/", "")
	if d := gate.CrawlDelay(srv.URL+"/a", "anybot"); d != 2*time.Second {
		t.Errorf("expected 2s, got %v", d)
	}
}

func TestGateTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	gate := New(srv.Client(), WithTimeout(200*time.Millisecond))

	start := time.Now()
	if gate.IsAllowed(context.Background(), srv.URL+"/page", "") {
		t.Error("expected deny when robots.txt does not answer in time")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected robots check to give up after the timeout, took %v", elapsed)
	}

	// The timed out host is decided for the run, not fetched again.
	gate.IsAllowed(context.Background(), srv.URL+"/other", "")
	if gate.FetchCount() != 1 {
		t.Errorf("expected FetchCount 1, got %d", gate.FetchCount())
	}
}

func TestGatePolicyPerOrigin(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := newRobotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /private/\n", &hits)
	gate := New(srv.Client())

	if !gate.IsAllowed(context.Background(), srv.URL+"/public", "") {
		t.Fatal("expected allow for public path")
	}

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		rawURL string
		want   bool
	}{
		{name: "same origin", rawURL: "http://" + u.Host + "/x", want: true},
		{name: "host case is ignored", rawURL: "HTTP://" + strings.ToUpper(u.Host) + "/x", want: true},
		{name: "other scheme", rawURL: "https://" + u.Host + "/x", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, ok := gate.Policy(tt.rawURL); ok != tt.want {
				t.Errorf("expected cached=%v for %s, got %v", tt.want, tt.rawURL, ok)
			}
		})
	}
}

func TestRequestPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "https://example.com", want: "/"},
		{raw: "https://example.com/a/b", want: "/a/b"},
		{raw: "https://example.com/a?x=1&y=2", want: "/a?x=1&y=2"},
		{raw: "https://example.com/a%20b", want: "/a%20b"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.raw, err)
		}
		if got := requestPath(u); got != tt.want {
			t.Errorf("requestPath(%q): expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}
