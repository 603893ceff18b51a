package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/nao1215/webcrawler/internal/model"
)

func TestFetcherClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantKind model.OutcomeKind
	}{
		{name: "ok with body", status: http.StatusOK, body: "<html></html>", wantKind: model.OutcomeSuccess},
		{name: "ok empty body", status: http.StatusOK, body: "", wantKind: model.OutcomeFatal},
		{name: "not found", status: http.StatusNotFound, body: "missing", wantKind: model.OutcomeFatal},
		{name: "forbidden", status: http.StatusForbidden, body: "no", wantKind: model.OutcomeFatal},
		{name: "too many requests", status: http.StatusTooManyRequests, body: "slow down", wantKind: model.OutcomeRetryable},
		{name: "internal error", status: http.StatusInternalServerError, body: "boom", wantKind: model.OutcomeRetryable},
		{name: "service unavailable", status: http.StatusServiceUnavailable, body: "", wantKind: model.OutcomeRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			f := New(srv.Client())
			got := f.Fetch(context.Background(), srv.URL+"/page", time.Second)
			if got.Kind != tt.wantKind {
				t.Fatalf("expected %s, got %s (%s)", tt.wantKind, got.Kind, got.Reason)
			}
			if got.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, got.StatusCode)
			}
			if got.IsSuccess() && string(got.Body) != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, got.Body)
			}
		})
	}
}

func TestFetcherSendsHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Test")
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(srv.Client(),
		WithUserAgent("testbot/1.0"),
		WithHeaders(map[string]string{"X-Test": "yes"}),
	)
	if out := f.Fetch(context.Background(), srv.URL, time.Second); !out.IsSuccess() {
		t.Fatalf("expected success, got %s (%s)", out.Kind, out.Reason)
	}
	if gotUA != "testbot/1.0" {
		t.Errorf("expected user agent testbot/1.0, got %q", gotUA)
	}
	if gotCustom != "yes" {
		t.Errorf("expected X-Test yes, got %q", gotCustom)
	}
}

func TestFetcherTimeoutIsRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	f := New(srv.Client())
	got := f.Fetch(context.Background(), srv.URL, 50*time.Millisecond)
	if got.Kind != model.OutcomeRetryable {
		t.Fatalf("expected retryable, got %s (%s)", got.Kind, got.Reason)
	}
	if got.Reason != "timeout" {
		t.Errorf("expected reason timeout, got %q", got.Reason)
	}
}

func TestFetcherNetworkErrorIsRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	got := New(nil).Fetch(context.Background(), addr, time.Second)
	if got.Kind != model.OutcomeRetryable {
		t.Fatalf("expected retryable, got %s (%s)", got.Kind, got.Reason)
	}
}

func TestFetcherCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := New(nil).Fetch(ctx, "https://example.com", time.Second)
	if got.Kind != model.OutcomeFatal || got.Reason != "cancelled" {
		t.Fatalf("expected fatal cancelled, got %s (%s)", got.Kind, got.Reason)
	}
}

func TestFetcherBadURLIsFatal(t *testing.T) {
	t.Parallel()

	got := New(nil).Fetch(context.Background(), "http://[::1", time.Second)
	if got.Kind != model.OutcomeFatal {
		t.Fatalf("expected fatal, got %s (%s)", got.Kind, got.Reason)
	}
}

func TestFetcherDecoding(t *testing.T) {
	t.Parallel()

	t.Run("gzip", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte("<p>compressed</p>"))
		_ = gz.Close()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write(buf.Bytes())
		}))
		defer srv.Close()

		got := New(srv.Client()).Fetch(context.Background(), srv.URL, time.Second)
		if string(got.Body) != "<p>compressed</p>" {
			t.Errorf("expected decompressed body, got %q", got.Body)
		}
	})

	t.Run("brotli", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		br := brotli.NewWriter(&buf)
		_, _ = br.Write([]byte("<p>brotli</p>"))
		_ = br.Close()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "br")
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write(buf.Bytes())
		}))
		defer srv.Close()

		got := New(srv.Client()).Fetch(context.Background(), srv.URL, time.Second)
		if string(got.Body) != "<p>brotli</p>" {
			t.Errorf("expected decompressed body, got %q", got.Body)
		}
	})

	t.Run("latin1 to utf8", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte("caf\xe9"))
		}))
		defer srv.Close()

		got := New(srv.Client()).Fetch(context.Background(), srv.URL, time.Second)
		if string(got.Body) != "café" {
			t.Errorf("expected café, got %q", got.Body)
		}
	})

	t.Run("body is truncated at limit", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(strings.Repeat("a", 100)))
		}))
		defer srv.Close()

		got := New(srv.Client(), WithMaxBodySize(10)).Fetch(context.Background(), srv.URL, time.Second)
		if len(got.Body) != 10 {
			t.Errorf("expected 10 bytes, got %d", len(got.Body))
		}
	})
}

func TestFetcherFinalURLFollowsRedirect(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("moved"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got := New(srv.Client()).Fetch(context.Background(), srv.URL+"/old", time.Second)
	if !got.IsSuccess() {
		t.Fatalf("expected success, got %s (%s)", got.Kind, got.Reason)
	}
	if got.FinalURL != srv.URL+"/new" {
		t.Errorf("expected final url %s/new, got %s", srv.URL, got.FinalURL)
	}
}
