package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"github.com/nao1215/webcrawler/internal/log"
	"github.com/nao1215/webcrawler/internal/model"
)

// DefaultMaxBodySize caps how much of a response body is read.
const DefaultMaxBodySize int64 = 5 * 1024 * 1024

// reasonCancelled is the Fatal reason for attempts refused after shutdown.
const reasonCancelled = "cancelled"

// Fetcher performs one HTTP GET per call. It is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	headers     map[string]string
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithHeaders adds extra request headers.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		maps.Copy(f.headers, headers)
	}
}

// WithMaxBodySize limits the decoded body size. Larger bodies are truncated.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher on top of client.
func New(client *http.Client, opts ...Option) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	f := &Fetcher{
		client:      client,
		headers:     make(map[string]string),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = log.Discard()
	}
	return f
}

// Client returns the underlying HTTP client so robots.txt requests can
// share its transport.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Fetch performs a single GET of rawURL bounded by timeout.
//
// An attempt that has started runs to completion even if ctx is cancelled
// meanwhile; a ctx that is already done yields Fatal("cancelled").
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) model.FetchOutcome {
	if ctx.Err() != nil {
		return model.Fatal(0, reasonCancelled)
	}

	attemptCtx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(attemptCtx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return model.Fatal(0, fmt.Sprintf("build request: %v", err))
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return model.Retryable(0, "timeout")
		}
		return model.Retryable(0, fmt.Sprintf("network error: %v", err))
	}
	defer resp.Body.Close()

	if outcome, ok := classifyStatus(resp.StatusCode); !ok {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return outcome
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := f.readBody(resp)
	if err != nil {
		if isTimeout(err) {
			return model.Retryable(resp.StatusCode, "timeout")
		}
		return model.Retryable(resp.StatusCode, fmt.Sprintf("read body: %v", err))
	}
	if len(body) == 0 {
		return model.Fatal(resp.StatusCode, "empty body")
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	f.logger.Debug("fetched",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"content_type", contentType,
	)
	return model.Success(resp.StatusCode, contentType, body, finalURL)
}

func (f *Fetcher) setHeaders(req *http.Request) {
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
}

// classifyStatus maps an HTTP status to an outcome. ok is true when the
// response body should be read.
func classifyStatus(status int) (model.FetchOutcome, bool) {
	switch {
	case status >= 200 && status < 400:
		return model.FetchOutcome{}, true
	case status == http.StatusTooManyRequests:
		return model.Retryable(status, "rate limited"), false
	case status >= 500 && status < 600:
		return model.Retryable(status, fmt.Sprintf("server error %d", status)), false
	case status >= 400 && status < 500:
		return model.Fatal(status, fmt.Sprintf("client error %d", status)), false
	default:
		return model.Fatal(status, fmt.Sprintf("unexpected status %d", status)), false
	}
}

// readBody decompresses, size-limits and charset-decodes the response body.
func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize))
	if err != nil {
		return nil, err
	}
	return toUTF8(body, resp.Header.Get("Content-Type")), nil
}

// toUTF8 converts body from its declared or sniffed charset. Bodies that
// cannot be converted are returned unchanged.
func toUTF8(body []byte, contentType string) []byte {
	if len(body) == 0 || !isTextual(contentType) {
		return body
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return body
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return body
	}
	return decoded
}

func isTextual(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "html") || strings.Contains(ct, "xml")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
