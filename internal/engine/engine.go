package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nao1215/webcrawler/internal/log"
	"github.com/nao1215/webcrawler/internal/model"
	"github.com/nao1215/webcrawler/internal/sink"
)

// Scheduler runs crawl tasks and reports each finished task.
type Scheduler interface {
	RunObserved(
		ctx context.Context,
		urls []string,
		emit func(model.CrawlResult),
		done func(task model.CrawlTask),
	) model.Summary
}

// Engine performs one crawl run into one sink.
type Engine struct {
	scheduler Scheduler
	sink      sink.Sink
	progress  func(done, total int)
	observer  func(task model.CrawlTask)
	logger    *slog.Logger

	started atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithProgress registers a callback invoked after every finished task
// with the number of finished and scheduled tasks. It is called
// concurrently.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithTaskObserver registers a callback invoked with every finished task,
// e.g. to journal failures. It is called concurrently.
func WithTaskObserver(fn func(task model.CrawlTask)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// New creates an Engine writing to out.
func New(scheduler Scheduler, out sink.Sink, opts ...Option) *Engine {
	e := &Engine{
		scheduler: scheduler,
		sink:      out,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.Discard()
	}
	return e
}

// ValidateURL checks that raw is an absolute URL with a scheme and a host.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidURL, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q: scheme and host are required", ErrInvalidURL, raw)
	}
	return nil
}

// CrawlOne crawls a single URL.
func (e *Engine) CrawlOne(ctx context.Context, rawURL string) (model.Summary, error) {
	return e.CrawlBatch(ctx, []string{rawURL})
}

// CrawlBatch crawls urls and finalizes the sink before returning.
//
// Invalid and repeated URLs are logged, counted as rejected and never
// scheduled. A result the sink fails to write is logged and counted; the
// run continues. If ctx is cancelled the run stops early and the error
// wraps the cancellation cause.
func (e *Engine) CrawlBatch(ctx context.Context, urls []string) (summary model.Summary, err error) {
	if !e.started.CompareAndSwap(false, true) {
		return model.Summary{}, ErrAlreadyRun
	}

	defer func() {
		if ferr := e.sink.Finalize(); ferr != nil {
			e.logger.Error("failed to finalize output", "error", ferr)
			err = errors.Join(err, fmt.Errorf("finalize output: %w", ferr))
		}
	}()

	valid, rejected := e.filter(urls)
	if len(valid) == 0 {
		e.logger.Warn("nothing to crawl", "total_urls", len(urls), "rejected", rejected)
		return model.Summary{Total: len(urls), Rejected: rejected}, ErrNoValidURLs
	}

	var sinkErrors, finished atomic.Int64
	emit := func(r model.CrawlResult) {
		if err := e.sink.Append(r); err != nil {
			sinkErrors.Add(1)
			e.logger.Error("sink write error", "url", r.URL, "error", err)
		}
	}
	done := func(task model.CrawlTask) {
		if e.observer != nil {
			e.observer(task)
		}
		n := finished.Add(1)
		if e.progress != nil {
			e.progress(int(n), len(valid))
		}
	}

	startTime := time.Now()
	summary = e.scheduler.RunObserved(ctx, valid, emit, done)
	summary.Total = len(urls)
	summary.Rejected = rejected
	summary.SinkErrors = int(sinkErrors.Load())

	e.logger.Info("run finished",
		"written", summary.Written(),
		"rejected", summary.Rejected,
		"sink_errors", summary.SinkErrors,
		"elapsed", time.Since(startTime),
	)

	if ctx.Err() != nil {
		return summary, fmt.Errorf("crawl interrupted: %w", context.Cause(ctx))
	}
	return summary, nil
}

// filter returns the valid, first-seen URLs and the number rejected.
func (e *Engine) filter(urls []string) ([]string, int) {
	seen := make(map[string]struct{}, len(urls))
	valid := make([]string, 0, len(urls))
	rejected := 0
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if err := ValidateURL(raw); err != nil {
			rejected++
			e.logger.Warn("invalid url rejected", "url", raw, "error", err)
			continue
		}
		if _, dup := seen[raw]; dup {
			rejected++
			e.logger.Info("duplicate url skipped", "url", raw)
			continue
		}
		seen[raw] = struct{}{}
		valid = append(valid, raw)
	}
	return valid, rejected
}
