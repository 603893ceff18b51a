package scheduler

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webcrawler/internal/fetcher"
	"github.com/nao1215/webcrawler/internal/log"
	"github.com/nao1215/webcrawler/internal/model"
)

// Defaults for a Scheduler.
const (
	DefaultConcurrency = 5
	DefaultTimeout     = 10 * time.Second
)

// Gate decides whether a URL may be fetched.
type Gate interface {
	IsAllowed(ctx context.Context, rawURL, userAgent string) bool
}

// Fetcher performs one classified fetch attempt.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, timeout time.Duration) model.FetchOutcome
}

// Extractor turns a fetched body into content.
type Extractor interface {
	Extract(pageURL, contentType string, body []byte) model.ExtractedContent
}

// Backoff supplies retry delays and the attempt budget.
type Backoff interface {
	Delay(attempt int) time.Duration
	MaxAttempts() int
}

// Limiter spaces out requests per host.
type Limiter interface {
	Wait(ctx context.Context, host string) error
	SetHostInterval(host string, interval time.Duration)
}

// crawlDelayer is implemented by gates that know robots.txt Crawl-delay values.
type crawlDelayer interface {
	CrawlDelay(rawURL, userAgent string) time.Duration
}

// Scheduler runs crawl tasks. One Scheduler may serve several runs.
type Scheduler struct {
	gate      Gate
	fetcher   Fetcher
	extractor Extractor

	concurrency int
	timeout     time.Duration
	userAgent   string
	backoff     Backoff
	limiter     Limiter
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConcurrency sets the maximum number of tasks in flight.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithUserAgent sets the agent name matched against robots.txt.
func WithUserAgent(ua string) Option {
	return func(s *Scheduler) {
		s.userAgent = ua
	}
}

// WithBackoff replaces the retry policy.
func WithBackoff(b Backoff) Option {
	return func(s *Scheduler) {
		if b != nil {
			s.backoff = b
		}
	}
}

// WithLimiter enables per-host politeness waits.
func WithLimiter(l Limiter) Option {
	return func(s *Scheduler) {
		s.limiter = l
	}
}

// WithSleep replaces the backoff sleep, mostly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a Scheduler with 5 workers, a 10s attempt timeout and 3
// attempts per task.
func New(gate Gate, f Fetcher, extractor Extractor, opts ...Option) *Scheduler {
	s := &Scheduler{
		gate:        gate,
		fetcher:     f,
		extractor:   extractor,
		concurrency: DefaultConcurrency,
		timeout:     DefaultTimeout,
		backoff:     fetcher.NewBackoff(),
		sleep:       fetcher.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	return s
}

// Run crawls urls and calls emit for every successful task as soon as it
// completes. emit is called concurrently from worker goroutines.
//
// When ctx is cancelled, tasks that have not started are skipped and
// running tasks finish their current attempt without retrying. Run
// returns once every task has ended.
func (s *Scheduler) Run(ctx context.Context, urls []string, emit func(model.CrawlResult)) model.Summary {
	return s.RunObserved(ctx, urls, emit, nil)
}

// RunObserved is Run with a done hook called once per URL when its task
// ends, including tasks skipped because the run was stopped. done may be
// nil and is called concurrently.
func (s *Scheduler) RunObserved(
	ctx context.Context,
	urls []string,
	emit func(model.CrawlResult),
	done func(task model.CrawlTask),
) model.Summary {
	s.logger.Info("starting crawl",
		"total_urls", len(urls),
		"concurrency", s.concurrency,
	)
	startTime := time.Now()

	var (
		mu      sync.Mutex
		summary = model.Summary{Total: len(urls)}
	)
	record := func(task *model.CrawlTask) {
		mu.Lock()
		switch task.State {
		case model.TaskSucceeded:
			summary.Succeeded++
		case model.TaskDisallowed:
			summary.Disallowed++
		case model.TaskFailed:
			summary.Failed++
		case model.TaskExhausted:
			summary.Exhausted++
		default:
			summary.Skipped++
		}
		mu.Unlock()
		if done != nil {
			done(*task)
		}
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, rawURL := range urls {
		g.Go(func() error {
			task := model.NewCrawlTask(rawURL)
			if ctx.Err() == nil {
				s.runTask(ctx, task, emit)
			}
			record(task)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // tasks never return errors

	s.logger.Info("crawl complete",
		"total_urls", summary.Total,
		"succeeded", summary.Succeeded,
		"disallowed", summary.Disallowed,
		"failed", summary.Failed,
		"exhausted", summary.Exhausted,
		"skipped", summary.Skipped,
		"elapsed", time.Since(startTime),
	)
	return summary
}

// Stream runs the crawl in the background and delivers results on the
// returned channel, which is closed when every task has ended. The caller
// must drain the channel.
func (s *Scheduler) Stream(ctx context.Context, urls []string) <-chan model.CrawlResult {
	out := make(chan model.CrawlResult, s.concurrency)
	go func() {
		defer close(out)
		s.Run(ctx, urls, func(r model.CrawlResult) {
			out <- r
		})
	}()
	return out
}

// runTask drives one task to a terminal state.
func (s *Scheduler) runTask(ctx context.Context, task *model.CrawlTask, emit func(model.CrawlResult)) {
	logger := s.logger.With("url", task.URL)

	if !s.gate.IsAllowed(ctx, task.URL, s.userAgent) {
		if ctx.Err() != nil {
			// The robots check was cut short; the task was never decided.
			logger.Debug("robots check cancelled")
			return
		}
		s.mustTransition(task, model.TaskDisallowed)
		logger.Info("robots disallowed")
		return
	}

	host := hostOf(task.URL)
	s.applyCrawlDelay(task.URL, host)

	maxAttempts := s.backoff.MaxAttempts()
	for {
		s.mustTransition(task, model.TaskFetching)

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx, host); err != nil {
				s.mustTransition(task, model.TaskFailed)
				logger.Warn("fatal fetch error", "reason", "cancelled", "attempt", task.Attempt+1)
				return
			}
		}

		outcome := s.fetcher.Fetch(ctx, task.URL, s.timeout)
		switch outcome.Kind {
		case model.OutcomeSuccess:
			content := s.extractor.Extract(task.URL, outcome.ContentType, outcome.Body)
			s.mustTransition(task, model.TaskSucceeded)
			emit(model.CrawlResult{
				ExtractedContent: content,
				StatusCode:       outcome.StatusCode,
				ContentHash:      model.HashContent(outcome.Body),
				FetchedAt:        time.Now(),
				Attempts:         task.Attempt + 1,
			})
			logger.Debug("page crawled", "status", outcome.StatusCode, "attempts", task.Attempt+1)
			return

		case model.OutcomeRetryable:
			if task.Attempt+1 >= maxAttempts {
				s.mustTransition(task, model.TaskExhausted)
				logger.Warn("retries exhausted",
					"attempts", task.Attempt+1,
					"status", outcome.StatusCode,
					"reason", outcome.Reason,
				)
				return
			}
			s.mustTransition(task, model.TaskBackoff)
			delay := s.backoff.Delay(task.Attempt)
			logger.Debug("retrying after backoff",
				"attempt", task.Attempt+1,
				"delay", delay,
				"reason", outcome.Reason,
			)
			if err := s.sleep(ctx, delay); err != nil {
				s.mustTransition(task, model.TaskFailed)
				logger.Warn("fatal fetch error", "reason", "cancelled", "attempt", task.Attempt+1)
				return
			}

		default:
			s.mustTransition(task, model.TaskFailed)
			logger.Warn("fatal fetch error",
				"status", outcome.StatusCode,
				"reason", outcome.Reason,
				"attempt", task.Attempt+1,
			)
			return
		}
	}
}

// applyCrawlDelay raises the host's politeness interval to its robots.txt
// Crawl-delay, when both are known.
func (s *Scheduler) applyCrawlDelay(rawURL, host string) {
	if s.limiter == nil || host == "" {
		return
	}
	cd, ok := s.gate.(crawlDelayer)
	if !ok {
		return
	}
	if d := cd.CrawlDelay(rawURL, s.userAgent); d > 0 {
		s.limiter.SetHostInterval(host, d)
	}
}

// mustTransition applies a transition the scheduler's control flow
// guarantees to be legal.
func (s *Scheduler) mustTransition(task *model.CrawlTask, next model.TaskState) {
	if err := task.Transition(next); err != nil {
		panic(err)
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
