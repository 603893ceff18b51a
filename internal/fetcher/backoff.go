package fetcher

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff defaults.
const (
	DefaultMaxAttempts = 3
	MaxDelay           = 60 * time.Second
	minJitter          = 1.0
	maxJitter          = 3.0
)

// Backoff computes the randomized exponential delay between attempts.
type Backoff struct {
	maxAttempts int
	maxDelay    time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

// BackoffOption configures a Backoff.
type BackoffOption func(*Backoff)

// WithMaxAttempts sets how many attempts a task gets in total.
func WithMaxAttempts(n int) BackoffOption {
	return func(b *Backoff) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

// WithMaxDelay caps a single delay.
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *Backoff) {
		if d > 0 {
			b.maxDelay = d
		}
	}
}

// WithRand replaces the jitter source, mostly for tests.
func WithRand(r *rand.Rand) BackoffOption {
	return func(b *Backoff) {
		if r != nil {
			b.rand = r
		}
	}
}

// NewBackoff creates a Backoff with 3 attempts and a 60s cap.
func NewBackoff(opts ...BackoffOption) *Backoff {
	b := &Backoff{
		maxAttempts: DefaultMaxAttempts,
		maxDelay:    MaxDelay,
		rand:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)), //nolint:gosec // jitter, not crypto
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MaxAttempts returns the total number of attempts per task.
func (b *Backoff) MaxAttempts() int {
	return b.maxAttempts
}

// Delay returns the wait before the retry that follows attempt n
// (zero-based): min(uniform(1,3) * 2^n seconds, max delay).
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// 2^6 * 1s already exceeds the 60s cap.
	if attempt > 30 {
		return b.maxDelay
	}

	b.mu.Lock()
	factor := minJitter + b.rand.Float64()*(maxJitter-minJitter)
	b.mu.Unlock()

	d := time.Duration(factor * float64(int64(1)<<attempt) * float64(time.Second))
	if d > b.maxDelay {
		return b.maxDelay
	}
	return d
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
