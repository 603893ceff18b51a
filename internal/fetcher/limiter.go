package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter spaces out requests to the same host. A zero interval
// disables limiting. It is safe for concurrent use.
type HostLimiter struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter allowing one request per interval per host.
func NewHostLimiter(interval time.Duration) *HostLimiter {
	return &HostLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// SetHostInterval raises the interval for one host, e.g. to honor a
// robots.txt Crawl-delay. Intervals shorter than the current one are ignored.
func (l *HostLimiter) SetHostInterval(host string, interval time.Duration) {
	if l == nil || interval <= 0 {
		return
	}
	host = strings.ToLower(host)

	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.interval
	if lim, ok := l.limiters[host]; ok {
		current = time.Duration(float64(time.Second) / float64(lim.Limit()))
	}
	if interval <= current {
		return
	}
	if lim, ok := l.limiters[host]; ok {
		lim.SetLimit(rate.Every(interval))
		return
	}
	l.limiters[host] = rate.NewLimiter(rate.Every(interval), 1)
}

// Wait blocks until a request to host is permitted or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || host == "" {
		return nil
	}
	lim := l.limiter(strings.ToLower(host))
	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}

func (l *HostLimiter) limiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[host]; ok {
		return lim
	}
	if l.interval <= 0 {
		return nil
	}
	lim := rate.NewLimiter(rate.Every(l.interval), 1)
	l.limiters[host] = lim
	return lim
}
