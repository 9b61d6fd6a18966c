package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryLimiter in-memory реализация rate limiter
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  *Config
	stopCh  chan struct{}
	closed  atomic.Bool
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
	requests  []time.Time // для sliding window, по возрастанию
}

// NewMemoryLimiter создаёт in-memory rate limiter
func NewMemoryLimiter(cfg *Config) *MemoryLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	l := &MemoryLimiter{
		buckets: make(map[string]*bucket),
		config:  cfg,
		stopCh:  make(chan struct{}),
	}

	go l.cleanup()

	return l
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.AllowN(ctx, key, 1)
}

func (l *MemoryLimiter) AllowN(_ context.Context, key string, n int) (bool, error) {
	if l.closed.Load() {
		return false, ErrLimiterClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:    l.maxTokens(),
			lastCheck: now,
		}
		l.buckets[key] = b
	}

	if l.config.Strategy == StrategyTokenBucket {
		return l.allowTokenBucket(b, n, now), nil
	}
	return l.allowSlidingWindow(b, n, now), nil
}

func (l *MemoryLimiter) maxTokens() float64 {
	return float64(l.config.Requests + l.config.BurstSize)
}

func (l *MemoryLimiter) refill(b *bucket, now time.Time) {
	rate := float64(l.config.Requests) / l.config.Window.Seconds()
	b.tokens = min(b.tokens+now.Sub(b.lastCheck).Seconds()*rate, l.maxTokens())
	b.lastCheck = now
}

func (l *MemoryLimiter) allowTokenBucket(b *bucket, n int, now time.Time) bool {
	l.refill(b, now)
	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

func (l *MemoryLimiter) allowSlidingWindow(b *bucket, n int, now time.Time) bool {
	b.requests = trimBefore(b.requests, now.Add(-l.config.Window))
	b.lastCheck = now

	if len(b.requests)+n > l.config.Requests {
		return false
	}
	for range n {
		b.requests = append(b.requests, now)
	}
	return true
}

// trimBefore отбрасывает отметки не позже start; отметки отсортированы
func trimBefore(requests []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(start) {
		i++
	}
	return requests[i:]
}

func (l *MemoryLimiter) Wait(ctx context.Context, key string) error {
	return waitLoop(ctx, func() (bool, error) { return l.Allow(ctx, key) })
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, key)
	return nil
}

func (l *MemoryLimiter) GetInfo(_ context.Context, key string) (*LimitInfo, error) {
	if l.closed.Load() {
		return nil, ErrLimiterClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	info := &LimitInfo{
		Limit:     l.config.Requests,
		Remaining: l.config.Requests,
		ResetAt:   now.Add(l.config.Window),
	}

	b, ok := l.buckets[key]
	if !ok {
		return info, nil
	}

	if l.config.Strategy == StrategyTokenBucket {
		l.refill(b, now)
		info.Remaining = int(b.tokens)
		if info.Remaining < 1 {
			rate := float64(l.config.Requests) / l.config.Window.Seconds()
			info.RetryAfter = time.Duration((1 - b.tokens) / rate * float64(time.Second))
		}
	} else {
		b.requests = trimBefore(b.requests, now.Add(-l.config.Window))
		info.Remaining = l.config.Requests - len(b.requests)
		if len(b.requests) > 0 {
			info.ResetAt = b.requests[0].Add(l.config.Window)
		}
		if info.Remaining <= 0 {
			info.RetryAfter = info.ResetAt.Sub(now)
		}
	}

	info.Remaining = max(info.Remaining, 0)
	return info, nil
}

func (l *MemoryLimiter) Close() error {
	if l.closed.Swap(true) {
		return nil
	}

	close(l.stopCh)

	l.mu.Lock()
	l.buckets = nil
	l.mu.Unlock()

	return nil
}

func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.doCleanup()
		}
	}
}

func (l *MemoryLimiter) doCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Храним 2x window
	horizon := time.Now().Add(-l.config.Window * 2)

	for key, b := range l.buckets {
		b.requests = trimBefore(b.requests, horizon)
		if len(b.requests) == 0 && b.lastCheck.Before(horizon) {
			delete(l.buckets, key)
		}
	}
}

// waitLoop опрашивает allow, пока запрос не будет разрешён или ctx не истечёт
func waitLoop(ctx context.Context, allow func() (bool, error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		allowed, err := allow()
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
