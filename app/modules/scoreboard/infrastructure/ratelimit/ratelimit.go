package ratelimit

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter gates outbound requests to a live scoreboard host.
type RateLimiter interface {
	// GetWorkAuthorization blocks until the caller may issue one request.
	GetWorkAuthorization(ctx context.Context) error
	// AddPrerequisite registers in-flight work. Later authorizations are not
	// granted until done is closed.
	AddPrerequisite(done <-chan struct{})
}

// TimerRateLimiter pulses one token per interval and holds every token until
// all registered prerequisites have completed.
type TimerRateLimiter struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	pending []<-chan struct{}
}

// NewTimerRateLimiter allows burst requests at once and one more per interval.
func NewTimerRateLimiter(interval time.Duration, burst int) *TimerRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TimerRateLimiter{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

func (l *TimerRateLimiter) GetWorkAuthorization(ctx context.Context) error {
	for _, done := range l.outstanding() {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return l.limiter.Wait(ctx)
}

func (l *TimerRateLimiter) AddPrerequisite(done <-chan struct{}) {
	if done == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, done)
}

// PendingCount returns the number of prerequisites that have not completed.
func (l *TimerRateLimiter) PendingCount() int {
	return len(l.outstanding())
}

// outstanding prunes completed prerequisites and returns the rest.
func (l *TimerRateLimiter) outstanding() []<-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	live := l.pending[:0]
	for _, done := range l.pending {
		select {
		case <-done:
		default:
			live = append(live, done)
		}
	}
	clear(l.pending[len(live):])
	l.pending = live
	return slices.Clone(live)
}

// NoneRateLimiter authorizes everything immediately.
type NoneRateLimiter struct{}

func (NoneRateLimiter) GetWorkAuthorization(ctx context.Context) error { return ctx.Err() }

func (NoneRateLimiter) AddPrerequisite(<-chan struct{}) {}

var (
	_ RateLimiter = (*TimerRateLimiter)(nil)
	_ RateLimiter = NoneRateLimiter{}
)
