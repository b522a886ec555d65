package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerRateLimiter_WaitsForPrerequisites(t *testing.T) {
	l := NewTimerRateLimiter(time.Millisecond, 10)
	done := make(chan struct{})
	l.AddPrerequisite(done)
	assert.Equal(t, 1, l.PendingCount())

	granted := make(chan error, 1)
	go func() { granted <- l.GetWorkAuthorization(context.Background()) }()

	select {
	case <-granted:
		t.Fatal("authorization granted while a prerequisite was still running")
	case <-time.After(30 * time.Millisecond):
	}

	close(done)
	select {
	case err := <-granted:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("authorization not granted after prerequisite completed")
	}
	assert.Equal(t, 0, l.PendingCount())
}

func TestTimerRateLimiter_HonoursInterval(t *testing.T) {
	l := NewTimerRateLimiter(40*time.Millisecond, 1)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.GetWorkAuthorization(ctx))
	require.NoError(t, l.GetWorkAuthorization(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestTimerRateLimiter_ContextCancelled(t *testing.T) {
	l := NewTimerRateLimiter(time.Millisecond, 1)
	l.AddPrerequisite(make(chan struct{}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.GetWorkAuthorization(ctx), context.DeadlineExceeded)
}

func TestNoneRateLimiter(t *testing.T) {
	var l NoneRateLimiter
	l.AddPrerequisite(make(chan struct{}))
	assert.NoError(t, l.GetWorkAuthorization(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.GetWorkAuthorization(ctx), context.Canceled)
}
