package rate_limiter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestSlidingWindowLimiter_AdmitsUpToMax(t *testing.T) {
	l := NewSlidingWindowLimiter(time.Minute, 15)

	for i := 0; i < 15; i++ {
		assert.True(t, l.Admit("10.0.0.1", base.Add(time.Duration(i)*time.Second)), "request %d should be admitted", i+1)
	}
	assert.False(t, l.Admit("10.0.0.1", base.Add(20*time.Second)), "16th request within the window must be rejected")
}

func TestSlidingWindowLimiter_BurstAtSameInstant(t *testing.T) {
	l := NewSlidingWindowLimiter(time.Minute, 15)

	for i := 0; i < 15; i++ {
		require.True(t, l.Admit("client", base))
	}
	assert.False(t, l.Admit("client", base))
}

func TestSlidingWindowLimiter_WindowSlides(t *testing.T) {
	l := NewSlidingWindowLimiter(time.Minute, 3)

	require.True(t, l.Admit("c", base))
	require.True(t, l.Admit("c", base.Add(10*time.Second)))
	require.True(t, l.Admit("c", base.Add(20*time.Second)))
	require.False(t, l.Admit("c", base.Add(30*time.Second)))

	// A timestamp exactly windowMs old is outside the window.
	assert.True(t, l.Admit("c", base.Add(time.Minute)))
	assert.False(t, l.Admit("c", base.Add(time.Minute+time.Second)))
	assert.True(t, l.Admit("c", base.Add(70*time.Second)))
}

func TestSlidingWindowLimiter_RejectionsAreNotRecorded(t *testing.T) {
	l := NewSlidingWindowLimiter(time.Minute, 1)

	require.True(t, l.Admit("c", base))
	for i := 1; i <= 5; i++ {
		require.False(t, l.Admit("c", base.Add(time.Duration(i)*10*time.Second)))
	}
	// Only the first admitted request occupies the window.
	assert.True(t, l.Admit("c", base.Add(time.Minute+time.Millisecond)))
}

func TestSlidingWindowLimiter_ClientsAreIndependent(t *testing.T) {
	l := NewSlidingWindowLimiter(time.Minute, 2)

	assert.True(t, l.Admit("a", base))
	assert.True(t, l.Admit("a", base))
	assert.False(t, l.Admit("a", base))
	assert.True(t, l.Admit("b", base))
	assert.True(t, l.Admit("b", base))
}

func TestSlidingWindowLimiter_OutOfOrderTimestamps(t *testing.T) {
	l := NewSlidingWindowLimiter(time.Minute, 2)

	require.True(t, l.Admit("c", base.Add(50*time.Second)))
	require.True(t, l.Admit("c", base))
	// At base+61s the entry at base has expired but base+50s has not.
	assert.True(t, l.Admit("c", base.Add(61*time.Second)))
	assert.False(t, l.Admit("c", base.Add(62*time.Second)))
}

func TestSlidingWindowLimiter_RetryAfter(t *testing.T) {
	l := NewSlidingWindowLimiter(time.Minute, 2)

	assert.Zero(t, l.RetryAfter("unknown", base))

	l.Admit("c", base)
	assert.Zero(t, l.RetryAfter("c", base.Add(time.Second)))

	l.Admit("c", base.Add(10*time.Second))
	assert.Equal(t, 40*time.Second, l.RetryAfter("c", base.Add(20*time.Second)))
	assert.Zero(t, l.RetryAfter("c", base.Add(time.Minute)))
}

func TestSlidingWindowLimiter_Prune(t *testing.T) {
	l := NewSlidingWindowLimiter(time.Minute, 5)

	l.Admit("old", base)
	l.Admit("recent", base.Add(50*time.Second))
	require.Equal(t, 2, l.TrackedClients())

	removed := l.Prune(base.Add(90 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.TrackedClients())

	// A pruned client starts from an empty window.
	assert.True(t, l.Admit("old", base.Add(91*time.Second)))
}

func TestSlidingWindowLimiter_ConcurrentAdmit(t *testing.T) {
	l := NewSlidingWindowLimiter(time.Minute, 15)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit("shared", base) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(15), admitted.Load())
}

func TestSlidingWindowLimiter_ConcurrentAdmitAndPrune(t *testing.T) {
	l := NewSlidingWindowLimiter(time.Minute, 1000)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if l.Admit(fmt.Sprintf("c%d", i%5), base) {
				admitted.Add(1)
			}
		}(i)
		go func() {
			defer wg.Done()
			l.Prune(base)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), admitted.Load())
	total := 0
	for i := 0; i < 5; i++ {
		total += len(l.clients[fmt.Sprintf("c%d", i)].timestamps)
	}
	assert.Equal(t, 50, total, "no admitted request may be lost to a concurrent prune")
}

func TestHostRateLimiter_WaitForHost(t *testing.T) {
	h, err := NewHostRateLimiter(1000, 10, 16)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, h.WaitForHost(ctx, "https://example.com/a.jpg"))
	}
}

func TestHostRateLimiter_InvalidURL(t *testing.T) {
	h, err := NewHostRateLimiter(10, 1, 16)
	require.NoError(t, err)

	assert.Error(t, h.WaitForHost(context.Background(), "/relative/path"))
	assert.Error(t, h.WaitForHost(context.Background(), "://bad"))
}

func TestHostRateLimiter_ContextCancelled(t *testing.T) {
	h, err := NewHostRateLimiter(0.001, 1, 16)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, h.WaitForHost(ctx, "https://example.com/1.jpg"))
	assert.Error(t, h.WaitForHost(ctx, "https://example.com/2.jpg"))
}

func TestHostRateLimiter_BoundedHosts(t *testing.T) {
	h, err := NewHostRateLimiter(1000, 1, 2)
	require.NoError(t, err)

	for _, host := range []string{"a.example.com", "b.example.com", "c.example.com"} {
		require.NoError(t, h.WaitForHost(context.Background(), "https://"+host+"/x.png"))
	}
	assert.Equal(t, 2, h.limiters.Len())
}
