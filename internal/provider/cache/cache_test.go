package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache(maxItems int) (*Cache[int], *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)}
	c := New[int](maxItems)
	c.now = clk.Now
	return c, clk
}

func TestGetOrCompute_HitWithinTTL(t *testing.T) {
	c, clk := newTestCache(0)
	calls := 0
	compute := func(context.Context) (int, error) {
		calls++
		return calls * 100, nil
	}

	v, err := c.GetOrCompute(context.Background(), "q:005930", 2*time.Second, compute)
	require.NoError(t, err)
	require.Equal(t, 100, v)

	clk.Advance(time.Second)
	v, err = c.GetOrCompute(context.Background(), "q:005930", 2*time.Second, compute)
	require.NoError(t, err)
	require.Equal(t, 100, v)
	require.Equal(t, 1, calls)

	clk.Advance(1500 * time.Millisecond)
	v, err = c.GetOrCompute(context.Background(), "q:005930", 2*time.Second, compute)
	require.NoError(t, err)
	require.Equal(t, 200, v)
	require.Equal(t, 2, calls)
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	c, _ := newTestCache(0)
	boom := errors.New("upstream down")

	_, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, c.Len())

	v, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestGetOrCompute_SharesConcurrentMisses(t *testing.T) {
	c := New[int](0)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
		}(i)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for i, v := range results {
		require.NoError(t, errs[i])
		require.Equal(t, 42, v)
	}
}

func TestSet_EvictsOldestBeyondMaxItems(t *testing.T) {
	c, clk := newTestCache(2)
	c.Set("a", 1, time.Minute)
	clk.Advance(time.Millisecond)
	c.Set("b", 2, time.Minute)
	clk.Advance(time.Millisecond)
	c.Set("c", 3, time.Minute)

	require.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	require.False(t, ok)
	v, ok := c.Get("c")
	require.True(t, ok)
	require.Equal(t, 3, v)
}

func TestSweep(t *testing.T) {
	c, clk := newTestCache(0)
	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)

	clk.Advance(2 * time.Second)
	require.Equal(t, 1, c.Sweep(0))
	require.Equal(t, 1, c.Len())

	clk.Advance(10 * time.Minute)
	require.Equal(t, 1, c.Sweep(5*time.Minute))
	require.Equal(t, 0, c.Len())
}

func TestSet_NonPositiveTTLIsNoop(t *testing.T) {
	c, _ := newTestCache(0)
	c.Set("k", 1, 0)
	require.Equal(t, 0, c.Len())
}

func TestGetOrCompute_CanceledCallerDoesNotFailOthers(t *testing.T) {
	c := New[int](0)
	started := make(chan struct{})
	release := make(chan struct{})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctxA, "k", time.Minute, func(ctx context.Context) (int, error) {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return 42, nil
		})
		errA <- err
	}()
	<-started

	type result struct {
		v   int
		err error
	}
	resB := make(chan result, 1)
	go func() {
		v, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (int, error) {
			return -1, nil
		})
		resB <- result{v, err}
	}()
	// let B join the in-flight computation
	time.Sleep(20 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)
	close(release)

	got := <-resB
	require.NoError(t, got.err)
	require.Equal(t, 42, got.v)

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 42, v)
}
