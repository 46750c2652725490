package worker

// ============================================================================
// Worker Pool Test File
// Purpose: Verify concurrent ticking, tick barrier, graceful shutdown
// ============================================================================

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ChuLiYu/workclip/internal/timeline"
	"github.com/ChuLiYu/workclip/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingTicker records how much time it was advanced by
type countingTicker struct {
	mu      sync.Mutex
	elapsed float64
	ticks   int
	panicOn int
	busy    atomic.Int32
	overlap atomic.Bool
}

func (c *countingTicker) Tick(dt float64) {
	if c.busy.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.busy.Add(-1)

	c.mu.Lock()
	c.ticks++
	n := c.ticks
	c.elapsed += dt
	c.mu.Unlock()
	if c.panicOn > 0 && n == c.panicOn {
		panic("boom")
	}
}

func (c *countingTicker) State() timeline.PlayerState { return timeline.StatePlaying }
func (c *countingTicker) Percent() float64            { return 0 }

func (c *countingTicker) Elapsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

func tickTask(i int, target Ticker, dt float64) Task {
	return Task{PlayerID: types.PlayerID(fmt.Sprintf("player-%d", i)), Target: target, Delta: dt}
}

// ============================================================================
// Basic Functionality Tests
// ============================================================================

// TestNewPool tests creating Worker Pool
func TestNewPool(t *testing.T) {
	pool := NewPool(10)
	assert.NotNil(t, pool)
	assert.Equal(t, 0, pool.GetWorkerCount())
	assert.False(t, pool.IsStarted())
}

// TestPoolStart tests starting Worker Pool
func TestPoolStart(t *testing.T) {
	pool := NewPool(10)

	err := pool.Start(8)
	require.NoError(t, err)
	assert.Equal(t, 8, pool.GetWorkerCount())
	assert.True(t, pool.IsStarted())

	// Try to start again
	err = pool.Start(4)
	assert.Error(t, err)

	pool.Stop()
}

// TestWorkerExecution tests a single worker advancing players
func TestWorkerExecution(t *testing.T) {
	pool := NewPool(10)
	require.NoError(t, pool.Start(1))
	defer pool.Stop()

	tickers := make([]*countingTicker, 10)
	for i := range tickers {
		tickers[i] = &countingTicker{}
		require.NoError(t, pool.Submit(tickTask(i, tickers[i], 0.5)))
	}

	results := make(map[types.PlayerID]Result)
	for range tickers {
		result, err := pool.ReceiveResult()
		require.NoError(t, err)
		results[result.PlayerID] = result
	}

	assert.Len(t, results, 10)
	for i, tk := range tickers {
		r := results[types.PlayerID(fmt.Sprintf("player-%d", i))]
		assert.NoError(t, r.Error)
		assert.Equal(t, timeline.StatePlaying, r.State)
		assert.Equal(t, 0.5, r.Elapsed)
		assert.Equal(t, 1, tk.ticks)
	}
}

// TestPanicBecomesError tests that a panicking player does not kill the worker
func TestPanicBecomesError(t *testing.T) {
	pool := NewPool(4)
	require.NoError(t, pool.Start(1))
	defer pool.Stop()

	bad := &countingTicker{panicOn: 1}
	good := &countingTicker{}
	results, err := pool.Dispatch([]Task{tickTask(0, bad, 1), tickTask(1, good, 1)})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		if r.PlayerID == "player-0" {
			require.Error(t, r.Error)
			assert.Contains(t, r.Error.Error(), "panicked")
		} else {
			assert.NoError(t, r.Error)
		}
	}
}

// TestNilTarget tests that a task without target reports an error
func TestNilTarget(t *testing.T) {
	pool := NewPool(1)
	require.NoError(t, pool.Start(1))
	defer pool.Stop()

	results, err := pool.Dispatch([]Task{{PlayerID: "ghost"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Error)
}

// ============================================================================
// Barrier Tests
// ============================================================================

// TestDispatchLargerThanBuffer tests a batch bigger than the channel buffers
func TestDispatchLargerThanBuffer(t *testing.T) {
	pool := NewPool(2)
	require.NoError(t, pool.Start(4))
	defer pool.Stop()

	tickers := make([]*countingTicker, 50)
	tasks := make([]Task, 0, len(tickers))
	for i := range tickers {
		tickers[i] = &countingTicker{}
		tasks = append(tasks, tickTask(i, tickers[i], 0.1))
	}

	results, err := pool.Dispatch(tasks)
	require.NoError(t, err)
	assert.Len(t, results, len(tasks))
	for _, tk := range tickers {
		assert.Equal(t, 1, tk.ticks, "every player ticks exactly once per batch")
	}
}

// TestDispatchNeverOverlapsPlayer tests single-writer discipline across batches
func TestDispatchNeverOverlapsPlayer(t *testing.T) {
	pool := NewPool(8)
	require.NoError(t, pool.Start(8))
	defer pool.Stop()

	tickers := make([]*countingTicker, 16)
	for i := range tickers {
		tickers[i] = &countingTicker{}
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := 0; round < 20; round++ {
				tasks := make([]Task, 0, len(tickers))
				for i, tk := range tickers {
					tasks = append(tasks, tickTask(i, tk, 0.01))
				}
				_, err := pool.Dispatch(tasks)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for _, tk := range tickers {
		assert.False(t, tk.overlap.Load())
		assert.Equal(t, 80, tk.ticks)
	}
}

// TestDispatchEmpty tests an empty batch
func TestDispatchEmpty(t *testing.T) {
	pool := NewPool(1)
	require.NoError(t, pool.Start(1))
	defer pool.Stop()

	results, err := pool.Dispatch(nil)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

// ============================================================================
// Graceful Shutdown Tests
// ============================================================================

// TestGracefulShutdown tests graceful shutdown
func TestGracefulShutdown(t *testing.T) {
	pool := NewPool(50)
	require.NoError(t, pool.Start(4))

	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(tickTask(i, &countingTicker{}, 1)))
	}
	for i := 0; i < 5; i++ {
		_, err := pool.ReceiveResult()
		require.NoError(t, err)
	}

	goroutinesBefore := runtime.NumGoroutine()
	pool.Stop()

	time.Sleep(100 * time.Millisecond)
	goroutinesAfter := runtime.NumGoroutine()
	assert.LessOrEqual(t, goroutinesAfter, goroutinesBefore)
}

// TestStopBeforeStart tests stopping before starting
func TestStopBeforeStart(t *testing.T) {
	pool := NewPool(10)
	assert.NotPanics(t, func() {
		pool.Stop()
	})
}

// TestSubmitAfterStop tests submitting after shutdown
func TestSubmitAfterStop(t *testing.T) {
	pool := NewPool(10)
	require.NoError(t, pool.Start(2))
	pool.Stop()

	err := pool.Submit(tickTask(0, &countingTicker{}, 1))
	assert.Equal(t, ErrPoolClosed, err)

	_, err = pool.Dispatch([]Task{tickTask(0, &countingTicker{}, 1)})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

// TestSubmitBeforeStart tests submitting before starting
func TestSubmitBeforeStart(t *testing.T) {
	pool := NewPool(10)
	err := pool.Submit(tickTask(0, &countingTicker{}, 1))
	assert.Equal(t, ErrPoolNotStarted, err)

	_, err = pool.Dispatch([]Task{tickTask(0, &countingTicker{}, 1)})
	assert.ErrorIs(t, err, ErrPoolNotStarted)
}

// TestReceiveResultAfterStop tests receiving results after shutdown
func TestReceiveResultAfterStop(t *testing.T) {
	pool := NewPool(10)
	require.NoError(t, pool.Start(2))
	pool.Stop()

	_, err := pool.ReceiveResult()
	assert.Equal(t, ErrPoolClosed, err)
}

// ============================================================================
// Benchmark Tests
// ============================================================================

// BenchmarkPoolDispatch measures one tick over 64 players
func BenchmarkPoolDispatch(b *testing.B) {
	pool := NewPool(64)
	pool.Start(runtime.NumCPU())
	defer pool.Stop()

	tasks := make([]Task, 64)
	for i := range tasks {
		tasks[i] = tickTask(i, &countingTicker{}, 0.016)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Dispatch(tasks)
	}
}
