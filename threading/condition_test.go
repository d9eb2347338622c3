package threading

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/threading/internal/threading/diag"
)

// startWaiters blocks n goroutines in c.Wait and counts how many return.
func startWaiters(t *testing.T, c *Condition, n int) (*atomic.Int32, *sync.WaitGroup) {
	t.Helper()

	var woken atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)

	for range n {
		go func() {
			defer wg.Done()

			ok, err := c.Wait()
			if err != nil || !ok {
				t.Errorf("Wait() = %v, %v", ok, err)
			}
			woken.Add(1)
		}()
	}

	require.Eventually(t, func() bool { return c.Waiting() == n }, eventuallyWait, eventuallyTick)

	return &woken, &wg
}

func TestCondition_NoWaiters(t *testing.T) {
	t.Parallel()

	c := NewCondition()

	ok, err := c.Signal()
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Broadcast()
	require.NoError(t, err)
	assert.False(t, ok)

	assert.False(t, c.SignalPending())
}

func TestCondition_SignalVsBroadcast(t *testing.T) {
	t.Parallel()

	c := NewCondition()
	woken, wg := startWaiters(t, c, 3)

	ok, err := c.Signal()
	require.NoError(t, err)
	assert.True(t, ok)

	require.Eventually(t, func() bool { return woken.Load() == 1 }, eventuallyWait, eventuallyTick)

	// The other two stay blocked.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), woken.Load())
	assert.Equal(t, 2, c.Waiting())
	assert.False(t, c.SignalPending())

	ok, err = c.Broadcast()
	require.NoError(t, err)
	assert.True(t, ok)

	wg.Wait()

	assert.Equal(t, int32(3), woken.Load())
	assert.Equal(t, 0, c.Waiting())
	assert.False(t, c.SignalPending(), "last waiter clears the broadcast")
}

func TestCondition_BroadcastWakesAll(t *testing.T) {
	t.Parallel()

	c := NewCondition()
	woken, wg := startWaiters(t, c, 5)

	ok, err := c.Broadcast()
	require.NoError(t, err)
	assert.True(t, ok)

	wg.Wait()

	assert.Equal(t, int32(5), woken.Load())
	assert.Equal(t, 0, c.Waiting())
}

func TestCondition_ZeroValue(t *testing.T) {
	t.Parallel()

	var c Condition
	_, wg := startWaiters(t, &c, 1)

	ok, err := c.Signal()
	require.NoError(t, err)
	assert.True(t, ok)

	wg.Wait()
}

func TestCondition_TimedWait(t *testing.T) {
	t.Parallel()

	t.Run("expires", func(t *testing.T) {
		t.Parallel()

		c := NewCondition()

		const d = 50 * time.Millisecond

		start := time.Now()
		ok, err := c.TimedWait(d)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.False(t, ok)
		assert.GreaterOrEqual(t, elapsed, d-5*time.Millisecond)
		assert.Less(t, elapsed, d+timeoutMargin)
		assert.Equal(t, 0, c.Waiting())
	})

	t.Run("signaled", func(t *testing.T) {
		t.Parallel()

		c := NewCondition()

		result := make(chan bool, 1)
		go func() {
			ok, err := c.TimedWait(5 * time.Second)
			if err != nil {
				t.Error(err)
			}
			result <- ok
		}()

		require.Eventually(t, func() bool { return c.Waiting() == 1 }, eventuallyWait, eventuallyTick)

		ok, err := c.Signal()
		require.NoError(t, err)
		assert.True(t, ok)

		assert.True(t, <-result)
		assert.Equal(t, 0, c.Waiting())
	})

	t.Run("timeout does not steal a signal", func(t *testing.T) {
		t.Parallel()

		c := NewCondition()
		woken, wg := startWaiters(t, c, 1)

		ok, err := c.TimedWait(10 * time.Millisecond)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, c.Waiting())

		ok, err = c.Signal()
		require.NoError(t, err)
		assert.True(t, ok)

		wg.Wait()
		assert.Equal(t, int32(1), woken.Load())
	})

	t.Run("negative duration", func(t *testing.T) {
		t.Parallel()

		c := NewCondition()

		ok, err := c.TimedWait(-time.Millisecond)
		require.ErrorIs(t, err, ErrInvalidArgument)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Waiting())
	})
}

func TestCondition_Destroy(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		logs := captureErrors(t, KindCondition)
		exit := captureExit(t)

		NewCondition().Destroy()

		assert.Zero(t, exit.Load())
		assert.Empty(t, logs.String())
	})

	t.Run("with waiters is fatal", func(t *testing.T) {
		logs := captureErrors(t, KindCondition)
		exit := captureExit(t)

		c := NewCondition()
		_, wg := startWaiters(t, c, 2)

		c.Destroy()

		assert.Equal(t, int32(diag.ExitOSErr), exit.Load())
		assert.Contains(t, logs.String(), "waiting=2")

		_, err := c.Broadcast()
		require.NoError(t, err)
		wg.Wait()
	})
}
