package threading

import (
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/threading/internal/threading/diag"
	"github.com/kolkov/threading/internal/threading/goid"
)

func TestMutex_MutualExclusion(t *testing.T) {
	t.Parallel()

	const (
		goroutines = 8
		iterations = 500
	)

	mu := NewMutex()
	counter := 0

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()

			for range iterations {
				if err := mu.Lock(); err != nil {
					t.Error(err)
					return
				}
				counter++
				if err := mu.Unlock(); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, goroutines*iterations, counter)
	assert.False(t, mu.IsLocked())
}

func TestMutex_ZeroValue(t *testing.T) {
	t.Parallel()

	var mu Mutex

	require.NoError(t, mu.Lock())
	assert.True(t, mu.IsLocked())
	require.NoError(t, mu.Unlock())
	assert.False(t, mu.IsLocked())
}

func TestMutex_DoubleLock(t *testing.T) {
	t.Parallel()

	mu := NewMutex()
	require.NoError(t, mu.Lock())

	owner, ok := mu.Owner()
	require.True(t, ok)
	assert.Equal(t, goid.Current(), owner)

	err := mu.Lock()
	require.ErrorIs(t, err, ErrDoubleLock)
	assert.ErrorIs(t, err, ErrLogic)
	assert.NotErrorIs(t, err, ErrSystem)

	_, err = mu.TryLock()
	require.ErrorIs(t, err, ErrDoubleLock)

	_, err = mu.TimedLock(time.Millisecond)
	require.ErrorIs(t, err, ErrDoubleLock)

	after, _ := mu.Owner()
	assert.Equal(t, owner, after, "owner must not change")

	require.NoError(t, mu.Unlock())
}

func TestMutex_OwnerMismatch(t *testing.T) {
	t.Parallel()

	mu := NewMutex()
	require.NoError(t, mu.Lock())
	owner, _ := mu.Owner()

	errc := make(chan error)
	go func() { errc <- mu.Unlock() }()

	err := <-errc
	require.ErrorIs(t, err, ErrOwnerMismatch)
	assert.EqualError(t, err, "threading: Mutex.Unlock: owner mismatch")

	assert.True(t, mu.IsLocked())
	after, _ := mu.Owner()
	assert.Equal(t, owner, after)

	require.NoError(t, mu.Unlock())
}

func TestMutex_NotLocked(t *testing.T) {
	t.Parallel()

	mu := NewMutex()

	require.ErrorIs(t, mu.Unlock(), ErrNotLocked)
}

func TestMutex_TryLock(t *testing.T) {
	t.Parallel()

	mu := NewMutex()
	h := hold(t, mu.Lock, mu.Unlock)

	ok, err := mu.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)

	h.Release(t)

	ok, err = mu.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mu.Unlock())
}

func TestMutex_TimedLock(t *testing.T) {
	t.Parallel()

	mu := NewMutex()

	t.Run("free", func(t *testing.T) {
		ok, err := mu.TimedLock(time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, mu.Unlock())
	})

	t.Run("expires when contended", func(t *testing.T) {
		h := hold(t, mu.Lock, mu.Unlock)
		defer h.Release(t)

		const d = 50 * time.Millisecond

		start := time.Now()
		ok, err := mu.TimedLock(d)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.False(t, ok)
		assert.GreaterOrEqual(t, elapsed, d-5*time.Millisecond)
		assert.Less(t, elapsed, d+timeoutMargin)
	})

	t.Run("acquires when released in time", func(t *testing.T) {
		h := hold(t, mu.Lock, mu.Unlock)

		go func() {
			time.Sleep(20 * time.Millisecond)
			h.Release(t)
		}()

		ok, err := mu.TimedLock(5 * time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, mu.Unlock())
	})

	t.Run("negative duration", func(t *testing.T) {
		ok, err := mu.TimedLock(-time.Second)
		require.ErrorIs(t, err, ErrInvalidArgument)
		assert.False(t, ok)
		assert.False(t, mu.IsLocked())
	})
}

func TestMutex_UnlockNativeFailure(t *testing.T) {
	t.Parallel()

	mu := NewMutex()
	require.NoError(t, mu.Lock())
	owner, _ := mu.Owner()

	// Corrupt the native handle: the token disappears behind the owner's back.
	<-mu.sem

	err := mu.Unlock()
	require.ErrorIs(t, err, ErrSystem)
	require.ErrorIs(t, err, syscall.EPERM)

	var sysErr *SystemError
	require.True(t, errors.As(err, &sysErr))
	assert.Equal(t, "Mutex.Unlock", sysErr.Op)

	// Ownership is restored after the failed release.
	after, ok := mu.Owner()
	assert.True(t, ok)
	assert.Equal(t, owner, after)

	mu.sem <- struct{}{}
	require.NoError(t, mu.Unlock())
}

func TestMutex_LockedAt(t *testing.T) {
	t.Parallel()

	mu := NewMutex()
	assert.Empty(t, mu.LockedAt())

	require.NoError(t, mu.Lock())
	assert.Contains(t, mu.LockedAt(), "TestMutex_LockedAt")

	require.NoError(t, mu.Unlock())
	assert.Empty(t, mu.LockedAt())
}

func TestMutex_Destroy(t *testing.T) {
	t.Run("unlocked is a no-op", func(t *testing.T) {
		logs := captureErrors(t, KindMutex)

		NewMutex().Destroy()

		assert.Empty(t, logs.String())
	})

	t.Run("owner releases", func(t *testing.T) {
		logs := captureErrors(t, KindMutex)

		mu := NewMutex()
		require.NoError(t, mu.Lock())

		mu.Destroy()

		assert.False(t, mu.IsLocked())
		assert.Empty(t, logs.String())
	})

	t.Run("non-owner is logged", func(t *testing.T) {
		logs := captureErrors(t, KindMutex)
		exit := captureExit(t)

		mu := NewMutex()
		h := hold(t, mu.Lock, mu.Unlock)
		defer h.Release(t)

		mu.Destroy()

		assert.True(t, mu.IsLocked())
		assert.Zero(t, exit.Load())
		assert.Contains(t, logs.String(), "owner mismatch")
		assert.Contains(t, logs.String(), "op=Mutex.Destroy")
	})

	t.Run("native failure is fatal", func(t *testing.T) {
		logs := captureErrors(t, KindMutex)
		exit := captureExit(t)

		mu := NewMutex()
		require.NoError(t, mu.Lock())
		<-mu.sem

		mu.Destroy()

		assert.Equal(t, int32(diag.ExitOSErr), exit.Load())
		assert.Contains(t, logs.String(), "fatal teardown failure")
	})
}

func TestMutex_IsLockedOnceLockReturns(t *testing.T) {
	t.Parallel()

	mu := NewMutex()

	for range 100 {
		h := hold(t, mu.Lock, mu.Unlock)

		assert.True(t, mu.IsLocked())
		owner, ok := mu.Owner()
		assert.True(t, ok)
		assert.NotEqual(t, goid.None, owner)

		h.Release(t)
		assert.False(t, mu.IsLocked())
	}
}
