package locking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	var (
		active  int32
		maxSeen int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(context.Background(), PressRunKey("pr-1"), func(context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					seen := atomic.LoadInt32(&maxSeen)
					if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen)
	assert.Zero(t, m.Held(), "idle keys are dropped")
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	inside := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = m.WithLock(context.Background(), PressRunKey("pr-1"), func(context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	done := make(chan error, 1)
	go func() {
		done <- m.WithLock(context.Background(), PressRunKey("pr-2"), func(context.Context) error { return nil })
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("lock on another key blocked")
	}
	close(release)
}

func TestKeyedMutex_WaitHonoursContext(t *testing.T) {
	m := NewKeyedMutex()
	inside := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_ = m.WithLock(context.Background(), "k", func(context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := m.WithLock(ctx, "k", func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}

func TestKeyedMutex_ReturnsFnError(t *testing.T) {
	m := NewKeyedMutex()
	boom := errors.New("boom")

	err := m.WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.Same(t, boom, err)

	assert.ErrorIs(t, m.WithLock(context.Background(), " ", func(context.Context) error { return nil }), ErrEmptyKey)
}

func TestPressRunKey(t *testing.T) {
	assert.Equal(t, "cidery:press-run:pr-1", PressRunKey("pr-1"))
}
