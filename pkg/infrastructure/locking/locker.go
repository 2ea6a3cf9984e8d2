// Package locking serializes work that must not run concurrently for the
// same key, such as two allocations of one press run.
package locking

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrEmptyKey is returned when a lock key is blank
var ErrEmptyKey = errors.New("lock key cannot be empty")

// Locker runs fn while holding the lock named by key
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// PressRunKey names the lock guarding one press run
func PressRunKey(pressRunID string) string {
	return "cidery:press-run:" + pressRunID
}

// KeyedMutex is an in-process Locker. Waiting honours ctx cancellation.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

var _ Locker = (*KeyedMutex)(nil)

// WithLock blocks until key is free or ctx is done
func (m *KeyedMutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	l := m.acquireRef(key)
	defer m.releaseRef(key, l)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.sem }()

	return fn(ctx)
}

func (m *KeyedMutex) acquireRef(key string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *KeyedMutex) releaseRef(key string, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Held reports how many keys currently have holders or waiters
func (m *KeyedMutex) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
