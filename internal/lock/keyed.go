// Package lock provides per-key serialization primitives used to
// coordinate concurrent access to per-token and per-connection state
// without holding a single global mutex for the whole pipeline.
package lock

import (
	"sync"
	"sync/atomic"
)

// KeyedMutex hands out an independent critical section per key — e.g. per
// contract address — so unrelated tokens never block on each other while
// same-token operations (debounced persistence, SSE subscribe/unsubscribe)
// still serialize correctly.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	mu      sync.Mutex
	waiters int32
}

// NewKeyedMutex creates an empty per-key mutex manager.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyEntry)}
}

// Lock acquires the lock for key and returns the function that releases it.
// The entry is garbage-collected from the map once the last waiter departs.
func (km *KeyedMutex) Lock(key string) func() {
	km.mu.Lock()
	entry, ok := km.locks[key]
	if !ok {
		entry = &keyEntry{}
		km.locks[key] = entry
	}
	atomic.AddInt32(&entry.waiters, 1)
	km.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		km.mu.Lock()
		if atomic.AddInt32(&entry.waiters, -1) == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}

// Semaphore bounds concurrent holders per key without a single global
// limiter.
type Semaphore struct {
	mu    sync.Mutex
	semas map[string]chan struct{}
	limit int
}

// NewSemaphore creates a per-key semaphore with the given per-key capacity.
func NewSemaphore(limit int) *Semaphore {
	if limit <= 0 {
		limit = 1
	}
	return &Semaphore{semas: make(map[string]chan struct{}), limit: limit}
}

// TryAcquire attempts to take a slot for key without blocking.
func (s *Semaphore) TryAcquire(key string) bool {
	s.mu.Lock()
	ch, ok := s.semas[key]
	if !ok {
		ch = make(chan struct{}, s.limit)
		s.semas[key] = ch
	}
	s.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot for key.
func (s *Semaphore) Release(key string) {
	s.mu.Lock()
	ch, ok := s.semas[key]
	s.mu.Unlock()
	if ok {
		select {
		case <-ch:
		default:
		}
	}
}

// ActiveCount returns the number of slots currently held for key.
func (s *Semaphore) ActiveCount(key string) int {
	s.mu.Lock()
	ch, ok := s.semas[key]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return len(ch)
}

// AtomicCounter is a thread-safe counter for bookkeeping where a plain
// field would race.
type AtomicCounter struct {
	value int64
}

// Inc increments the counter and returns the new value.
func (c *AtomicCounter) Inc() int64 { return atomic.AddInt64(&c.value, 1) }

// Dec decrements the counter and returns the new value.
func (c *AtomicCounter) Dec() int64 { return atomic.AddInt64(&c.value, -1) }

// Get returns the current value.
func (c *AtomicCounter) Get() int64 { return atomic.LoadInt64(&c.value) }
