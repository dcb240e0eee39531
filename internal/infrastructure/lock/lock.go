// Package lock serializes mutations on a single entity (a lending position or
// a marketplace listing) across concurrent requests.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrTimeout is returned when a key stays held past the wait budget.
var ErrTimeout = errors.New("lock: timed out waiting for key")

// Locker hands out exclusive ownership of a key. The returned release func is
// safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type memoryEntry struct {
	ch   chan struct{}
	refs int
}

// Memory is an in-process keyed mutex. Entries are dropped once nobody holds
// or waits on them.
type Memory struct {
	mu   sync.Mutex
	keys map[string]*memoryEntry
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]*memoryEntry)}
}

func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.keys[key]
	if !ok {
		e = &memoryEntry{ch: make(chan struct{}, 1)}
		m.keys[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.unref(key, e)
		})
	}, nil
}

func (m *Memory) unref(key string, e *memoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.keys, key)
	}
}

// held reports how many keys are currently tracked.
func (m *Memory) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
