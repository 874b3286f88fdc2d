// Package locking serialises the check-then-write sequence for one venue.
//
// MutexLocker covers a single process. RedisLocker extends the same guarantee
// across replicas that share a Redis instance. Neither replaces the storage
// overlap constraint; they keep concurrent writers from racing into it.
package locking

import (
	"context"
	"errors"
	"sync"
)

// ErrEmptyKey is returned when Lock is called without a key.
var ErrEmptyKey = errors.New("locking: key is required")

// Locker acquires an exclusive lock for key. The returned release function
// must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// MutexLocker is an in-process keyed lock. Entries are reference counted and
// dropped once no goroutine holds or waits for them.
type MutexLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	slot chan struct{}
	refs int
}

// NewMutexLocker returns an empty MutexLocker.
func NewMutexLocker() *MutexLocker {
	return &MutexLocker{entries: make(map[string]*lockEntry)}
}

// Lock blocks until key is free or ctx is done.
func (l *MutexLocker) Lock(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	entry := l.acquire(key)
	select {
	case entry.slot <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(key, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.slot
			l.releaseRef(key, entry)
		})
	}, nil
}

// Held reports how many keys currently have holders or waiters.
func (l *MutexLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MutexLocker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{slot: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *MutexLocker) releaseRef(key string, entry *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}
