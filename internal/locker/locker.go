package locker

import "sync"

// KeyedLocker serializes work per key. The billing batches lock on the
// subscription ID so the due-invoice job and the trial-expiration job can
// never advance the same subscription concurrently; the scheduled triggers
// themselves stay uncoordinated.
//
// Locks are process-local. A multi-instance deployment must replace this
// with an advisory lock in the shared store.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLocker creates a new keyed locker
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{
		locks: make(map[string]*lockEntry),
	}
}

// Lock acquires the lock for the given key, blocking until it is free
func (l *KeyedLocker) Lock(key string) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the lock for the given key
func (l *KeyedLocker) Unlock(key string) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if ok {
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
	}
	l.mu.Unlock()

	if ok {
		entry.mu.Unlock()
	}
}
