package lifecycle

import "sync"

// keyedMutex provides per-key mutual exclusion. Operations referencing the
// same subscription or payment id serialize; operations on different ids
// proceed fully in parallel. Entries are reference-counted and removed when
// the last holder unlocks, so the map does not grow with id cardinality.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLockEntry
}

type keyedLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLockEntry)}
}

// Lock acquires the mutex for key, blocking until it is available
func (km *keyedMutex) Lock(key string) {
	km.mu.Lock()
	entry, ok := km.locks[key]
	if !ok {
		entry = &keyedLockEntry{}
		km.locks[key] = entry
	}
	entry.refs++
	km.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the mutex for key
func (km *keyedMutex) Unlock(key string) {
	km.mu.Lock()
	entry, ok := km.locks[key]
	if !ok {
		km.mu.Unlock()
		panic("keyedMutex: unlock of unheld key " + key)
	}
	entry.refs--
	if entry.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	entry.mu.Unlock()
}
