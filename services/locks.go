package services

import "sync"

// keyedLocks hands out one RWMutex per key (item id, sheet id). Mutexes are
// never removed; the key space is bounded by the catalog size.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.RWMutex)}
}

func (k *keyedLocks) get(key string) *sync.RWMutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		k.locks[key] = l
	}
	return l
}

// Lock acquires the writer lock for key and returns its release func.
func (k *keyedLocks) Lock(key string) func() {
	l := k.get(key)
	l.Lock()
	return l.Unlock
}

// RLock acquires a reader lock for key and returns its release func.
func (k *keyedLocks) RLock(key string) func() {
	l := k.get(key)
	l.RLock()
	return l.RUnlock
}
