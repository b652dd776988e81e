package app

import "sync"

// keyedLocks hands out one RWMutex per key and forgets keys nobody holds.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*refLock
}

type refLock struct {
	sync.RWMutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*refLock)}
}

func (k *keyedLocks) acquire(key string) *refLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &refLock{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *keyedLocks) release(key string, e *refLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// Lock takes the exclusive lock for key and returns its unlock func.
func (k *keyedLocks) Lock(key string) func() {
	e := k.acquire(key)
	e.Lock()
	return func() {
		e.Unlock()
		k.release(key, e)
	}
}

// RLock takes the shared lock for key and returns its unlock func.
func (k *keyedLocks) RLock(key string) func() {
	e := k.acquire(key)
	e.RLock()
	return func() {
		e.RUnlock()
		k.release(key, e)
	}
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func studentKey(quizID, email string) string {
	return quizID + "\x00" + email
}
