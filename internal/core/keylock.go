package core

import "sync"

// keyLocker hands out one mutex per routing key. Entries are dropped once no
// goroutine holds or waits for them.
type keyLocker struct {
	mu    sync.Mutex
	locks map[RoutingKey]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyLocker() *keyLocker {
	return &keyLocker{locks: make(map[RoutingKey]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (l *keyLocker) Lock(key RoutingKey) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &refMutex{}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *keyLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
