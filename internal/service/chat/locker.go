package chat

import "sync"

// Locker hands out one mutex per conversation id. Entries are dropped when the
// last holder releases, so the map only holds conversations with writers in flight.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// NewLocker creates an empty per-conversation locker
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*refMutex)}
}

// Lock blocks until the conversation is free and returns the release func
func (l *Locker) Lock(conversationID string) func() {
	l.mu.Lock()
	m, ok := l.locks[conversationID]
	if !ok {
		m = &refMutex{}
		l.locks[conversationID] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, conversationID)
		}
		l.mu.Unlock()
	}
}

// held reports how many conversations currently have a holder or waiter
func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
