package service

import "sync"

// turnLock serializes work per conversation id. Entries are dropped once no
// goroutine holds or waits on them.
type turnLock struct {
	mu    sync.Mutex
	locks map[string]*turnEntry
}

type turnEntry struct {
	mu   sync.Mutex
	refs int
}

func newTurnLock() *turnLock {
	return &turnLock{locks: make(map[string]*turnEntry)}
}

// Lock blocks until the caller owns id and returns the matching unlock func.
func (t *turnLock) Lock(id string) func() {
	t.mu.Lock()
	e, ok := t.locks[id]
	if !ok {
		e = &turnEntry{}
		t.locks[id] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.locks, id)
		}
		t.mu.Unlock()
	}
}

// size reports the number of tracked ids.
func (t *turnLock) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
