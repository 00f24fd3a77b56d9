package note

import (
	"sync"

	"github.com/google/uuid"
)

// Locks serializes writes per note. The sign path and the autosave flush
// path share one instance, which is what guarantees at most one in-flight
// write per note.
type Locks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*noteLock
}

type noteLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[uuid.UUID]*noteLock)}
}

// Lock acquires the lock for the given note and returns its unlock func.
func (l *Locks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	nl, ok := l.locks[id]
	if !ok {
		nl = &noteLock{}
		l.locks[id] = nl
	}
	nl.refs++
	l.mu.Unlock()

	nl.mu.Lock()

	return func() {
		nl.mu.Unlock()
		l.mu.Lock()
		nl.refs--
		if nl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
