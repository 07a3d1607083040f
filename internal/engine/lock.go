package engine

import (
	"context"
	"sync"
)

// sessionLocks serializes admission operations per session.  Each
// session ID maps to a one-slot semaphore; waiters for one session do
// not block operations on any other.  Slots are reference counted and
// removed once the last interested caller is gone, so the table does
// not grow with the number of sessions ever touched.
type sessionLocks struct {
	mu    sync.Mutex
	slots map[uint64]*lockSlot
}

type lockSlot struct {
	ch   chan struct{} // holds the single claim token
	refs int           // holders plus waiters
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{slots: make(map[uint64]*lockSlot)}
}

// acquire blocks until the caller holds the exclusive claim for the
// session or the context is done.  On success the caller must release
// the claim on every exit path.
func (l *sessionLocks) acquire(ctx context.Context, sessionID uint64) error {
	l.mu.Lock()
	s := l.slots[sessionID]
	if s == nil {
		s = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[sessionID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(sessionID)
		return ctx.Err()
	}
}

// release returns the claim and drops the caller's reference.
func (l *sessionLocks) release(sessionID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[sessionID]
	if s == nil {
		return
	}
	<-s.ch // never blocks: the caller holds the token
	s.refs--
	if s.refs == 0 {
		delete(l.slots, sessionID)
	}
}

// drop removes a waiter's reference without touching the token.  Used
// when acquisition is abandoned due to context cancellation.
func (l *sessionLocks) drop(sessionID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[sessionID]
	if s == nil {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, sessionID)
	}
}
