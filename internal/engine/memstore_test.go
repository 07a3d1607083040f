package engine

// In-memory Store used by the engine tests.  A transaction holds the
// store-wide mutex from Begin until Commit or Rollback, mimicking a
// database that serializes writers; Rollback replays an undo log so a
// failed operation leaves no partial state.

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/gym-session-reservation/internal/model"
)

var errInjected = errors.New("injected write failure")

type memStore struct {
	mu           sync.Mutex
	nextID       uint64
	sessions     map[uint64]*model.Session
	reservations map[uint64]*model.Reservation
	waitlist     map[uint64]*model.WaitlistEntry

	failNextReservationInsert bool
}

func newMemStore() *memStore {
	return &memStore{
		sessions:     make(map[uint64]*model.Session),
		reservations: make(map[uint64]*model.Reservation),
		waitlist:     make(map[uint64]*model.WaitlistEntry),
	}
}

func (s *memStore) id() uint64 { s.nextID++; return s.nextID }

func (s *memStore) addSession(start, end time.Time, capacity int, status model.SessionStatus) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &model.Session{
		ID: s.id(), Title: "class", StartsAt: start, EndsAt: end,
		Capacity: capacity, Status: status,
	}
	s.sessions[sess.ID] = sess
	return sess
}

func (s *memStore) bookedCount(sessionID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.SessionID == sessionID && r.Status == model.ReservationBooked {
			n++
		}
	}
	return n
}

func (s *memStore) waitlistLen(sessionID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.waitlist {
		if w.SessionID == sessionID {
			n++
		}
	}
	return n
}

func (s *memStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	return &memTx{s: s}, nil
}

func (s *memStore) FindReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

type memTx struct {
	s    *memStore
	undo []func()
	done bool
}

func (t *memTx) Commit() error {
	t.done = true
	t.s.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.s.mu.Unlock()
	return nil
}

func (t *memTx) FindSessionForUpdate(ctx context.Context, id uint64) (*model.Session, error) {
	sess, ok := t.s.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (t *memTx) CountBooked(ctx context.Context, sessionID uint64) (int, error) {
	n := 0
	for _, r := range t.s.reservations {
		if r.SessionID == sessionID && r.Status == model.ReservationBooked {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CountUserOverlaps(ctx context.Context, userID uint64, start, end time.Time) (int, error) {
	n := 0
	for _, r := range t.s.reservations {
		if r.UserID != userID || r.Status != model.ReservationBooked {
			continue
		}
		if sess, ok := t.s.sessions[r.SessionID]; ok && sess.Overlaps(start, end) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertReservation(ctx context.Context, sessionID, userID uint64) (*model.Reservation, error) {
	if t.s.failNextReservationInsert {
		t.s.failNextReservationInsert = false
		return nil, errInjected
	}
	r := &model.Reservation{
		ID: t.s.id(), SessionID: sessionID, UserID: userID,
		Status: model.ReservationBooked, CreatedAt: time.Now().UTC(),
	}
	t.s.reservations[r.ID] = r
	t.undo = append(t.undo, func() { delete(t.s.reservations, r.ID) })
	cp := *r
	return &cp, nil
}

func (t *memTx) FindReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	r, ok := t.s.reservations[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (t *memTx) UpdateReservationStatus(ctx context.Context, id uint64, status model.ReservationStatus) error {
	r, ok := t.s.reservations[id]
	if !ok {
		return errors.New("no such reservation")
	}
	prev := r.Status
	r.Status = status
	t.undo = append(t.undo, func() { r.Status = prev })
	return nil
}

func (t *memTx) MaxWaitlistPosition(ctx context.Context, sessionID uint64) (uint32, error) {
	var max uint32
	for _, w := range t.s.waitlist {
		if w.SessionID == sessionID && w.Position > max {
			max = w.Position
		}
	}
	return max, nil
}

func (t *memTx) InsertWaitlistEntry(ctx context.Context, sessionID, userID uint64, position uint32) (*model.WaitlistEntry, error) {
	w := &model.WaitlistEntry{
		ID: t.s.id(), SessionID: sessionID, UserID: userID,
		Position: position, CreatedAt: time.Now().UTC(),
	}
	t.s.waitlist[w.ID] = w
	t.undo = append(t.undo, func() { delete(t.s.waitlist, w.ID) })
	cp := *w
	return &cp, nil
}

func (t *memTx) FindWaitlistEntry(ctx context.Context, sessionID, userID uint64) (*model.WaitlistEntry, error) {
	for _, w := range t.s.waitlist {
		if w.SessionID == sessionID && w.UserID == userID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) NextWaitlistEntry(ctx context.Context, sessionID uint64) (*model.WaitlistEntry, error) {
	var entries []*model.WaitlistEntry
	for _, w := range t.s.waitlist {
		if w.SessionID == sessionID {
			entries = append(entries, w)
		}
	}
	if len(entries) == 0 {
		return nil, nil
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Position != entries[j].Position {
			return entries[i].Position < entries[j].Position
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	cp := *entries[0]
	return &cp, nil
}

func (t *memTx) DeleteWaitlistEntry(ctx context.Context, id uint64) error {
	w, ok := t.s.waitlist[id]
	if !ok {
		return errors.New("no such waitlist entry")
	}
	delete(t.s.waitlist, id)
	t.undo = append(t.undo, func() { t.s.waitlist[w.ID] = w })
	return nil
}
