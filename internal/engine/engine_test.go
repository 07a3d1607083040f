package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/gym-session-reservation/internal/model"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC)
}

// TestBookingAdmitsUntilCapacity books distinct users into a session
// and verifies the capacity boundary.
func TestBookingAdmitsUntilCapacity(t *testing.T) {
	store := newMemStore()
	e := New(store)
	sess := store.addSession(at(10, 0), at(11, 0), 2, model.SessionScheduled)

	for user := uint64(1); user <= 2; user++ {
		out, err := e.AttemptBooking(context.Background(), sess.ID, user, false)
		if err != nil {
			t.Fatalf("booking user %d: %v", user, err)
		}
		if out.Reservation == nil || out.Reservation.Status != model.ReservationBooked {
			t.Fatalf("user %d: expected booked reservation, got %+v", user, out)
		}
	}
	if _, err := e.AttemptBooking(context.Background(), sess.ID, 3, false); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull, got %v", err)
	}
	if got := store.bookedCount(sess.ID); got != 2 {
		t.Fatalf("booked count = %d, want 2", got)
	}
}

// TestConcurrentBookingRespectsCapacity runs many concurrent attempts
// against one session and checks that the booked count never exceeds
// capacity, regardless of interleaving.
func TestConcurrentBookingRespectsCapacity(t *testing.T) {
	store := newMemStore()
	e := New(store)
	const capacity = 3
	const attempts = 24
	sess := store.addSession(at(10, 0), at(11, 0), capacity, model.SessionScheduled)

	var wg sync.WaitGroup
	var mu sync.Mutex
	booked, full := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			out, err := e.AttemptBooking(context.Background(), sess.ID, user, false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && out.Reservation != nil:
				booked++
			case errors.Is(err, ErrSessionFull):
				full++
			default:
				t.Errorf("user %d: unexpected result out=%+v err=%v", user, out, err)
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	if booked != capacity {
		t.Fatalf("booked = %d, want %d", booked, capacity)
	}
	if full != attempts-capacity {
		t.Fatalf("full = %d, want %d", full, attempts-capacity)
	}
	if got := store.bookedCount(sess.ID); got != capacity {
		t.Fatalf("store booked count = %d, want %d", got, capacity)
	}
}

// TestCapacityOneTwoCallers mirrors the two-user race: exactly one
// caller is admitted and the other is told the session is full.
func TestCapacityOneTwoCallers(t *testing.T) {
	store := newMemStore()
	e := New(store)
	sess := store.addSession(at(18, 0), at(19, 0), 1, model.SessionScheduled)

	results := make(chan error, 2)
	for _, user := range []uint64{1, 2} {
		go func(u uint64) {
			_, err := e.AttemptBooking(context.Background(), sess.ID, u, false)
			results <- err
		}(user)
	}
	errA, errB := <-results, <-results
	if (errA == nil) == (errB == nil) {
		t.Fatalf("expected exactly one success, got %v and %v", errA, errB)
	}
	for _, err := range []error{errA, errB} {
		if err != nil && !errors.Is(err, ErrSessionFull) {
			t.Fatalf("loser should see ErrSessionFull, got %v", err)
		}
	}
}

// TestOverlapConflict checks that a user holding a booked reservation
// cannot book a second session whose time range intersects, even when
// that session has free capacity.
func TestOverlapConflict(t *testing.T) {
	store := newMemStore()
	e := New(store)
	s1 := store.addSession(at(10, 0), at(11, 0), 5, model.SessionScheduled)
	s2 := store.addSession(at(10, 30), at(11, 30), 5, model.SessionScheduled)

	if _, err := e.AttemptBooking(context.Background(), s1.ID, 1, false); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := e.AttemptBooking(context.Background(), s2.ID, 1, false); !errors.Is(err, ErrOverlapConflict) {
		t.Fatalf("expected ErrOverlapConflict, got %v", err)
	}
	// Booking the same session twice is also an overlap with itself.
	if _, err := e.AttemptBooking(context.Background(), s1.ID, 1, false); !errors.Is(err, ErrOverlapConflict) {
		t.Fatalf("double booking same session: expected ErrOverlapConflict, got %v", err)
	}
}

// TestTouchingEndpointsDoNotOverlap verifies the open-interval rule:
// back-to-back sessions may both be booked.
func TestTouchingEndpointsDoNotOverlap(t *testing.T) {
	store := newMemStore()
	e := New(store)
	s1 := store.addSession(at(10, 0), at(11, 0), 5, model.SessionScheduled)
	s2 := store.addSession(at(11, 0), at(12, 0), 5, model.SessionScheduled)

	if _, err := e.AttemptBooking(context.Background(), s1.ID, 1, false); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := e.AttemptBooking(context.Background(), s2.ID, 1, false); err != nil {
		t.Fatalf("adjacent booking should succeed: %v", err)
	}
}

func TestBookingRejectsUnknownAndUnavailableSessions(t *testing.T) {
	store := newMemStore()
	e := New(store)
	cancelled := store.addSession(at(10, 0), at(11, 0), 5, model.SessionCancelled)

	if _, err := e.AttemptBooking(context.Background(), 9999, 1, true); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := e.AttemptBooking(context.Background(), cancelled.ID, 1, true); !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("expected ErrSessionUnavailable, got %v", err)
	}
}

// TestWaitlistAssignsIncreasingPositions fills a session, then queues
// two more users and checks positions and duplicate rejection.
func TestWaitlistAssignsIncreasingPositions(t *testing.T) {
	store := newMemStore()
	e := New(store)
	sess := store.addSession(at(10, 0), at(11, 0), 1, model.SessionScheduled)

	if _, err := e.AttemptBooking(context.Background(), sess.ID, 1, false); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	out, err := e.AttemptBooking(context.Background(), sess.ID, 2, true)
	if err != nil {
		t.Fatalf("waitlist attempt: %v", err)
	}
	if !out.Waitlisted || out.Position != 1 {
		t.Fatalf("expected waitlisted at position 1, got %+v", out)
	}
	if pos, err := e.Enqueue(context.Background(), sess.ID, 3); err != nil || pos != 2 {
		t.Fatalf("Enqueue = (%d, %v), want (2, nil)", pos, err)
	}
	if _, err := e.Enqueue(context.Background(), sess.ID, 2); !errors.Is(err, ErrAlreadyWaitlisted) {
		t.Fatalf("expected ErrAlreadyWaitlisted, got %v", err)
	}
}

// TestPromotionOnCancel is the core promotion scenario: capacity 1,
// A booked, B waitlisted; A cancels and B becomes booked within the
// same operation.
func TestPromotionOnCancel(t *testing.T) {
	store := newMemStore()
	e := New(store)
	sess := store.addSession(at(10, 0), at(11, 0), 1, model.SessionScheduled)

	outA, err := e.AttemptBooking(context.Background(), sess.ID, 1, false)
	if err != nil {
		t.Fatalf("booking A: %v", err)
	}
	if _, err := e.AttemptBooking(context.Background(), sess.ID, 2, true); err != nil {
		t.Fatalf("waitlisting B: %v", err)
	}

	cancel, err := e.CancelBooking(context.Background(), outA.Reservation.ID, 1, false)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancel.Promoted == nil || cancel.Promoted.UserID != 2 {
		t.Fatalf("expected promotion of user 2, got %+v", cancel.Promoted)
	}
	if got := store.bookedCount(sess.ID); got != 1 {
		t.Fatalf("booked count after promotion = %d, want 1", got)
	}
	if got := store.waitlistLen(sess.ID); got != 0 {
		t.Fatalf("waitlist length after promotion = %d, want 0", got)
	}
}

// TestPromotionOrderPreserved drains a three-deep waitlist through
// successive cancellations and checks strict position order, with no
// renumbering of the survivors.
func TestPromotionOrderPreserved(t *testing.T) {
	store := newMemStore()
	e := New(store)
	sess := store.addSession(at(10, 0), at(11, 0), 1, model.SessionScheduled)

	seed, err := e.AttemptBooking(context.Background(), sess.ID, 1, false)
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	for _, user := range []uint64{2, 3, 4} {
		if _, err := e.AttemptBooking(context.Background(), sess.ID, user, true); err != nil {
			t.Fatalf("waitlisting user %d: %v", user, err)
		}
	}

	current := seed.Reservation
	for _, want := range []uint64{2, 3, 4} {
		out, err := e.CancelBooking(context.Background(), current.ID, current.UserID, false)
		if err != nil {
			t.Fatalf("cancel for user %d: %v", want, err)
		}
		if out.Promoted == nil || out.Promoted.UserID != want {
			t.Fatalf("expected promotion of user %d, got %+v", want, out.Promoted)
		}
		current = out.Promoted.Reservation
	}
	if got := store.waitlistLen(sess.ID); got != 0 {
		t.Fatalf("waitlist length = %d, want 0", got)
	}
}

// TestCancelTwiceRejectedWithoutSecondPromotion guards the terminal
// state: a cancelled reservation cannot be cancelled again, and the
// rejected attempt must not promote anyone.
func TestCancelTwiceRejectedWithoutSecondPromotion(t *testing.T) {
	store := newMemStore()
	e := New(store)
	sess := store.addSession(at(10, 0), at(11, 0), 2, model.SessionScheduled)

	out, err := e.AttemptBooking(context.Background(), sess.ID, 1, false)
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if _, err := e.CancelBooking(context.Background(), out.Reservation.ID, 1, false); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	// Queue someone so an (incorrect) second promotion would be visible.
	if _, err := e.AttemptBooking(context.Background(), sess.ID, 2, false); err != nil {
		t.Fatalf("second booking: %v", err)
	}
	if _, err := e.Enqueue(context.Background(), sess.ID, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := e.CancelBooking(context.Background(), out.Reservation.ID, 1, false); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("expected ErrNotCancellable, got %v", err)
	}
	if got := store.waitlistLen(sess.ID); got != 1 {
		t.Fatalf("waitlist length = %d, want 1 (no promotion)", got)
	}
}

func TestCancelAuthorization(t *testing.T) {
	store := newMemStore()
	e := New(store)
	sess := store.addSession(at(10, 0), at(11, 0), 2, model.SessionScheduled)

	out, err := e.AttemptBooking(context.Background(), sess.ID, 1, false)
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if _, err := e.CancelBooking(context.Background(), out.Reservation.ID, 2, false); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := e.CancelBooking(context.Background(), out.Reservation.ID, 2, true); err != nil {
		t.Fatalf("admin cancel should succeed: %v", err)
	}
	if _, err := e.CancelBooking(context.Background(), 9999, 1, true); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestPromoteWithEmptyWaitlist(t *testing.T) {
	store := newMemStore()
	e := New(store)
	sess := store.addSession(at(10, 0), at(11, 0), 2, model.SessionScheduled)

	promoted, err := e.Promote(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted != nil {
		t.Fatalf("expected no promotion, got %+v", promoted)
	}
	if _, err := e.Promote(context.Background(), 9999); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

// TestPromoteSkippedWhileFull checks the defensive capacity re-check
// inside promotion: a full session never promotes even with waiters.
func TestPromoteSkippedWhileFull(t *testing.T) {
	store := newMemStore()
	e := New(store)
	sess := store.addSession(at(10, 0), at(11, 0), 1, model.SessionScheduled)

	if _, err := e.AttemptBooking(context.Background(), sess.ID, 1, false); err != nil {
		t.Fatalf("booking: %v", err)
	}
	if _, err := e.Enqueue(context.Background(), sess.ID, 2); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	promoted, err := e.Promote(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted != nil {
		t.Fatalf("full session must not promote, got %+v", promoted)
	}
	if got := store.waitlistLen(sess.ID); got != 1 {
		t.Fatalf("waitlist length = %d, want 1", got)
	}
}

// TestCancelRollsBackWhenPromotionFails injects a failure into the
// promotion's reservation insert and verifies the cancellation rolled
// back with it: the original reservation stays booked and the waitlist
// entry survives.
func TestCancelRollsBackWhenPromotionFails(t *testing.T) {
	store := newMemStore()
	e := New(store)
	sess := store.addSession(at(10, 0), at(11, 0), 1, model.SessionScheduled)

	out, err := e.AttemptBooking(context.Background(), sess.ID, 1, false)
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if _, err := e.Enqueue(context.Background(), sess.ID, 2); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	store.failNextReservationInsert = true
	if _, err := e.CancelBooking(context.Background(), out.Reservation.ID, 1, false); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	res, err := store.FindReservation(context.Background(), out.Reservation.ID)
	if err != nil || res == nil {
		t.Fatalf("reservation lookup: res=%v err=%v", res, err)
	}
	if res.Status != model.ReservationBooked {
		t.Fatalf("reservation status = %s, want booked after rollback", res.Status)
	}
	if got := store.waitlistLen(sess.ID); got != 1 {
		t.Fatalf("waitlist length = %d, want 1 after rollback", got)
	}
	if got := store.bookedCount(sess.ID); got != 1 {
		t.Fatalf("booked count = %d, want 1 after rollback", got)
	}
}

// TestNoSelfOverlapAcrossManySessions books a user into several
// disjoint sessions concurrently and confirms none of their booked
// reservations overlap afterwards.
func TestNoSelfOverlapAcrossManySessions(t *testing.T) {
	store := newMemStore()
	e := New(store)
	var ids []uint64
	for i := 0; i < 4; i++ {
		s := store.addSession(at(8+2*i, 0), at(9+2*i, 0), 3, model.SessionScheduled)
		ids = append(ids, s.ID)
	}
	// Two sessions overlapping the first two respectively.
	o1 := store.addSession(at(8, 30), at(9, 30), 3, model.SessionScheduled)
	o2 := store.addSession(at(10, 30), at(11, 30), 3, model.SessionScheduled)
	ids = append(ids, o1.ID, o2.ID)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(sessionID uint64) {
			defer wg.Done()
			_, err := e.AttemptBooking(context.Background(), sessionID, 1, false)
			if err != nil && !errors.Is(err, ErrOverlapConflict) {
				t.Errorf("session %d: %v", sessionID, err)
			}
		}(id)
	}
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	var booked []*model.Session
	for _, r := range store.reservations {
		if r.UserID == 1 && r.Status == model.ReservationBooked {
			booked = append(booked, store.sessions[r.SessionID])
		}
	}
	for i := 0; i < len(booked); i++ {
		for j := i + 1; j < len(booked); j++ {
			if booked[i].Overlaps(booked[j].StartsAt, booked[j].EndsAt) {
				t.Fatalf("user holds overlapping bookings: %d and %d", booked[i].ID, booked[j].ID)
			}
		}
	}
}
