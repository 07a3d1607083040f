package engine

import (
	"context"

	"github.com/iliyamo/gym-session-reservation/internal/model"
)

// AttemptBooking decides the outcome of one booking request.  Inside
// the session's exclusive claim it checks, in order: session existence
// and status, the user's own overlapping bookings, then capacity.  The
// overlap check runs before the capacity branch so a user is never
// told "full" when the real reason is their own conflicting booking.
// When the session is full and allowWaitlist is set, the user is
// queued instead; at most one reservation or one waitlist entry is
// created, never both.
func (e *Engine) AttemptBooking(ctx context.Context, sessionID, userID uint64, allowWaitlist bool) (BookingOutcome, error) {
	if err := e.locks.acquire(ctx, sessionID); err != nil {
		return BookingOutcome{}, err
	}
	defer e.locks.release(sessionID)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return BookingOutcome{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sess, err := tx.FindSessionForUpdate(ctx, sessionID)
	if err != nil {
		return BookingOutcome{}, err
	}
	if sess == nil {
		return BookingOutcome{}, ErrSessionNotFound
	}
	if !sess.Status.Bookable() {
		return BookingOutcome{}, ErrSessionUnavailable
	}

	overlaps, err := tx.CountUserOverlaps(ctx, userID, sess.StartsAt, sess.EndsAt)
	if err != nil {
		return BookingOutcome{}, err
	}
	if overlaps > 0 {
		return BookingOutcome{}, ErrOverlapConflict
	}

	booked, err := tx.CountBooked(ctx, sessionID)
	if err != nil {
		return BookingOutcome{}, err
	}
	if booked < sess.Capacity {
		res, err := tx.InsertReservation(ctx, sessionID, userID)
		if err != nil {
			return BookingOutcome{}, err
		}
		if err := tx.Commit(); err != nil {
			return BookingOutcome{}, err
		}
		committed = true
		return BookingOutcome{Reservation: res}, nil
	}

	if !allowWaitlist {
		return BookingOutcome{}, ErrSessionFull
	}
	pos, err := e.enqueueTx(ctx, tx, sessionID, userID)
	if err != nil {
		return BookingOutcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return BookingOutcome{}, err
	}
	committed = true
	return BookingOutcome{Waitlisted: true, Position: pos}, nil
}

// CancelBooking marks a booked reservation cancelled and promotes the
// head of the session's waitlist, synchronously, before the claim is
// released.  There is therefore no window in which capacity is free
// but no promotion has been attempted.  The acting user must own the
// reservation or be an admin.  The cancellation and any promotion
// commit as one unit: if the promotion's write fails, the whole
// operation rolls back and the reservation stays booked.
func (e *Engine) CancelBooking(ctx context.Context, reservationID, actingUserID uint64, actingIsAdmin bool) (CancelOutcome, error) {
	// The session is unknown until the reservation row is read, so a
	// preliminary lookup locates it; the row is re-read inside the
	// transaction once the claim is held.
	res, err := e.store.FindReservation(ctx, reservationID)
	if err != nil {
		return CancelOutcome{}, err
	}
	if res == nil {
		return CancelOutcome{}, ErrReservationNotFound
	}
	sessionID := res.SessionID

	if err := e.locks.acquire(ctx, sessionID); err != nil {
		return CancelOutcome{}, err
	}
	defer e.locks.release(sessionID)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return CancelOutcome{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err = tx.FindReservation(ctx, reservationID)
	if err != nil {
		return CancelOutcome{}, err
	}
	if res == nil {
		return CancelOutcome{}, ErrReservationNotFound
	}
	if res.UserID != actingUserID && !actingIsAdmin {
		return CancelOutcome{}, ErrForbidden
	}
	if !res.Status.CanTransition(model.ReservationCancelled) {
		return CancelOutcome{}, ErrNotCancellable
	}

	sess, err := tx.FindSessionForUpdate(ctx, sessionID)
	if err != nil {
		return CancelOutcome{}, err
	}
	if sess == nil {
		return CancelOutcome{}, ErrSessionNotFound
	}

	if err := tx.UpdateReservationStatus(ctx, res.ID, model.ReservationCancelled); err != nil {
		return CancelOutcome{}, err
	}
	promoted, err := e.promoteTx(ctx, tx, sess)
	if err != nil {
		return CancelOutcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return CancelOutcome{}, err
	}
	committed = true

	res.Status = model.ReservationCancelled
	return CancelOutcome{Reservation: res, Promoted: promoted}, nil
}
