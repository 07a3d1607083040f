package engine

import (
	"errors"

	"github.com/iliyamo/gym-session-reservation/internal/model"
)

// Expected, user-facing rejections.  They are terminal for the attempt
// and are never retried inside the engine; handlers translate them
// into HTTP responses via errors.Is.  Infrastructure failures (storage
// or claim acquisition) propagate as whatever error the store or
// context produced and belong to a different class.
var (
	// ErrSessionNotFound is returned when the target session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionUnavailable is returned when the session is not in a
	// bookable state (cancelled or completed).
	ErrSessionUnavailable = errors.New("session not available for booking")
	// ErrOverlapConflict is returned when the user already holds a
	// booked reservation whose session overlaps the requested one.
	ErrOverlapConflict = errors.New("overlapping reservation exists")
	// ErrSessionFull is returned when capacity is exhausted and the
	// caller declined the waitlist.
	ErrSessionFull = errors.New("session full")
	// ErrAlreadyWaitlisted is returned when the user already has a
	// waitlist entry for the session.
	ErrAlreadyWaitlisted = errors.New("already on waitlist")
	// ErrReservationNotFound is returned when the reservation to
	// cancel does not exist.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrForbidden is returned when the acting user neither owns the
	// reservation nor is an admin.
	ErrForbidden = errors.New("forbidden")
	// ErrNotCancellable is returned when the reservation is not in the
	// booked state.  Cancelling an already-cancelled reservation is
	// rejected and never triggers a second promotion.
	ErrNotCancellable = errors.New("reservation not cancellable")
)

// BookingOutcome is the result of a successful AttemptBooking call:
// either an admitted reservation or a waitlist placement, never both.
type BookingOutcome struct {
	Reservation *model.Reservation // set when the user was admitted
	Waitlisted  bool               // true when the user was queued instead
	Position    uint32             // waitlist position, valid when Waitlisted
}

// Promotion reports that a waitlist entry was converted into a booked
// reservation.
type Promotion struct {
	UserID      uint64
	Reservation *model.Reservation
}

// CancelOutcome is the result of a successful CancelBooking call.
// Promoted is non-nil when the freed place was immediately handed to
// the head of the waitlist; callers use it for notifications only.
type CancelOutcome struct {
	Reservation *model.Reservation
	Promoted    *Promotion
}
