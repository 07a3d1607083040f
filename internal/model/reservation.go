package model

import "time"

// ReservationStatus is the state of a reservation.  booked is the only
// active state; cancelled, attended and no_show are terminal.  The
// attended and no_show states are written by the check-in flow and are
// never touched by the admission engine.
type ReservationStatus string

const (
	ReservationBooked    ReservationStatus = "booked"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationAttended  ReservationStatus = "attended"
	ReservationNoShow    ReservationStatus = "no_show"
)

// Valid reports whether the status is one of the known values.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationBooked, ReservationCancelled, ReservationAttended, ReservationNoShow:
		return true
	}
	return false
}

// CanTransition reports whether a reservation may move from the current
// status to the given one.  Only booked reservations may transition;
// every other state is terminal.  A cancelled reservation is never
// re-activated: re-booking creates a new reservation instead.
func (s ReservationStatus) CanTransition(to ReservationStatus) bool {
	if s != ReservationBooked {
		return false
	}
	switch to {
	case ReservationCancelled, ReservationAttended, ReservationNoShow:
		return true
	}
	return false
}

// Reservation records one user's place in one session.
type Reservation struct {
	ID        uint64            `json:"id"`
	SessionID uint64            `json:"session_id"`
	UserID    uint64            `json:"user_id"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
