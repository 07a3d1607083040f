package model

import "time"

// SessionStatus is the lifecycle state of a session.  Only scheduled
// sessions accept new bookings; cancelled and completed are terminal.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionCancelled SessionStatus = "cancelled"
	SessionCompleted SessionStatus = "completed"
)

// Valid reports whether the status is one of the known values.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionCancelled, SessionCompleted:
		return true
	}
	return false
}

// Bookable reports whether new reservations may be admitted for a
// session in this state.
func (s SessionStatus) Bookable() bool { return s == SessionScheduled }

// Session represents a scheduled group class with a fixed number of
// places.  StartsAt and EndsAt define the time range (EndsAt must be
// strictly after StartsAt); Capacity is the maximum number of booked
// reservations allowed at any moment.
type Session struct {
	ID        uint64        `json:"id"`
	Title     string        `json:"title"`
	TrainerID *uint64       `json:"trainer_id,omitempty"`
	StartsAt  time.Time     `json:"starts_at"`
	EndsAt    time.Time     `json:"ends_at"`
	Capacity  int           `json:"capacity"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Overlaps reports whether the session's time range intersects the
// given range.  Ranges are open intervals: touching endpoints do not
// count as an overlap.
func (s *Session) Overlaps(start, end time.Time) bool {
	return s.StartsAt.Before(end) && s.EndsAt.After(start)
}
