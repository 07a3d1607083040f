// Package queue defines message payloads exchanged over the message broker.
package queue

// Event kinds carried on the reservation.notifications queue.
const (
	EventBooked    = "reservation.booked"
	EventPromoted  = "reservation.promoted"
	EventCancelled = "reservation.cancelled"
)

// ReservationEvent is published whenever a member gains or loses a spot
// in a session.  It carries enough detail for downstream consumers to
// notify the member or feed analytics without querying the primary
// database.  Promotions reuse the same shape: the event tells a
// waitlisted member their spot opened up.
type ReservationEvent struct {
	Kind          string `json:"kind"`
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	SessionID     uint64 `json:"session_id"`
	SessionTitle  string `json:"session_title"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	OccurredAt    string `json:"occurred_at"`
}
