package model

import "time"

// WaitlistEntry is a user's place in the promotion queue of a full
// session.  Position values for a session are unique and strictly
// increasing in creation order; they are never renumbered, so gaps
// appear after promotions but the relative order of the survivors is
// preserved.  An entry is deleted (not marked) when the user is
// promoted or withdraws.
type WaitlistEntry struct {
	ID        uint64    `json:"id"`
	SessionID uint64    `json:"session_id"`
	UserID    uint64    `json:"user_id"`
	Position  uint32    `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}
