// Package engine implements the seat-allocation core for group
// sessions: admission control (book, queue or reject a booking
// attempt) and waitlist promotion when capacity frees up.  All
// admission-affecting operations for one session are serialized by an
// in-process per-session claim and executed inside a single storage
// transaction, so the capacity check and the resulting write are
// observed as one step by every other caller.  Operations on distinct
// sessions run fully in parallel.
package engine

import (
	"context"
	"time"

	"github.com/iliyamo/gym-session-reservation/internal/model"
)

// Store opens admission transactions and serves the reads that happen
// before a claim is taken.  It is the only way the engine reaches
// shared state; there is no package-level singleton.
type Store interface {
	// Begin opens a transaction.  Every write performed through the
	// returned Tx is committed or discarded as one unit.
	Begin(ctx context.Context) (Tx, error)
	// FindReservation loads a reservation outside any transaction.
	// It returns (nil, nil) when no reservation with that ID exists.
	FindReservation(ctx context.Context, id uint64) (*model.Reservation, error)
}

// Tx is a transaction over a session's admission state.  Lookup
// methods return (nil, nil) when the row is absent.  Implementations
// back FindSessionForUpdate with an exclusive row claim (e.g.
// SELECT ... FOR UPDATE) so concurrent engine instances sharing one
// database still serialize per session.
type Tx interface {
	FindSessionForUpdate(ctx context.Context, id uint64) (*model.Session, error)
	CountBooked(ctx context.Context, sessionID uint64) (int, error)
	// CountUserOverlaps counts the user's booked reservations whose
	// session time range intersects (start, end) as open intervals.
	CountUserOverlaps(ctx context.Context, userID uint64, start, end time.Time) (int, error)
	InsertReservation(ctx context.Context, sessionID, userID uint64) (*model.Reservation, error)
	FindReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id uint64, status model.ReservationStatus) error
	MaxWaitlistPosition(ctx context.Context, sessionID uint64) (uint32, error)
	InsertWaitlistEntry(ctx context.Context, sessionID, userID uint64, position uint32) (*model.WaitlistEntry, error)
	FindWaitlistEntry(ctx context.Context, sessionID, userID uint64) (*model.WaitlistEntry, error)
	// NextWaitlistEntry returns the entry with the smallest position,
	// ties broken by earliest creation time.
	NextWaitlistEntry(ctx context.Context, sessionID uint64) (*model.WaitlistEntry, error)
	DeleteWaitlistEntry(ctx context.Context, id uint64) error
	Commit() error
	Rollback() error
}

// Engine decides booking outcomes and manages waitlist promotion.
// It is safe for concurrent use.
type Engine struct {
	store Store
	locks *sessionLocks
}

// New returns an Engine bound to the given store.
func New(store Store) *Engine {
	if store == nil {
		panic("nil store passed to engine.New")
	}
	return &Engine{store: store, locks: newSessionLocks()}
}
