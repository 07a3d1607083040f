package engine

import (
	"context"

	"github.com/iliyamo/gym-session-reservation/internal/model"
)

// Enqueue adds a user to the waitlist of an existing session and
// returns their assigned position.  Positions are assigned as
// max(existing)+1 inside the session's claim, so two concurrent
// enqueues can never end up at the same position.  A user may hold at
// most one entry per session.
func (e *Engine) Enqueue(ctx context.Context, sessionID, userID uint64) (uint32, error) {
	if err := e.locks.acquire(ctx, sessionID); err != nil {
		return 0, err
	}
	defer e.locks.release(sessionID)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sess, err := tx.FindSessionForUpdate(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if sess == nil {
		return 0, ErrSessionNotFound
	}
	pos, err := e.enqueueTx(ctx, tx, sessionID, userID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return pos, nil
}

// Promote converts the head of a session's waitlist into a booked
// reservation if capacity allows.  It returns (nil, nil) when nothing
// was promoted.  Cancellation invokes the same step through its own
// transaction; this standalone form exists for callers releasing
// capacity by other means.
func (e *Engine) Promote(ctx context.Context, sessionID uint64) (*Promotion, error) {
	if err := e.locks.acquire(ctx, sessionID); err != nil {
		return nil, err
	}
	defer e.locks.release(sessionID)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sess, err := tx.FindSessionForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	promoted, err := e.promoteTx(ctx, tx, sess)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return promoted, nil
}

// enqueueTx assigns the next position and inserts the entry.  Runs
// inside the caller's transaction and claim.
func (e *Engine) enqueueTx(ctx context.Context, tx Tx, sessionID, userID uint64) (uint32, error) {
	existing, err := tx.FindWaitlistEntry(ctx, sessionID, userID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, ErrAlreadyWaitlisted
	}
	maxPos, err := tx.MaxWaitlistPosition(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	entry, err := tx.InsertWaitlistEntry(ctx, sessionID, userID, maxPos+1)
	if err != nil {
		return 0, err
	}
	return entry.Position, nil
}

// promoteTx books the lowest-position waitlist entry when the session
// has free capacity.  The booked count is recomputed here: the
// cancellation that triggered the call is only one source of freed
// capacity.  Surviving entries keep their positions; the sequence is
// allowed to become non-contiguous and is never compacted.
func (e *Engine) promoteTx(ctx context.Context, tx Tx, sess *model.Session) (*Promotion, error) {
	booked, err := tx.CountBooked(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if booked >= sess.Capacity {
		return nil, nil
	}
	entry, err := tx.NextWaitlistEntry(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	res, err := tx.InsertReservation(ctx, sess.ID, entry.UserID)
	if err != nil {
		return nil, err
	}
	if err := tx.DeleteWaitlistEntry(ctx, entry.ID); err != nil {
		return nil, err
	}
	return &Promotion{UserID: entry.UserID, Reservation: res}, nil
}
