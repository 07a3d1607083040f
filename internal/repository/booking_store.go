package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/gym-session-reservation/internal/engine"
	"github.com/iliyamo/gym-session-reservation/internal/model"
)

// BookingStore is the MySQL implementation of the admission engine's
// storage contract.  The exclusive claim on a session maps onto
// SELECT ... FOR UPDATE of the session row, so several processes
// sharing one database still serialize their admission operations per
// session while distinct sessions proceed in parallel.
type BookingStore struct {
	db *sql.DB
}

// NewBookingStore returns a BookingStore bound to the given database.
func NewBookingStore(db *sql.DB) *BookingStore { return &BookingStore{db: db} }

// Begin opens a transaction for one admission operation.
func (s *BookingStore) Begin(ctx context.Context) (engine.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &bookingTx{tx: tx}, nil
}

// FindReservation loads a reservation outside any transaction.  It
// returns (nil, nil) when the row is absent, per the engine contract.
func (s *BookingStore) FindReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, session_id, user_id, status, created_at, updated_at
			   FROM reservations WHERE id = ?`
	return scanReservation(s.db.QueryRowContext(ctx, q, id))
}

// bookingTx wraps one *sql.Tx with the engine's operations.
type bookingTx struct {
	tx *sql.Tx
}

func (t *bookingTx) Commit() error   { return t.tx.Commit() }
func (t *bookingTx) Rollback() error { return t.tx.Rollback() }

// FindSessionForUpdate fetches the session row with an exclusive row
// lock held until the transaction ends.
func (t *bookingTx) FindSessionForUpdate(ctx context.Context, id uint64) (*model.Session, error) {
	const q = `SELECT id, title, trainer_id, starts_at, ends_at, capacity, status, created_at, updated_at
			   FROM sessions WHERE id = ? FOR UPDATE`
	var s model.Session
	var trainerID sql.NullInt64
	err := t.tx.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.Title, &trainerID, &s.StartsAt, &s.EndsAt,
		&s.Capacity, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if trainerID.Valid {
		tid := uint64(trainerID.Int64)
		s.TrainerID = &tid
	}
	return &s, nil
}

func (t *bookingTx) CountBooked(ctx context.Context, sessionID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM reservations WHERE session_id = ? AND status = 'booked'`
	var n int
	err := t.tx.QueryRowContext(ctx, q, sessionID).Scan(&n)
	return n, err
}

// CountUserOverlaps counts the user's booked reservations whose
// session time range intersects the open interval (start, end).
// Strict comparisons keep touching endpoints from counting.
func (t *bookingTx) CountUserOverlaps(ctx context.Context, userID uint64, start, end time.Time) (int, error) {
	const q = `SELECT COUNT(*)
			   FROM reservations r
			   JOIN sessions s ON s.id = r.session_id
			   WHERE r.user_id = ? AND r.status = 'booked'
				 AND s.starts_at < ? AND s.ends_at > ?`
	var n int
	err := t.tx.QueryRowContext(ctx, q, userID, end.UTC(), start.UTC()).Scan(&n)
	return n, err
}

func (t *bookingTx) InsertReservation(ctx context.Context, sessionID, userID uint64) (*model.Reservation, error) {
	const ins = `INSERT INTO reservations (session_id, user_id, status) VALUES (?, ?, 'booked')`
	res, err := t.tx.ExecContext(ctx, ins, sessionID, userID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	// Read the row back to pick up DB-assigned timestamps.
	const sel = `SELECT id, session_id, user_id, status, created_at, updated_at
				 FROM reservations WHERE id = ?`
	return scanReservation(t.tx.QueryRowContext(ctx, sel, uint64(id)))
}

func (t *bookingTx) FindReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, session_id, user_id, status, created_at, updated_at
			   FROM reservations WHERE id = ?`
	return scanReservation(t.tx.QueryRowContext(ctx, q, id))
}

func (t *bookingTx) UpdateReservationStatus(ctx context.Context, id uint64, status model.ReservationStatus) error {
	const q = `UPDATE reservations SET status = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, q, string(status), id)
	return err
}

func (t *bookingTx) MaxWaitlistPosition(ctx context.Context, sessionID uint64) (uint32, error) {
	const q = `SELECT COALESCE(MAX(position), 0) FROM waitlist_entries WHERE session_id = ?`
	var pos uint32
	err := t.tx.QueryRowContext(ctx, q, sessionID).Scan(&pos)
	return pos, err
}

func (t *bookingTx) InsertWaitlistEntry(ctx context.Context, sessionID, userID uint64, position uint32) (*model.WaitlistEntry, error) {
	const ins = `INSERT INTO waitlist_entries (session_id, user_id, position) VALUES (?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, ins, sessionID, userID, position)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	const sel = `SELECT id, session_id, user_id, position, created_at
				 FROM waitlist_entries WHERE id = ?`
	return scanWaitlistEntry(t.tx.QueryRowContext(ctx, sel, uint64(id)))
}

func (t *bookingTx) FindWaitlistEntry(ctx context.Context, sessionID, userID uint64) (*model.WaitlistEntry, error) {
	const q = `SELECT id, session_id, user_id, position, created_at
			   FROM waitlist_entries WHERE session_id = ? AND user_id = ? LIMIT 1`
	return scanWaitlistEntry(t.tx.QueryRowContext(ctx, q, sessionID, userID))
}

// NextWaitlistEntry returns the promotion head: smallest position,
// ties broken by earliest creation time.
func (t *bookingTx) NextWaitlistEntry(ctx context.Context, sessionID uint64) (*model.WaitlistEntry, error) {
	const q = `SELECT id, session_id, user_id, position, created_at
			   FROM waitlist_entries WHERE session_id = ?
			   ORDER BY position ASC, created_at ASC LIMIT 1`
	return scanWaitlistEntry(t.tx.QueryRowContext(ctx, q, sessionID))
}

func (t *bookingTx) DeleteWaitlistEntry(ctx context.Context, id uint64) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = ?`, id)
	return err
}

func scanReservation(row *sql.Row) (*model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(&r.ID, &r.SessionID, &r.UserID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanWaitlistEntry(row *sql.Row) (*model.WaitlistEntry, error) {
	var w model.WaitlistEntry
	err := row.Scan(&w.ID, &w.SessionID, &w.UserID, &w.Position, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
