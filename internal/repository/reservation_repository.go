package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/gym-session-reservation/internal/model"
)

// ReservationRepo serves read paths over reservations that are not
// admission-affecting, such as a member listing their own bookings.
// All admission writes flow through the BookingStore.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// ReservationDetail is a reservation joined with its session, shaped
// for display to the member who owns it.
type ReservationDetail struct {
	ID        uint64    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Session   struct {
		ID       uint64    `json:"id"`
		Title    string    `json:"title"`
		StartsAt time.Time `json:"starts_at"`
		EndsAt   time.Time `json:"ends_at"`
		Capacity int       `json:"capacity"`
		Status   string    `json:"status"`
	} `json:"session"`
}

// ListByUser returns all of a user's reservations, newest first, with
// the owning session inlined.  An empty slice is returned when the
// user has none.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
	const q = `SELECT r.id, r.status, r.created_at,
					  s.id, s.title, s.starts_at, s.ends_at, s.capacity, s.status
			   FROM reservations r
			   JOIN sessions s ON s.id = r.session_id
			   WHERE r.user_id = ?
			   ORDER BY r.created_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		if err := rows.Scan(&d.ID, &d.Status, &d.CreatedAt,
			&d.Session.ID, &d.Session.Title, &d.Session.StartsAt, &d.Session.EndsAt,
			&d.Session.Capacity, &d.Session.Status); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ErrNotTransitionable is returned by MarkAttendance when the
// reservation is missing or no longer in the booked state.
var ErrNotTransitionable = errors.New("reservation not transitionable")

// MarkAttendance records check-in results: booked moves to attended or
// no_show.  The status guard lives in the WHERE clause so a concurrent
// cancellation cannot be overwritten.
func (r *ReservationRepo) MarkAttendance(ctx context.Context, id uint64, to model.ReservationStatus) error {
	if !model.ReservationBooked.CanTransition(to) || to == model.ReservationCancelled {
		return ErrNotTransitionable
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ? WHERE id = ? AND status = 'booked'`,
		string(to), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotTransitionable
	}
	return nil
}
