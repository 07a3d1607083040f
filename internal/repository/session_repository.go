package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/gym-session-reservation/internal/model"
)

// SessionRepo provides catalog access to sessions: creation, listing
// and lookup.  Admission-affecting reads and writes go through the
// BookingStore instead; this repository never touches reservations.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, title, trainer_id, starts_at, ends_at, capacity, status, created_at, updated_at`

// Create inserts a session and populates DB-assigned fields (ID,
// status default, timestamps) on the given model.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const ins = `INSERT INTO sessions (title, trainer_id, starts_at, ends_at, capacity) VALUES (?, ?, ?, ?, ?)`
	var trainerID sql.NullInt64
	if s.TrainerID != nil {
		trainerID = sql.NullInt64{Int64: int64(*s.TrainerID), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, ins, s.Title, trainerID, s.StartsAt.UTC(), s.EndsAt.UTC(), s.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	const sel = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	got, err := scanSession(r.db.QueryRowContext(ctx, sel, s.ID))
	if err != nil {
		return err
	}
	*s = *got
	return nil
}

// GetByID returns a session or ErrSessionNotFound.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns sessions ordered by start time, paginated with
// skip/limit.  Limit is clamped to a sane maximum.
func (r *SessionRepo) List(ctx context.Context, skip, limit int) ([]model.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}
	const q = `SELECT ` + sessionColumns + ` FROM sessions ORDER BY starts_at ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Session, 0)
	for rows.Next() {
		var s model.Session
		var trainerID sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Title, &trainerID, &s.StartsAt, &s.EndsAt,
			&s.Capacity, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if trainerID.Valid {
			tid := uint64(trainerID.Int64)
			s.TrainerID = &tid
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateStatus transitions the session lifecycle state (scheduled,
// cancelled, completed).  Triggered externally; the admission engine
// only reads it.
func (r *SessionRepo) UpdateStatus(ctx context.Context, id uint64, status model.SessionStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func scanSession(row *sql.Row) (*model.Session, error) {
	var s model.Session
	var trainerID sql.NullInt64
	err := row.Scan(&s.ID, &s.Title, &trainerID, &s.StartsAt, &s.EndsAt,
		&s.Capacity, &s.Status, &s.CreatedAt, &s.UpdatedAt)
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
