package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/gym-session-reservation/internal/model"
	"github.com/iliyamo/gym-session-reservation/internal/utils"
)

// UserRepo persists users.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user with a bcrypt-hashed password and returns the
// new ID.  Duplicate emails map to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, fullName, email, password, phone, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	var phoneVal sql.NullString
	if p := strings.TrimSpace(phone); p != "" {
		phoneVal = sql.NullString{String: p, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (full_name, email, phone, password_hash, role) VALUES (?,?,?,?,?)",
		fullName, email, phoneVal, hash, role)
	if err != nil {
		// MySQL duplicate key error carries code 1062.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.get(ctx, "email=?", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.get(ctx, "id=?", id)
}

func (r *UserRepo) get(ctx context.Context, cond string, arg interface{}) (model.User, error) {
	var u model.User
	var phone sql.NullString
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,full_name,email,phone,password_hash,role,is_active,created_at,updated_at FROM users WHERE "+cond+" LIMIT 1",
		arg).Scan(&u.ID, &u.FullName, &u.Email, &phone, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if phone.Valid {
		p := phone.String
		u.Phone = &p
	}
	return u, err
}
