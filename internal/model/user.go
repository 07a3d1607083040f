package model

import "time"

// User roles.  Members book sessions, trainers run them, admins may
// additionally manage the catalog and cancel any reservation.
const (
	RoleMember  = "MEMBER"
	RoleTrainer = "TRAINER"
	RoleAdmin   = "ADMIN"
)

// User mirrors the 'users' table.
type User struct {
	ID           uint64    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
