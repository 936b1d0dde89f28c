package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a resolved account with its role flags. Exactly one of the role
// flags is normally set; admins may additionally carry agent or contractor
// flags but are authorized by IsAdmin alone.
type User struct {
	ID            uuid.UUID  `db:"id"             json:"id"`
	Username      string     `db:"username"       json:"username"`
	Email         string     `db:"email"          json:"email"`
	EmailVerified bool       `db:"email_verified" json:"email_verified"`
	IsAgent       bool       `db:"is_agent"       json:"is_agent"`
	IsContractor  bool       `db:"is_contractor"  json:"is_contractor"`
	IsAdmin       bool       `db:"is_admin"       json:"is_admin"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"     json:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"     json:"-"`
}

// APIKey is an authentication key for API access. Raw keys are shown once at
// creation; only the bcrypt hash is stored.
type APIKey struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	UserID     uuid.UUID  `db:"user_id"      json:"user_id"`
	Name       string     `db:"name"         json:"name"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	KeyPrefix  string     `db:"key_prefix"   json:"key_prefix"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at"   json:"-"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}
