package auth

import (
	"time"

	"vtsecommerce/salesadmin/internal/session"
)

// User is a login identity. Password holds the cipher output, never plaintext.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Email     string    `json:"email,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// SeedUser is a plaintext account created on first start.
type SeedUser struct {
	Username string
	Password string
	Email    string
}

type LoginResult struct {
	User    User
	Session session.Session
}
