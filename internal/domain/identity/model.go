package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

var (
	ErrNotFound        = apperr.NotFound("user")
	ErrUsernameTaken   = apperr.Conflict("username already taken")
	ErrBadCredentials  = errors.New("invalid username or password")
	ErrAccountDisabled = errors.New("account is disabled")
)

// User is a staff login. StaffID links it to the doctor, nurse or other
// staff row the account belongs to.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	StaffID      *uuid.UUID `db:"staff_id" json:"staff_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}
