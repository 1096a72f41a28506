package users

import (
	"time"

	"github.com/google/uuid"
)

// UserType distinguishes donors from the NGOs that run campaigns.
type UserType string

const (
	TypeDonor UserType = "donor"
	TypeNGO   UserType = "ngo"
)

// User is an account that logs in with a phone OTP or an email password.
// PhoneNumber is empty for accounts registered without one; PasswordHash
// is empty for accounts that can only use OTP login.
type User struct {
	ID           uuid.UUID `json:"id"                     db:"id"`
	Name         string    `json:"name"                   db:"name"`
	Email        string    `json:"email"                  db:"email"`
	PhoneNumber  string    `json:"phone_number,omitempty" db:"phone_number"`
	UserType     UserType  `json:"user_type"              db:"user_type"`
	PasswordHash string    `json:"-"                      db:"password_hash"`
	CreatedAt    time.Time `json:"created_at"             db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"             db:"updated_at"`
}

// Valid reports whether t is a known account type.
func (t UserType) Valid() bool {
	return t == TypeDonor || t == TypeNGO
}
