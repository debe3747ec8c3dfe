package domain

import "time"

// UserStatus enumerates possible account states.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User mirrors the persisted representation in the users table.
// The TOTP secret is generated once at registration and never leaves the
// record in plaintext afterwards.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	PasswordAlgo string
	TOTPSecret   string
	Status       UserStatus
	IsActive     bool
	RegisteredAt time.Time
	LastLogin    *time.Time
}
