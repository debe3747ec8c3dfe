package domain

import "time"

// CodeIssuedEvent is published whenever a verification code is generated for
// delivery, either on login or on resend. The Code field carries the
// plaintext code for the downstream mailer; MaskedEmail is what observability
// consumers should log.
type CodeIssuedEvent struct {
	EventID     string         `json:"event_id"`
	UserID      string         `json:"user_id"`
	Email       string         `json:"email"`
	MaskedEmail string         `json:"masked_email"`
	Code        string         `json:"code"`
	Reason      string         `json:"reason"`
	IssuedAt    time.Time      `json:"issued_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UserRegisteredEvent is published after a successful registration.
type UserRegisteredEvent struct {
	EventID      string         `json:"event_id"`
	UserID       string         `json:"user_id"`
	Email        string         `json:"email"`
	Status       UserStatus     `json:"status"`
	RegisteredAt time.Time      `json:"registered_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
