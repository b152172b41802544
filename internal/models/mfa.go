package models

import (
	"time"
)

// MfaCode is a one-time verification code sent to a destination.
// At most one unconsumed, unexpired code should exist per
// (user, channel, destination); sending a new code supersedes the previous
// one by marking it consumed.
type MfaCode struct {
	ID          string
	UserID      string
	Channel     Channel
	Destination string
	Code        string // 6 digits, zero-padded
	Consumed    bool
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// IsExpired checks if the code window has passed
func (c *MfaCode) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// IsValid checks if the code can still be consumed
func (c *MfaCode) IsValid() bool {
	return !c.Consumed && !c.IsExpired()
}

// MfaMethod is a (channel, destination) pair a user registered for
// verification, unique per (user, channel). The verified flag only turns
// true on successful code consumption and only resets to false when the
// destination for the channel changes.
type MfaMethod struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Channel     Channel   `json:"channel"`
	Destination string    `json:"destination"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
