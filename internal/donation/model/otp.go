package model

import "time"

// OTPChallenge is the per-phone-number state of the one-time-code login flow.
// PhoneNumber is the unique key and never changes once the record exists.
type OTPChallenge struct {
	PhoneNumber    string     `json:"phone_number"`
	CodeHash       string     `json:"code_hash,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Verified       bool       `json:"verified"`
	VerifyAttempts int        `json:"verify_attempts"`
	SendCount      int        `json:"send_count"`
	WindowStart    *time.Time `json:"window_start,omitempty"`
	LastSentAt     *time.Time `json:"last_sent_at,omitempty"`
}

// RetainUntil is the instant after which the record carries no information
// worth keeping: the code has expired and the send window has closed.
func (c *OTPChallenge) RetainUntil(window, cooldown time.Duration) time.Time {
	var t time.Time
	if c.ExpiresAt != nil {
		t = *c.ExpiresAt
	}
	if c.WindowStart != nil {
		if w := c.WindowStart.Add(window); w.After(t) {
			t = w
		}
	}
	if c.LastSentAt != nil {
		if l := c.LastSentAt.Add(cooldown); l.After(t) {
			t = l
		}
	}
	return t
}

// OTPSent is returned to the caller after a code has been delivered.
// The code itself is never part of it.
type OTPSent struct {
	PhoneNumber              string    `json:"phone_number"`
	ExpiryTime               time.Time `json:"expiry_time"`
	ResendAvailableInSeconds int       `json:"resend_available_in_seconds"`
}
