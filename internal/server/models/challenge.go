package models

import "time"

// OtpChallenge is one passcode send. A new row is created per send and the
// most recent row for (file, phone) is the one verification targets. Rows are
// kept after use as an audit trail.
type OtpChallenge struct {
	ID             string
	FileID         string
	RecipientPhone string
	RecipientID    *string
	PasscodeHash   []byte
	Attempts       int
	MaxAttempts    int
	CreatedAt      time.Time
	ExpiresAt      time.Time
	VerifiedAt     *time.Time
}

func (c *OtpChallenge) Verified() bool { return c.VerifiedAt != nil }

func (c *OtpChallenge) Exhausted() bool { return c.Attempts >= c.MaxAttempts }

func (c *OtpChallenge) Expired(now time.Time) bool { return now.After(c.ExpiresAt) }

// WindowStats summarizes the sends to one phone inside a rate-limit window.
type WindowStats struct {
	Count int
	// Oldest is the creation time of the oldest send still in the window;
	// zero when Count is 0.
	Oldest time.Time
}
