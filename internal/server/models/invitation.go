package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation lets a file owner onboard a recipient by e-mail. Only the hash of
// the token is stored.
type Invitation struct {
	ID               string
	FileID           string
	SenderID         string
	RecipientEmail   string
	TokenHash        []byte
	Status           InvitationStatus
	CreatedAt        time.Time
	ExpiresAt        time.Time
	AcceptedByUserID *string
	AcceptedAt       *time.Time
}

// EffectiveStatus applies lazy expiry to a pending invitation. An invitation
// is still usable at exactly ExpiresAt.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && now.After(i.ExpiresAt) {
		return InvitationExpired
	}
	return i.Status
}
