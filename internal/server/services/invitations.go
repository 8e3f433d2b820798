package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/contact"
	"github.com/dmitrijs2005/secureshare/internal/cryptox"
	"github.com/dmitrijs2005/secureshare/internal/logging"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
	"github.com/dmitrijs2005/secureshare/internal/server/notify"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/secureshare/internal/timex"
	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	StatusSent        DeliveryStatus = "sent"
	StatusFailed      DeliveryStatus = "failed"
	StatusInvalid     DeliveryStatus = "invalid"
	StatusRateLimited DeliveryStatus = "rate_limited"
)

// InviteOutcome is the per-address result of a batch invite.
type InviteOutcome struct {
	Email        string
	Status       DeliveryStatus
	InvitationID string
	Reason       string
}

// InvitationService onboards recipients by e-mail with single-use tokens.
type InvitationService struct {
	repos     repomanager.RepositoryManager
	lifecycle *LifecycleService
	sender    notify.Sender
	cfg       InvitationConfig
	clock     timex.Clock
	log       logging.Logger
	rand      io.Reader
	newID     func() string
}

func NewInvitationService(repos repomanager.RepositoryManager, lifecycle *LifecycleService, sender notify.Sender, cfg InvitationConfig, clock timex.Clock, log logging.Logger) *InvitationService {
	return &InvitationService{
		repos:     repos,
		lifecycle: lifecycle,
		sender:    sender,
		cfg:       cfg,
		clock:     clock,
		log:       log.With("module", "invitations"),
		rand:      rand.Reader,
		newID:     uuid.NewString,
	}
}

// InvitationLink is the URL a recipient opens to accept an invitation.
func (s *InvitationService) InvitationLink(token string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/invitations/" + token
}

// Invite sends one invitation per distinct valid address. Bad and repeated
// addresses are reported individually and never fail the batch.
func (s *InvitationService) Invite(ctx context.Context, fileID, senderID string, emails []string) ([]InviteOutcome, error) {
	f, err := s.lifecycle.RequireActiveOwned(ctx, fileID, senderID)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, common.NewValidationError("emails", "at least one address required")
	}

	seen := make(map[string]bool, len(emails))
	out := make([]InviteOutcome, 0, len(emails))
	for _, raw := range emails {
		email, err := contact.NormalizeEmail(raw)
		if err != nil {
			out = append(out, InviteOutcome{Email: raw, Status: StatusInvalid, Reason: "invalid address"})
			continue
		}
		if seen[email] {
			out = append(out, InviteOutcome{Email: email, Status: StatusInvalid, Reason: "duplicate"})
			continue
		}
		seen[email] = true
		out = append(out, s.inviteOne(ctx, f, senderID, email))
	}
	return out, nil
}

func (s *InvitationService) inviteOne(ctx context.Context, f *models.SharedFile, senderID, email string) InviteOutcome {
	res := InviteOutcome{Email: email}

	inv, token, err := s.create(ctx, f.ID, senderID, email)
	if err != nil {
		s.log.Error(ctx, "failed to create invitation", "file_id", f.ID, "error", err)
		res.Status = StatusFailed
		res.Reason = "storage error"
		return res
	}
	res.InvitationID = inv.ID

	subject := "A file has been shared with you"
	body := fmt.Sprintf("You have been invited to download a file shared through SecureShare.\n\nOpen %s to accept. The link expires on %s.\n",
		s.InvitationLink(token), inv.ExpiresAt.Format("2006-01-02 15:04 MST"))
	if err := s.sender.SendEmail(ctx, email, subject, body); err != nil {
		s.log.Warn(ctx, "invitation delivery failed", "file_id", f.ID, "invitation_id", inv.ID, "error", err)
		res.Status = StatusFailed
		res.Reason = "delivery failed"
		return res
	}

	s.log.Info(ctx, "invitation sent", "file_id", f.ID, "invitation_id", inv.ID)
	res.Status = StatusSent
	return res
}

// create stores a fresh invitation, retrying once on a token hash collision.
func (s *InvitationService) create(ctx context.Context, fileID, senderID, email string) (*models.Invitation, string, error) {
	var err error
	for try := 0; try < 2; try++ {
		var token string
		token, err = cryptox.NewToken(s.rand)
		if err != nil {
			return nil, "", err
		}
		now := s.clock.Now()
		inv := &models.Invitation{
			ID:             s.newID(),
			FileID:         fileID,
			SenderID:       senderID,
			RecipientEmail: email,
			TokenHash:      cryptox.HashToken(token),
			Status:         models.InvitationPending,
			CreatedAt:      now,
			ExpiresAt:      now.Add(s.cfg.TTL),
		}
		err = s.repos.Invitations(s.repos.Conn()).Create(ctx, inv)
		if err == nil {
			return inv, token, nil
		}
		if !errors.Is(err, common.ErrConflict) {
			break
		}
	}
	return nil, "", storeErr("create invitation", err)
}

// ValidateToken resolves a pending invitation. An expired one is persisted as
// expired on the way out.
func (s *InvitationService) ValidateToken(ctx context.Context, token string) (*models.Invitation, error) {
	if token == "" {
		return nil, common.ErrNotFound
	}
	repo := s.repos.Invitations(s.repos.Conn())
	inv, err := repo.GetByTokenHash(ctx, cryptox.HashToken(token))
	if err != nil {
		return nil, storeErr("load invitation", err)
	}

	now := s.clock.Now()
	switch inv.EffectiveStatus(now) {
	case models.InvitationAccepted:
		return nil, common.ErrAlreadyAccepted
	case models.InvitationExpired:
		if inv.Status == models.InvitationPending {
			if err := repo.MarkExpired(ctx, inv.ID, now); err != nil {
				s.log.Warn(ctx, "failed to mark invitation expired", "invitation_id", inv.ID, "error", err)
			}
		}
		return nil, common.ErrExpired
	}
	return inv, nil
}

// AcceptToken redeems an invitation for userID. Only one accept ever
// succeeds; later ones get ErrAlreadyAccepted.
func (s *InvitationService) AcceptToken(ctx context.Context, token, userID string) (*models.Invitation, error) {
	if userID == "" {
		return nil, common.ErrUnauthorized
	}
	inv, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	repo := s.repos.Invitations(s.repos.Conn())
	now := s.clock.Now()
	err = repo.Accept(ctx, inv.ID, userID, now)
	if errors.Is(err, common.ErrConflict) {
		cur, rerr := repo.GetByTokenHash(ctx, inv.TokenHash)
		if rerr != nil {
			return nil, storeErr("reload invitation", rerr)
		}
		if cur.Status == models.InvitationAccepted {
			return nil, common.ErrAlreadyAccepted
		}
		return nil, common.ErrExpired
	}
	if err != nil {
		return nil, storeErr("accept invitation", err)
	}

	s.log.Info(ctx, "invitation accepted", "invitation_id", inv.ID, "file_id", inv.FileID, "user_id", userID)
	inv.Status = models.InvitationAccepted
	inv.AcceptedByUserID = &userID
	inv.AcceptedAt = &now
	return inv, nil
}
