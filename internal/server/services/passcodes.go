package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/contact"
	"github.com/dmitrijs2005/secureshare/internal/cryptox"
	"github.com/dmitrijs2005/secureshare/internal/dbx"
	"github.com/dmitrijs2005/secureshare/internal/logging"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
	"github.com/dmitrijs2005/secureshare/internal/server/notify"
	"github.com/dmitrijs2005/secureshare/internal/server/ratelimit"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/secureshare/internal/timex"
	"github.com/google/uuid"
)

var passcodeShape = regexp.MustCompile(`^\d{6}$`)

type IssueRequest struct {
	FileID      string
	Phone       string
	RecipientID *string
	// Label names the file in the SMS; defaults to a short form of FileID.
	Label string
}

type IssueResult struct {
	ChallengeID       string
	Phone             string
	Delivered         bool
	ProviderMessageID string
	ExpiresAt         time.Time
}

type VerifyResult struct {
	ChallengeID string
	Phone       string
	VerifiedAt  time.Time
}

// PasscodeService issues and verifies one-time passcodes bound to a
// (file, phone) pair.
type PasscodeService struct {
	repos   repomanager.RepositoryManager
	limiter ratelimit.Limiter
	sender  notify.Sender
	hasher  PasscodeHasher
	cfg     PasscodeConfig
	clock   timex.Clock
	log     logging.Logger
	rand    io.Reader
	newID   func() string
}

func NewPasscodeService(
	repos repomanager.RepositoryManager,
	limiter ratelimit.Limiter,
	sender notify.Sender,
	hasher PasscodeHasher,
	cfg PasscodeConfig,
	clock timex.Clock,
	log logging.Logger,
) *PasscodeService {
	return &PasscodeService{
		repos:   repos,
		limiter: limiter,
		sender:  sender,
		hasher:  hasher,
		cfg:     cfg,
		clock:   clock,
		log:     log.With("module", "passcodes"),
		rand:    rand.Reader,
		newID:   uuid.NewString,
	}
}

func smsBody(label, code string, ttl time.Duration) string {
	return fmt.Sprintf("Your SecureShare passcode for %q is %s. It expires in %d minutes.", label, code, int(ttl.Minutes()))
}

// Issue reserves a send for the phone, stores a new challenge and texts the
// code. When delivery fails the challenge stays and the result is returned
// together with a delivery error.
func (s *PasscodeService) Issue(ctx context.Context, r IssueRequest) (*IssueResult, error) {
	if err := checkFileID(r.FileID); err != nil {
		return nil, err
	}
	phone, err := contact.NormalizePhone(r.Phone)
	if err != nil {
		return nil, err
	}

	var (
		code string
		ch   *models.OtpChallenge
	)
	d, err := s.limiter.Reserve(ctx, phone, func(ctx context.Context, tx dbx.DBTX) error {
		c, gerr := cryptox.GeneratePasscode(s.rand)
		if gerr != nil {
			return gerr
		}
		code = c
		now := s.clock.Now()
		ch = &models.OtpChallenge{
			ID:             s.newID(),
			FileID:         r.FileID,
			RecipientPhone: phone,
			RecipientID:    r.RecipientID,
			Attempts:       0,
			MaxAttempts:    s.cfg.MaxAttempts,
			CreatedAt:      now,
			ExpiresAt:      now.Add(s.cfg.TTL),
		}
		ch.PasscodeHash = s.hasher.Sum(ch.ID, code)
		return s.repos.Challenges(tx).Create(ctx, ch)
	})
	if err != nil {
		return nil, storeErr("reserve passcode send", err)
	}
	if !d.Allowed {
		s.log.Info(ctx, "passcode send rate limited", "file_id", r.FileID, "phone", contact.MaskPhone(phone), "remaining_minutes", d.RemainingMinutes)
		return nil, &common.RateLimitedError{RemainingMinutes: d.RemainingMinutes}
	}

	res := &IssueResult{ChallengeID: ch.ID, Phone: phone, ExpiresAt: ch.ExpiresAt}

	label := r.Label
	if label == "" {
		label = shortID(r.FileID)
	}
	msgID, err := s.sender.SendSMS(ctx, phone, smsBody(label, code, s.cfg.TTL))
	if err != nil {
		s.log.Error(ctx, "passcode delivery failed", "file_id", r.FileID, "challenge_id", ch.ID, "phone", contact.MaskPhone(phone), "error", err)
		if !errors.Is(err, common.ErrDelivery) {
			err = fmt.Errorf("send passcode: %w: %w", common.ErrDelivery, err)
		}
		return res, err
	}

	res.Delivered = true
	res.ProviderMessageID = msgID
	s.log.Info(ctx, "passcode issued", "file_id", r.FileID, "challenge_id", ch.ID, "phone", contact.MaskPhone(phone))
	return res, nil
}

// Verify checks code against the most recent challenge for (fileID, phone).
// Re-verifying an already verified challenge with the right code succeeds
// without consuming an attempt.
func (s *PasscodeService) Verify(ctx context.Context, fileID, phone, code string) (*VerifyResult, error) {
	if !passcodeShape.MatchString(code) {
		return nil, common.NewValidationError("code", "must be 6 digits")
	}
	if err := checkFileID(fileID); err != nil {
		return nil, err
	}
	phone, err := contact.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	repo := s.repos.Challenges(s.repos.Conn())
	ch, err := repo.Latest(ctx, fileID, phone)
	if err != nil {
		return nil, storeErr("load challenge", err)
	}

	now := s.clock.Now()
	if ch.Expired(now) {
		return nil, common.ErrExpired
	}

	if ch.Verified() {
		if !cryptox.Equal(s.hasher.Sum(ch.ID, code), ch.PasscodeHash) {
			return nil, &common.BadCodeError{AttemptsLeft: attemptsLeft(ch)}
		}
		return verified(ch), nil
	}

	if ch.Exhausted() {
		return nil, common.ErrMaxAttemptsReached
	}

	if !cryptox.Equal(s.hasher.Sum(ch.ID, code), ch.PasscodeHash) {
		attempts, err := repo.RegisterFailedAttempt(ctx, ch.ID)
		if errors.Is(err, common.ErrConflict) {
			// lost a race with another verify; report what the row says now
			cur, rerr := s.reload(ctx, ch)
			if rerr != nil {
				return nil, rerr
			}
			if cur.Exhausted() && !cur.Verified() {
				return nil, common.ErrMaxAttemptsReached
			}
			return nil, &common.BadCodeError{AttemptsLeft: attemptsLeft(cur)}
		}
		if err != nil {
			return nil, storeErr("register failed attempt", err)
		}
		s.log.Info(ctx, "passcode mismatch", "file_id", fileID, "challenge_id", ch.ID, "attempts", attempts)
		left := ch.MaxAttempts - attempts
		return nil, &common.BadCodeError{AttemptsLeft: max(left, 0), MaxAttemptsReached: left <= 0}
	}

	err = repo.MarkVerified(ctx, ch.ID, now)
	if errors.Is(err, common.ErrConflict) {
		cur, rerr := s.reload(ctx, ch)
		if rerr != nil {
			return nil, rerr
		}
		switch {
		case cur.Verified():
			return verified(cur), nil
		case cur.Exhausted():
			return nil, common.ErrMaxAttemptsReached
		}
		return nil, storeErr("mark verified", err)
	}
	if err != nil {
		return nil, storeErr("mark verified", err)
	}

	s.log.Info(ctx, "passcode verified", "file_id", fileID, "challenge_id", ch.ID)
	ch.VerifiedAt = &now
	return verified(ch), nil
}

// Latest exposes the most recent challenge for the access gateway.
func (s *PasscodeService) Latest(ctx context.Context, fileID, phone string) (*models.OtpChallenge, error) {
	if err := checkFileID(fileID); err != nil {
		return nil, err
	}
	ch, err := s.repos.Challenges(s.repos.Conn()).Latest(ctx, fileID, phone)
	if err != nil {
		return nil, storeErr("load challenge", err)
	}
	return ch, nil
}

// reload re-reads the challenge after a guarded update was rejected. A newer
// send for the same pair means the original challenge is superseded.
func (s *PasscodeService) reload(ctx context.Context, ch *models.OtpChallenge) (*models.OtpChallenge, error) {
	cur, err := s.Latest(ctx, ch.FileID, ch.RecipientPhone)
	if err != nil {
		return nil, err
	}
	if cur.ID != ch.ID {
		return nil, common.ErrNotVerified
	}
	return cur, nil
}

func attemptsLeft(ch *models.OtpChallenge) int {
	return max(ch.MaxAttempts-ch.Attempts, 0)
}

func verified(ch *models.OtpChallenge) *VerifyResult {
	return &VerifyResult{ChallengeID: ch.ID, Phone: ch.RecipientPhone, VerifiedAt: *ch.VerifiedAt}
}
