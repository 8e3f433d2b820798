package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/logging"
	"github.com/dmitrijs2005/secureshare/internal/server/auth"
	"github.com/dmitrijs2005/secureshare/internal/server/blobstore"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
	"github.com/dmitrijs2005/secureshare/internal/timex"
)

// GrantIssuer mints download grants after a successful verification.
type GrantIssuer interface {
	GrantToken(g auth.Grant, ttl time.Duration) (string, error)
}

type PasscodeRecipient struct {
	Phone       string
	RecipientID *string
}

type PasscodeOutcome struct {
	Phone            string
	Status           DeliveryStatus
	ChallengeID      string
	ExpiresAt        time.Time
	RemainingMinutes int
	Reason           string
}

type VerifyOutcome struct {
	ChallengeID    string
	Grant          string
	GrantExpiresAt time.Time
}

// DownloadMetadata is everything a verified recipient needs to fetch and
// decrypt the blob client-side.
type DownloadMetadata struct {
	FileID               string
	EncryptedFileName    string
	FileSize             int64
	FileSalt             []byte
	FileIV               []byte
	MasterKeyHash        string
	MetadataIV           []byte
	BurnAfterRead        bool
	DownloadURL          string
	DownloadURLExpiresAt time.Time
}

// GatewayService is the caller-facing surface of the engine. It sequences
// the lifecycle, passcode and invitation services for each operation.
type GatewayService struct {
	lifecycle   *LifecycleService
	passcodes   *PasscodeService
	invitations *InvitationService
	blobs       blobstore.Store
	grants      GrantIssuer
	cfg         GatewayConfig
	clock       timex.Clock
	log         logging.Logger
}

func NewGatewayService(
	lifecycle *LifecycleService,
	passcodes *PasscodeService,
	invitations *InvitationService,
	blobs blobstore.Store,
	grants GrantIssuer,
	cfg GatewayConfig,
	clock timex.Clock,
	log logging.Logger,
) *GatewayService {
	return &GatewayService{
		lifecycle:   lifecycle,
		passcodes:   passcodes,
		invitations: invitations,
		blobs:       blobs,
		grants:      grants,
		cfg:         cfg,
		clock:       clock,
		log:         log.With("module", "gateway"),
	}
}

func (g *GatewayService) InitiateUpload(ctx context.Context, r UploadRequest) (*UploadTicket, error) {
	return g.lifecycle.BeginUpload(ctx, r)
}

func (g *GatewayService) ListFiles(ctx context.Context, ownerID string) ([]FileSummary, error) {
	return g.lifecycle.ListFiles(ctx, ownerID)
}

func (g *GatewayService) RevokeFile(ctx context.Context, fileID, requesterID string) error {
	return g.lifecycle.Revoke(ctx, fileID, requesterID)
}

// DescribeFile is the public view of a downloadable file.
func (g *GatewayService) DescribeFile(ctx context.Context, fileID string) (*FileSummary, error) {
	f, err := g.lifecycle.GetDownloadGate(ctx, fileID)
	if err != nil {
		return nil, err
	}
	s := summarize(f, g.clock.Now())
	return &s, nil
}

// SendPasscode texts a passcode to one recipient of an owned, active file.
func (g *GatewayService) SendPasscode(ctx context.Context, fileID, ownerID string, r PasscodeRecipient) (*IssueResult, error) {
	f, err := g.lifecycle.RequireActiveOwned(ctx, fileID, ownerID)
	if err != nil {
		return nil, err
	}
	return g.passcodes.Issue(ctx, IssueRequest{FileID: f.ID, Phone: r.Phone, RecipientID: r.RecipientID, Label: shortID(f.ID)})
}

// SendPasscodes fans SendPasscode out over several recipients and reports
// each outcome separately.
func (g *GatewayService) SendPasscodes(ctx context.Context, fileID, ownerID string, rs []PasscodeRecipient) ([]PasscodeOutcome, error) {
	f, err := g.lifecycle.RequireActiveOwned(ctx, fileID, ownerID)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		return nil, common.NewValidationError("recipients", "at least one recipient required")
	}

	out := make([]PasscodeOutcome, 0, len(rs))
	for _, r := range rs {
		res, err := g.passcodes.Issue(ctx, IssueRequest{FileID: f.ID, Phone: r.Phone, RecipientID: r.RecipientID, Label: shortID(f.ID)})
		out = append(out, passcodeOutcome(r.Phone, res, err))
	}
	return out, nil
}

func passcodeOutcome(phone string, res *IssueResult, err error) PasscodeOutcome {
	o := PasscodeOutcome{Phone: phone}
	if res != nil {
		o.Phone = res.Phone
		o.ChallengeID = res.ChallengeID
		o.ExpiresAt = res.ExpiresAt
	}

	var rl *common.RateLimitedError
	switch {
	case err == nil:
		o.Status = StatusSent
	case errors.As(err, &rl):
		o.Status = StatusRateLimited
		o.RemainingMinutes = rl.RemainingMinutes
	case errors.Is(err, common.ErrValidation):
		o.Status = StatusInvalid
		o.Reason = err.Error()
	case errors.Is(err, common.ErrDelivery):
		o.Status = StatusFailed
		o.Reason = "delivery failed"
	default:
		o.Status = StatusFailed
		o.Reason = "internal error"
	}
	return o
}

// VerifyPasscode checks the code and, on success, mints a download grant that
// lives no longer than the verification itself stays fresh.
func (g *GatewayService) VerifyPasscode(ctx context.Context, fileID, phone, code string) (*VerifyOutcome, error) {
	if _, err := g.lifecycle.GetDownloadGate(ctx, fileID); err != nil {
		return nil, err
	}

	v, err := g.passcodes.Verify(ctx, fileID, phone, code)
	if err != nil {
		return nil, err
	}

	expires := v.VerifiedAt.Add(g.cfg.GrantTTL)
	ttl := expires.Sub(g.clock.Now())
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: verification is stale, request a new passcode", common.ErrNotVerified)
	}

	token, err := g.grants.GrantToken(auth.Grant{FileID: fileID, Phone: v.Phone, ChallengeID: v.ChallengeID}, ttl)
	if err != nil {
		return nil, fmt.Errorf("mint grant: %w: %w", common.ErrInternal, err)
	}
	return &VerifyOutcome{ChallengeID: v.ChallengeID, Grant: token, GrantExpiresAt: expires}, nil
}

// FetchFileMetadataForDownload releases decryption metadata and a download
// URL to the holder of a grant for fileID.
func (g *GatewayService) FetchFileMetadataForDownload(ctx context.Context, fileID string, grant *auth.Grant) (*DownloadMetadata, error) {
	if grant == nil || grant.FileID != fileID {
		return nil, common.ErrUnauthorized
	}

	f, err := g.lifecycle.GetDownloadGate(ctx, fileID)
	if err != nil {
		return nil, err
	}

	ch, err := g.passcodes.Latest(ctx, fileID, grant.Phone)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if err := g.checkFresh(ch, grant); err != nil {
		g.log.Info(ctx, "download refused", "file_id", fileID, "challenge_id", grant.ChallengeID, "reason", err)
		return nil, err
	}

	url, err := g.blobs.GetURL(ctx, f.BlobKey, g.cfg.DownloadURLTTL)
	if err != nil {
		return nil, err
	}

	g.log.Info(ctx, "download metadata released", "file_id", fileID, "challenge_id", ch.ID)
	return &DownloadMetadata{
		FileID:               f.ID,
		EncryptedFileName:    f.EncryptedFileName,
		FileSize:             f.FileSize,
		FileSalt:             f.FileSalt,
		FileIV:               f.FileIV,
		MasterKeyHash:        f.MasterKeyHash,
		MetadataIV:           f.MetadataIV,
		BurnAfterRead:        f.BurnAfterRead,
		DownloadURL:          url,
		DownloadURLExpiresAt: g.clock.Now().Add(g.cfg.DownloadURLTTL),
	}, nil
}

// checkFresh requires the grant's challenge to still be the latest one for
// the pair, verified, and verified recently enough.
func (g *GatewayService) checkFresh(ch *models.OtpChallenge, grant *auth.Grant) error {
	switch {
	case ch.ID != grant.ChallengeID:
		return fmt.Errorf("%w: superseded challenge", common.ErrUnauthorized)
	case !ch.Verified():
		return fmt.Errorf("%w: challenge not verified", common.ErrUnauthorized)
	case g.clock.Now().After(ch.VerifiedAt.Add(g.cfg.GrantTTL)):
		return fmt.Errorf("%w: stale verification", common.ErrUnauthorized)
	}
	return nil
}

// RecordDownload confirms that the grant holder received the blob.
func (g *GatewayService) RecordDownload(ctx context.Context, fileID string, grant *auth.Grant) (*models.DownloadResult, error) {
	if grant == nil || grant.FileID != fileID {
		return nil, common.ErrUnauthorized
	}
	return g.lifecycle.RecordDownload(ctx, fileID)
}

func (g *GatewayService) SendInvitations(ctx context.Context, fileID, senderID string, emails []string) ([]InviteOutcome, error) {
	return g.invitations.Invite(ctx, fileID, senderID, emails)
}

func (g *GatewayService) ValidateInvitation(ctx context.Context, token string) (*models.Invitation, error) {
	return g.invitations.ValidateToken(ctx, token)
}

func (g *GatewayService) AcceptInvitation(ctx context.Context, token, userID string) (*models.Invitation, error) {
	return g.invitations.AcceptToken(ctx, token, userID)
}
