package httpapi

import (
	"time"

	"github.com/dmitrijs2005/secureshare/internal/server/models"
	"github.com/dmitrijs2005/secureshare/internal/server/services"
)

// Binary fields travel as standard base64, which encoding/json applies to
// []byte on both sides.

type initiateUploadRequest struct {
	EncryptedFileName string `json:"encryptedFileName" validate:"required"`
	FileSize          int64  `json:"fileSize" validate:"required,gt=0"`
	FileSalt          []byte `json:"fileSalt" validate:"required"`
	FileIV            []byte `json:"fileIv" validate:"required"`
	MasterKeyHash     string `json:"masterKeyHash" validate:"required"`
	MetadataIV        []byte `json:"metadataIv" validate:"required"`
	BurnAfterRead     bool   `json:"burnAfterRead"`
	ExpiryHours       int    `json:"expiryHours" validate:"gte=0"`
}

type uploadResponse struct {
	FileID             string     `json:"fileId"`
	UploadURL          string     `json:"uploadUrl"`
	UploadURLExpiresAt time.Time  `json:"uploadUrlExpiresAt"`
	ExpiresAt          *time.Time `json:"expiresAt"`
}

type fileResponse struct {
	FileID            string     `json:"fileId"`
	EncryptedFileName string     `json:"encryptedFileName"`
	FileSize          int64      `json:"fileSize"`
	BurnAfterRead     bool       `json:"burnAfterRead"`
	DownloadCount     int64      `json:"downloadCount"`
	ExpiresAt         *time.Time `json:"expiresAt"`
	CreatedAt         time.Time  `json:"createdAt"`
	State             string     `json:"state"`
}

func toFileResponse(f services.FileSummary) fileResponse {
	return fileResponse{
		FileID:            f.ID,
		EncryptedFileName: f.EncryptedFileName,
		FileSize:          f.FileSize,
		BurnAfterRead:     f.BurnAfterRead,
		DownloadCount:     f.DownloadCount,
		ExpiresAt:         f.ExpiresAt,
		CreatedAt:         f.CreatedAt,
		State:             string(f.State),
	}
}

type fileListResponse struct {
	Files []fileResponse `json:"files"`
}

type passcodeRecipient struct {
	Phone       string  `json:"phone" validate:"required"`
	RecipientID *string `json:"recipientId"`
}

type sendPasscodeRequest struct {
	Phone       string              `json:"phone"`
	RecipientID *string             `json:"recipientId"`
	Recipients  []passcodeRecipient `json:"recipients" validate:"omitempty,max=50,dive"`
}

type passcodeResponse struct {
	ChallengeID       string    `json:"challengeId"`
	Delivered         bool      `json:"delivered"`
	ProviderMessageID string    `json:"providerMessageId,omitempty"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

type passcodeResult struct {
	Phone            string     `json:"phone"`
	Status           string     `json:"status"`
	ChallengeID      string     `json:"challengeId,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	RemainingMinutes int        `json:"remainingMinutes,omitempty"`
	Reason           string     `json:"reason,omitempty"`
}

func toPasscodeResult(o services.PasscodeOutcome) passcodeResult {
	res := passcodeResult{
		Phone:            o.Phone,
		Status:           string(o.Status),
		ChallengeID:      o.ChallengeID,
		RemainingMinutes: o.RemainingMinutes,
		Reason:           o.Reason,
	}
	if !o.ExpiresAt.IsZero() {
		t := o.ExpiresAt
		res.ExpiresAt = &t
	}
	return res
}

type passcodeBatchResponse struct {
	Results []passcodeResult `json:"results"`
}

type verifyRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type verifyResponse struct {
	ChallengeID    string    `json:"challengeId"`
	Grant          string    `json:"grant"`
	GrantExpiresAt time.Time `json:"grantExpiresAt"`
}

type downloadResponse struct {
	FileID               string    `json:"fileId"`
	EncryptedFileName    string    `json:"encryptedFileName"`
	FileSize             int64     `json:"fileSize"`
	FileSalt             []byte    `json:"fileSalt"`
	FileIV               []byte    `json:"fileIv"`
	MasterKeyHash        string    `json:"masterKeyHash"`
	MetadataIV           []byte    `json:"metadataIv"`
	BurnAfterRead        bool      `json:"burnAfterRead"`
	DownloadURL          string    `json:"downloadUrl"`
	DownloadURLExpiresAt time.Time `json:"downloadUrlExpiresAt"`
}

type recordDownloadResponse struct {
	DownloadCount int64 `json:"downloadCount"`
	Burned        bool  `json:"burned"`
}

type inviteRequest struct {
	Emails []string `json:"emails" validate:"required,min=1,max=50"`
}

type inviteResult struct {
	Email        string `json:"email"`
	Status       string `json:"status"`
	InvitationID string `json:"invitationId,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type inviteResponse struct {
	Results []inviteResult `json:"results"`
}

type invitationResponse struct {
	InvitationID   string     `json:"invitationId"`
	FileID         string     `json:"fileId"`
	RecipientEmail string     `json:"recipientEmail"`
	Status         string     `json:"status"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	AcceptedAt     *time.Time `json:"acceptedAt,omitempty"`
}

func toInvitationResponse(inv *models.Invitation) invitationResponse {
	return invitationResponse{
		InvitationID:   inv.ID,
		FileID:         inv.FileID,
		RecipientEmail: inv.RecipientEmail,
		Status:         string(inv.Status),
		ExpiresAt:      inv.ExpiresAt,
		AcceptedAt:     inv.AcceptedAt,
	}
}
