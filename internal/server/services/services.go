// Package services implements the share verification engine: the file
// lifecycle, the passcode (OTP) engine, invitations and the access gateway
// that ties them together. Services are transport-agnostic; every rule is
// enforced here and the HTTP layer only maps inputs and errors.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
	"github.com/google/uuid"
)

// PasscodeHasher computes the stored digest of a passcode.
type PasscodeHasher interface {
	Sum(challengeID, code string) []byte
}

type LifecycleConfig struct {
	UploadURLTTL   time.Duration
	MaxExpiryHours int
}

type PasscodeConfig struct {
	TTL         time.Duration
	MaxAttempts int
}

type InvitationConfig struct {
	TTL           time.Duration
	PublicBaseURL string
}

type GatewayConfig struct {
	GrantTTL       time.Duration
	DownloadURLTTL time.Duration
}

// FileSummary is the metadata-only view of a shared file. It never carries
// key material.
type FileSummary struct {
	ID                string
	EncryptedFileName string
	FileSize          int64
	BurnAfterRead     bool
	DownloadCount     int64
	ExpiresAt         *time.Time
	CreatedAt         time.Time
	State             models.FileState
}

func summarize(f *models.SharedFile, now time.Time) FileSummary {
	return FileSummary{
		ID:                f.ID,
		EncryptedFileName: f.EncryptedFileName,
		FileSize:          f.FileSize,
		BurnAfterRead:     f.BurnAfterRead,
		DownloadCount:     f.DownloadCount,
		ExpiresAt:         f.ExpiresAt,
		CreatedAt:         f.CreatedAt,
		State:             f.State(now),
	}
}

// storeErr tags unexpected record-store failures as storage errors and lets
// the domain sentinels through untouched.
func storeErr(op string, err error) error {
	if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrConflict) || errors.Is(err, common.ErrStorage) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorage, err)
}

// checkFileID rejects ids that cannot name a stored file, so a malformed id
// reads as a missing file on every backend.
func checkFileID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrNotFound
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
