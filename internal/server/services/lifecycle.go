package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/logging"
	"github.com/dmitrijs2005/secureshare/internal/server/blobstore"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/secureshare/internal/timex"
	"github.com/google/uuid"
)

// UploadRequest carries what the client produced while encrypting a file.
type UploadRequest struct {
	OwnerID           string
	EncryptedFileName string
	FileSize          int64
	FileSalt          []byte
	FileIV            []byte
	MasterKeyHash     string
	MetadataIV        []byte
	BurnAfterRead     bool
	// ExpiryHours of 0 means the file never expires.
	ExpiryHours int
}

type UploadTicket struct {
	FileID             string
	UploadURL          string
	UploadURLExpiresAt time.Time
	ExpiresAt          *time.Time
}

// LifecycleService owns shared files from upload to deletion and is the
// single authority on whether a file may be downloaded.
type LifecycleService struct {
	repos repomanager.RepositoryManager
	blobs blobstore.Store
	cfg   LifecycleConfig
	clock timex.Clock
	log   logging.Logger
	newID func() string
}

func NewLifecycleService(repos repomanager.RepositoryManager, blobs blobstore.Store, cfg LifecycleConfig, clock timex.Clock, log logging.Logger) *LifecycleService {
	return &LifecycleService{
		repos: repos,
		blobs: blobs,
		cfg:   cfg,
		clock: clock,
		log:   log.With("module", "lifecycle"),
		newID: uuid.NewString,
	}
}

// BlobKey scopes a blob under its owner.
func BlobKey(ownerID, fileID string) string {
	return fmt.Sprintf("owners/%s/%s", ownerID, fileID)
}

func (s *LifecycleService) validateUpload(r UploadRequest) error {
	switch {
	case strings.TrimSpace(r.OwnerID) == "":
		return common.NewValidationError("ownerId", "required")
	case r.EncryptedFileName == "":
		return common.NewValidationError("encryptedFileName", "required")
	case r.FileSize <= 0:
		return common.NewValidationError("fileSize", "must be positive")
	case len(r.FileSalt) == 0:
		return common.NewValidationError("fileSalt", "required")
	case len(r.FileIV) == 0:
		return common.NewValidationError("fileIv", "required")
	case r.MasterKeyHash == "":
		return common.NewValidationError("masterKeyHash", "required")
	case len(r.MetadataIV) == 0:
		return common.NewValidationError("metadataIv", "required")
	case r.ExpiryHours < 0:
		return common.NewValidationError("expiryHours", "must not be negative")
	case s.cfg.MaxExpiryHours > 0 && r.ExpiryHours > s.cfg.MaxExpiryHours:
		return common.NewValidationError("expiryHours", fmt.Sprintf("must not exceed %d", s.cfg.MaxExpiryHours))
	}
	return nil
}

// BeginUpload registers a file and returns a presigned upload URL. The URL is
// handed out only once the record is stored.
func (s *LifecycleService) BeginUpload(ctx context.Context, r UploadRequest) (*UploadTicket, error) {
	if err := s.validateUpload(r); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	f := &models.SharedFile{
		ID:                s.newID(),
		OwnerID:           r.OwnerID,
		EncryptedFileName: r.EncryptedFileName,
		FileSize:          r.FileSize,
		FileSalt:          r.FileSalt,
		FileIV:            r.FileIV,
		MasterKeyHash:     r.MasterKeyHash,
		MetadataIV:        r.MetadataIV,
		BurnAfterRead:     r.BurnAfterRead,
		CreatedAt:         now,
	}
	f.BlobKey = BlobKey(f.OwnerID, f.ID)
	if r.ExpiryHours > 0 {
		exp := now.Add(time.Duration(r.ExpiryHours) * time.Hour)
		f.ExpiresAt = &exp
	}

	url, err := s.blobs.PutURL(ctx, f.BlobKey, s.cfg.UploadURLTTL)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Files(s.repos.Conn()).Create(ctx, f); err != nil {
		return nil, storeErr("create file", err)
	}

	s.log.Info(ctx, "upload started", "file_id", f.ID, "owner_id", f.OwnerID, "burn_after_read", f.BurnAfterRead)

	return &UploadTicket{
		FileID:             f.ID,
		UploadURL:          url,
		UploadURLExpiresAt: now.Add(s.cfg.UploadURLTTL),
		ExpiresAt:          f.ExpiresAt,
	}, nil
}

// GetDownloadGate returns the file when it is downloadable, or one of
// ErrNotFound, ErrExpired, ErrConsumed.
func (s *LifecycleService) GetDownloadGate(ctx context.Context, fileID string) (*models.SharedFile, error) {
	if err := checkFileID(fileID); err != nil {
		return nil, err
	}
	f, err := s.repos.Files(s.repos.Conn()).GetByID(ctx, fileID)
	if err != nil {
		return nil, storeErr("load file", err)
	}
	switch f.State(s.clock.Now()) {
	case models.FileExpired:
		return nil, common.ErrExpired
	case models.FileConsumed:
		return nil, common.ErrConsumed
	}
	return f, nil
}

// RecordDownload counts one confirmed download. The call that takes a
// burn-after-read file from zero to one download deletes it.
func (s *LifecycleService) RecordDownload(ctx context.Context, fileID string) (*models.DownloadResult, error) {
	if err := checkFileID(fileID); err != nil {
		return nil, err
	}
	f, err := s.repos.Files(s.repos.Conn()).IncrementDownloadCount(ctx, fileID)
	if err != nil {
		return nil, storeErr("record download", err)
	}

	res := &models.DownloadResult{DownloadCount: f.DownloadCount, Burned: f.BurnAfterRead}
	if !f.BurnAfterRead || f.DownloadCount != 1 {
		return res, nil
	}

	s.log.Info(ctx, "burning file after first download", "file_id", f.ID)
	s.deleteBlob(ctx, f)
	if err := s.repos.Files(s.repos.Conn()).Delete(ctx, f.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, storeErr("delete burned file", err)
	}
	return res, nil
}

// Revoke deletes a file on behalf of its owner.
func (s *LifecycleService) Revoke(ctx context.Context, fileID, requesterID string) error {
	f, err := s.RequireOwner(ctx, fileID, requesterID)
	if err != nil {
		return err
	}

	s.deleteBlob(ctx, f)
	if err := s.repos.Files(s.repos.Conn()).Delete(ctx, f.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return storeErr("delete file", err)
	}
	s.log.Info(ctx, "file revoked", "file_id", f.ID, "owner_id", f.OwnerID)
	return nil
}

// RequireOwner loads the file and checks that ownerID owns it.
func (s *LifecycleService) RequireOwner(ctx context.Context, fileID, ownerID string) (*models.SharedFile, error) {
	if err := checkFileID(fileID); err != nil {
		return nil, err
	}
	f, err := s.repos.Files(s.repos.Conn()).GetByID(ctx, fileID)
	if err != nil {
		return nil, storeErr("load file", err)
	}
	if f.OwnerID != ownerID {
		return nil, common.ErrUnauthorized
	}
	return f, nil
}

// RequireActiveOwned combines the owner check with the download gate.
func (s *LifecycleService) RequireActiveOwned(ctx context.Context, fileID, ownerID string) (*models.SharedFile, error) {
	f, err := s.RequireOwner(ctx, fileID, ownerID)
	if err != nil {
		return nil, err
	}
	switch f.State(s.clock.Now()) {
	case models.FileExpired:
		return nil, common.ErrExpired
	case models.FileConsumed:
		return nil, common.ErrConsumed
	}
	return f, nil
}

func (s *LifecycleService) ListFiles(ctx context.Context, ownerID string) ([]FileSummary, error) {
	list, err := s.repos.Files(s.repos.Conn()).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr("list files", err)
	}
	now := s.clock.Now()
	out := make([]FileSummary, 0, len(list))
	for _, f := range list {
		out = append(out, summarize(f, now))
	}
	return out, nil
}

// deleteBlob is best effort: a failure leaves an orphaned blob, which is
// logged for cleanup, but never blocks the record deletion.
func (s *LifecycleService) deleteBlob(ctx context.Context, f *models.SharedFile) {
	if err := s.blobs.Delete(ctx, f.BlobKey); err != nil {
		s.log.Warn(ctx, "blob delete failed", "file_id", f.ID, "blob_key", f.BlobKey, "error", err)
	}
}
