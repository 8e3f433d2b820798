// Package memory implements the repositories over process memory. It is
// used for local runs (storage=memory) and service tests. Each method is
// atomic on its own; multi-step work is serialized by dbx.SerialTransactor.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
)

// Store holds all tables. The zero value is not usable; call NewStore.
type Store struct {
	mu          sync.RWMutex
	files       map[string]*models.SharedFile
	challenges  []*models.OtpChallenge
	invitations map[string]*models.Invitation
}

func NewStore() *Store {
	return &Store{
		files:       make(map[string]*models.SharedFile),
		invitations: make(map[string]*models.Invitation),
	}
}

func copyFile(f *models.SharedFile) *models.SharedFile {
	c := *f
	if f.ExpiresAt != nil {
		t := *f.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

func copyChallenge(ch *models.OtpChallenge) *models.OtpChallenge {
	c := *ch
	if ch.VerifiedAt != nil {
		t := *ch.VerifiedAt
		c.VerifiedAt = &t
	}
	if ch.RecipientID != nil {
		s := *ch.RecipientID
		c.RecipientID = &s
	}
	return &c
}

func copyInvitation(inv *models.Invitation) *models.Invitation {
	c := *inv
	if inv.AcceptedAt != nil {
		t := *inv.AcceptedAt
		c.AcceptedAt = &t
	}
	if inv.AcceptedByUserID != nil {
		s := *inv.AcceptedByUserID
		c.AcceptedByUserID = &s
	}
	return &c
}

// FileRepository implements files.Repository.
type FileRepository struct{ s *Store }

func (r FileRepository) Create(_ context.Context, f *models.SharedFile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.files[f.ID]; ok {
		return common.ErrConflict
	}
	c := copyFile(f)
	c.DownloadCount = 0
	r.s.files[f.ID] = c
	return nil
}

func (r FileRepository) GetByID(_ context.Context, id string) (*models.SharedFile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyFile(f), nil
}

func (r FileRepository) ListByOwner(_ context.Context, ownerID string) ([]*models.SharedFile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.SharedFile
	for _, f := range r.s.files {
		if f.OwnerID == ownerID {
			out = append(out, copyFile(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r FileRepository) IncrementDownloadCount(_ context.Context, id string) (*models.SharedFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	f.DownloadCount++
	return copyFile(f), nil
}

func (r FileRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.files[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.s.files, id)
	return nil
}

// ChallengeRepository implements challenges.Repository.
type ChallengeRepository struct{ s *Store }

func (r ChallengeRepository) Create(_ context.Context, c *models.OtpChallenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.challenges = append(r.s.challenges, copyChallenge(c))
	return nil
}

func (r ChallengeRepository) Latest(_ context.Context, fileID, phone string) (*models.OtpChallenge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var latest *models.OtpChallenge
	for _, c := range r.s.challenges {
		if c.FileID != fileID || c.RecipientPhone != phone {
			continue
		}
		// ties on created_at go to the later insert
		if latest == nil || !c.CreatedAt.Before(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, common.ErrNotFound
	}
	return copyChallenge(latest), nil
}

func (r ChallengeRepository) find(id string) *models.OtpChallenge {
	for _, c := range r.s.challenges {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r ChallengeRepository) RegisterFailedAttempt(_ context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.find(id)
	if c == nil || c.VerifiedAt != nil || c.Attempts >= c.MaxAttempts {
		return 0, common.ErrConflict
	}
	c.Attempts++
	return c.Attempts, nil
}

func (r ChallengeRepository) MarkVerified(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.find(id)
	if c == nil || c.VerifiedAt != nil || c.Attempts >= c.MaxAttempts {
		return common.ErrConflict
	}
	c.VerifiedAt = &at
	return nil
}

// LockPhone is a no-op: callers already hold the store-wide transactor.
func (r ChallengeRepository) LockPhone(context.Context, string) error { return nil }

func (r ChallengeRepository) WindowStats(_ context.Context, phone string, since time.Time) (models.WindowStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var stats models.WindowStats
	for _, c := range r.s.challenges {
		if c.RecipientPhone != phone || !c.CreatedAt.After(since) {
			continue
		}
		stats.Count++
		if stats.Oldest.IsZero() || c.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = c.CreatedAt
		}
	}
	return stats, nil
}

// InvitationRepository implements invitations.Repository.
type InvitationRepository struct{ s *Store }

func (r InvitationRepository) Create(_ context.Context, inv *models.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.invitations {
		if bytes.Equal(existing.TokenHash, inv.TokenHash) {
			return common.ErrConflict
		}
	}
	r.s.invitations[inv.ID] = copyInvitation(inv)
	return nil
}

func (r InvitationRepository) GetByTokenHash(_ context.Context, tokenHash []byte) (*models.Invitation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, inv := range r.s.invitations {
		if bytes.Equal(inv.TokenHash, tokenHash) {
			return copyInvitation(inv), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r InvitationRepository) Accept(_ context.Context, id, userID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok || inv.Status != models.InvitationPending || at.After(inv.ExpiresAt) {
		return common.ErrConflict
	}
	inv.Status = models.InvitationAccepted
	inv.AcceptedByUserID = &userID
	inv.AcceptedAt = &at
	return nil
}

func (r InvitationRepository) MarkExpired(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if inv, ok := r.s.invitations[id]; ok && inv.Status == models.InvitationPending && at.After(inv.ExpiresAt) {
		inv.Status = models.InvitationExpired
	}
	return nil
}

func (s *Store) Files() FileRepository             { return FileRepository{s: s} }
func (s *Store) Challenges() ChallengeRepository   { return ChallengeRepository{s: s} }
func (s *Store) Invitations() InvitationRepository { return InvitationRepository{s: s} }
