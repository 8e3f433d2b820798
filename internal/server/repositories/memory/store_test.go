package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/files"
	"github.com/dmitrijs2005/secureshare/internal/server/repositories/invitations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ files.Repository       = FileRepository{}
	_ challenges.Repository  = ChallengeRepository{}
	_ invitations.Repository = InvitationRepository{}
)

var now = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func TestFiles_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Files()

	exp := now.Add(time.Hour)
	f := &models.SharedFile{ID: "f1", OwnerID: "o1", ExpiresAt: &exp, DownloadCount: 5, CreatedAt: now}
	require.NoError(t, repo.Create(ctx, f))
	assert.ErrorIs(t, repo.Create(ctx, f), common.ErrConflict)

	got, err := repo.GetByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.DownloadCount, "count starts at zero")

	// returned copies do not alias stored state
	*got.ExpiresAt = now
	again, _ := repo.GetByID(ctx, "f1")
	assert.Equal(t, exp, *again.ExpiresAt)

	require.NoError(t, repo.Create(ctx, &models.SharedFile{ID: "f2", OwnerID: "o1", CreatedAt: now.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &models.SharedFile{ID: "f3", OwnerID: "o2", CreatedAt: now}))

	list, err := repo.ListByOwner(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "f2", list[0].ID)

	require.NoError(t, repo.Delete(ctx, "f1"))
	assert.ErrorIs(t, repo.Delete(ctx, "f1"), common.ErrNotFound)
	_, err = repo.GetByID(ctx, "f1")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = repo.IncrementDownloadCount(ctx, "f1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFiles_IncrementConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Files()
	require.NoError(t, repo.Create(ctx, &models.SharedFile{ID: "f1"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.IncrementDownloadCount(ctx, "f1")
		}()
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.DownloadCount)
}

func TestChallenges_LatestAndGuards(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Challenges()

	_, err := repo.Latest(ctx, "f1", "+1555")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, repo.Create(ctx, &models.OtpChallenge{ID: "c1", FileID: "f1", RecipientPhone: "+1555", MaxAttempts: 3, CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, &models.OtpChallenge{ID: "c2", FileID: "f1", RecipientPhone: "+1555", MaxAttempts: 3, CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, &models.OtpChallenge{ID: "c3", FileID: "f2", RecipientPhone: "+1555", MaxAttempts: 3, CreatedAt: now.Add(time.Minute)}))

	latest, err := repo.Latest(ctx, "f1", "+1555")
	require.NoError(t, err)
	assert.Equal(t, "c2", latest.ID)

	for want := 1; want <= 3; want++ {
		n, err := repo.RegisterFailedAttempt(ctx, "c2")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	_, err = repo.RegisterFailedAttempt(ctx, "c2")
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.ErrorIs(t, repo.MarkVerified(ctx, "c2", now), common.ErrConflict)

	require.NoError(t, repo.MarkVerified(ctx, "c1", now))
	assert.ErrorIs(t, repo.MarkVerified(ctx, "c1", now), common.ErrConflict)
	_, err = repo.RegisterFailedAttempt(ctx, "c1")
	assert.ErrorIs(t, err, common.ErrConflict)

	assert.ErrorIs(t, repo.MarkVerified(ctx, "missing", now), common.ErrConflict)
	require.NoError(t, repo.LockPhone(ctx, "+1555"))
}

func TestChallenges_WindowStats(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Challenges()

	for i, offset := range []time.Duration{-6 * time.Minute, -4 * time.Minute, -time.Minute} {
		require.NoError(t, repo.Create(ctx, &models.OtpChallenge{
			ID: string(rune('a' + i)), FileID: "f", RecipientPhone: "+1555", CreatedAt: now.Add(offset),
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.OtpChallenge{ID: "z", RecipientPhone: "+1666", CreatedAt: now}))

	stats, err := repo.WindowStats(ctx, "+1555", now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, now.Add(-4*time.Minute), stats.Oldest)

	// a send exactly at the window edge has aged out
	stats, err = repo.WindowStats(ctx, "+1555", now.Add(-4*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
}

func TestInvitations_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Invitations()

	inv := &models.Invitation{ID: "i1", FileID: "f1", TokenHash: []byte("h1"), Status: models.InvitationPending, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, inv))
	assert.ErrorIs(t, repo.Create(ctx, &models.Invitation{ID: "i2", TokenHash: []byte("h1")}), common.ErrConflict)

	got, err := repo.GetByTokenHash(ctx, []byte("h1"))
	require.NoError(t, err)
	assert.Equal(t, "i1", got.ID)

	require.NoError(t, repo.Accept(ctx, "i1", "u1", now))
	assert.ErrorIs(t, repo.Accept(ctx, "i1", "u2", now), common.ErrConflict)

	got, _ = repo.GetByTokenHash(ctx, []byte("h1"))
	assert.Equal(t, models.InvitationAccepted, got.Status)
	assert.Equal(t, "u1", *got.AcceptedByUserID)

	_, err = repo.GetByTokenHash(ctx, []byte("nope"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestInvitations_ExpiryGuards(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Invitations()

	require.NoError(t, repo.Create(ctx, &models.Invitation{ID: "i1", TokenHash: []byte("h"), Status: models.InvitationPending, ExpiresAt: now}))
	require.NoError(t, repo.Create(ctx, &models.Invitation{ID: "i2", TokenHash: []byte("h2"), Status: models.InvitationPending, ExpiresAt: now}))

	assert.ErrorIs(t, repo.Accept(ctx, "i1", "u1", now.Add(time.Nanosecond)), common.ErrConflict)

	require.NoError(t, repo.MarkExpired(ctx, "i1", now))
	got, _ := repo.GetByTokenHash(ctx, []byte("h"))
	assert.Equal(t, models.InvitationPending, got.Status, "not expired at exactly expires_at")

	require.NoError(t, repo.MarkExpired(ctx, "i1", now.Add(time.Nanosecond)))
	got, _ = repo.GetByTokenHash(ctx, []byte("h"))
	assert.Equal(t, models.InvitationExpired, got.Status)

	require.NoError(t, repo.Accept(ctx, "i2", "u1", now))
	got, _ = repo.GetByTokenHash(ctx, []byte("h2"))
	assert.Equal(t, models.InvitationAccepted, got.Status)
}

func TestFileDelete_KeepsInvitations(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Files().Create(ctx, &models.SharedFile{ID: "f1"}))
	require.NoError(t, store.Invitations().Create(ctx, &models.Invitation{ID: "i1", FileID: "f1", TokenHash: []byte("h")}))

	require.NoError(t, store.Files().Delete(ctx, "f1"))

	got, err := store.Invitations().GetByTokenHash(ctx, []byte("h"))
	require.NoError(t, err)
	assert.Equal(t, "f1", got.FileID)
}
