package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/logging"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginUpload_PersistsBeforeReturningURL(t *testing.T) {
	h := newHarness(t)

	ticket, err := h.lifecycle.BeginUpload(context.Background(), uploadRequest(false, 24))
	require.NoError(t, err)

	f, err := h.file(t, ticket.FileID)
	require.NoError(t, err)
	assert.Equal(t, "owners/"+owner+"/"+ticket.FileID, f.BlobKey)
	assert.Equal(t, "https://blobs.test/put/"+f.BlobKey, ticket.UploadURL)
	require.NotNil(t, f.ExpiresAt)
	assert.Equal(t, t0.Add(24*time.Hour), *f.ExpiresAt)
	assert.Equal(t, t0.Add(5*time.Minute), ticket.UploadURLExpiresAt)
	assert.Zero(t, f.DownloadCount)
}

func TestBeginUpload_NoExpiry(t *testing.T) {
	h := newHarness(t)
	id := h.upload(t, false, 0)

	f, err := h.file(t, id)
	require.NoError(t, err)
	assert.Nil(t, f.ExpiresAt)
}

func TestBeginUpload_Validation(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*UploadRequest)
		field string
	}{
		{"zero size", func(r *UploadRequest) { r.FileSize = 0 }, "fileSize"},
		{"negative expiry", func(r *UploadRequest) { r.ExpiryHours = -1 }, "expiryHours"},
		{"expiry too far", func(r *UploadRequest) { r.ExpiryHours = 721 }, "expiryHours"},
		{"missing salt", func(r *UploadRequest) { r.FileSalt = nil }, "fileSalt"},
		{"missing owner", func(r *UploadRequest) { r.OwnerID = " " }, "ownerId"},
		{"missing key hash", func(r *UploadRequest) { r.MasterKeyHash = "" }, "masterKeyHash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			r := uploadRequest(false, 1)
			tt.mut(&r)

			_, err := h.lifecycle.BeginUpload(context.Background(), r)
			var ve *common.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Empty(t, h.blobs.puts, "no URL may be issued for a rejected upload")
		})
	}
}

func TestBeginUpload_PresignFailureLeavesNoRecord(t *testing.T) {
	h := newHarness(t)
	h.blobs.putErr = errors.New("presign: boom")

	_, err := h.lifecycle.BeginUpload(context.Background(), uploadRequest(false, 1))
	require.Error(t, err)

	list, err := h.lifecycle.ListFiles(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGetDownloadGate(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.lifecycle.GetDownloadGate(ctx, "missing")
		require.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("active until expiry, expired after", func(t *testing.T) {
		h := newHarness(t)
		id := h.upload(t, false, 1)

		h.clock.Advance(time.Hour)
		_, err := h.lifecycle.GetDownloadGate(ctx, id)
		require.NoError(t, err, "exactly at the deadline the file is still active")

		h.clock.Advance(time.Second)
		_, err = h.lifecycle.GetDownloadGate(ctx, id)
		require.ErrorIs(t, err, common.ErrExpired)
	})
}

func TestRecordDownload_Counts(t *testing.T) {
	h := newHarness(t)
	id := h.upload(t, false, 0)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		res, err := h.lifecycle.RecordDownload(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, res.DownloadCount)
		assert.False(t, res.Burned)
	}
	_, err := h.lifecycle.GetDownloadGate(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, h.blobs.deletedKeys())
}

func TestRecordDownload_BurnDeletesBlobAndRecord(t *testing.T) {
	h := newHarness(t)
	id := h.upload(t, true, 0)
	ctx := context.Background()

	res, err := h.lifecycle.RecordDownload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &models.DownloadResult{DownloadCount: 1, Burned: true}, res)

	assert.Equal(t, []string{"owners/" + owner + "/" + id}, h.blobs.deletedKeys())
	_, err = h.file(t, id)
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = h.lifecycle.GetDownloadGate(ctx, id)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestRecordDownload_BlobDeleteFailureStillDeletesRecord(t *testing.T) {
	h := newHarness(t)
	id := h.upload(t, true, 0)
	h.blobs.delErr = errors.New("s3 down")

	_, err := h.lifecycle.RecordDownload(context.Background(), id)
	require.NoError(t, err)

	_, err = h.file(t, id)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestRecordDownload_ConcurrentBurn(t *testing.T) {
	h := newHarness(t)
	id := h.upload(t, true, 0)
	ctx := context.Background()

	// hold the first caller inside the blob delete until the second caller
	// has incremented
	secondDone := make(chan struct{})
	var once sync.Once
	h.blobs.onDelete = func() {
		once.Do(func() { <-secondDone })
	}

	var (
		wg      sync.WaitGroup
		results = make([]*models.DownloadResult, 2)
		errs    = make([]error, 2)
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = h.lifecycle.RecordDownload(ctx, id)
	}()

	require.Eventually(t, func() bool {
		f, err := h.file(t, id)
		return err == nil && f.DownloadCount == 1
	}, time.Second, time.Millisecond)

	results[1], errs[1] = h.lifecycle.RecordDownload(ctx, id)
	close(secondDone)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	counts := []int64{results[0].DownloadCount, results[1].DownloadCount}
	assert.ElementsMatch(t, []int64{1, 2}, counts)

	assert.Len(t, h.blobs.deletedKeys(), 1, "exactly one blob delete")
	_, err := h.file(t, id)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("owner", func(t *testing.T) {
		h := newHarness(t)
		id := h.upload(t, false, 0)

		require.NoError(t, h.lifecycle.Revoke(ctx, id, owner))
		assert.Len(t, h.blobs.deletedKeys(), 1)
		_, err := h.lifecycle.GetDownloadGate(ctx, id)
		require.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("not owner", func(t *testing.T) {
		h := newHarness(t)
		id := h.upload(t, false, 0)

		require.ErrorIs(t, h.lifecycle.Revoke(ctx, id, stranger), common.ErrUnauthorized)
		assert.Empty(t, h.blobs.deletedKeys())
		_, err := h.lifecycle.GetDownloadGate(ctx, id)
		require.NoError(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		h := newHarness(t)
		require.ErrorIs(t, h.lifecycle.Revoke(ctx, "nope", owner), common.ErrNotFound)
	})

	t.Run("blob failure is not fatal", func(t *testing.T) {
		h := newHarness(t)
		id := h.upload(t, false, 0)
		h.blobs.delErr = errors.New("timeout")

		require.NoError(t, h.lifecycle.Revoke(ctx, id, owner))
		_, err := h.file(t, id)
		require.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestListFiles_States(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	expiring := h.upload(t, false, 1)
	h.clock.Advance(time.Minute)
	burn := h.upload(t, true, 0)
	h.clock.Advance(time.Minute)
	plain := h.upload(t, false, 0)

	// consumed state is only observable through a store-level increment;
	// RecordDownload would delete the file
	_, err := h.repos.Files(nil).IncrementDownloadCount(ctx, burn)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Hour)

	list, err := h.lifecycle.ListFiles(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 3)

	states := map[string]models.FileState{}
	for _, s := range list {
		states[s.ID] = s.State
	}
	assert.Equal(t, models.FileExpired, states[expiring])
	assert.Equal(t, models.FileConsumed, states[burn])
	assert.Equal(t, models.FileActive, states[plain])

	other, err := h.lifecycle.ListFiles(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMalformedFileID_IsNotFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	fr := &countingFiles{Repository: h.repos.Files(nil)}
	cr := &racingChallenges{Repository: h.repos.Challenges(nil)}
	repos := wrappedRepos{RepositoryManager: h.repos, files: fr, challenges: cr}

	lifecycle := NewLifecycleService(repos, h.blobs, LifecycleConfig{UploadURLTTL: 5 * time.Minute, MaxExpiryHours: 720}, h.clock, logging.Nop{})
	passcodes := h.passcodesOn(repos)

	for _, id := range []string{"", "abc", "f1", "1234", "not-a-uuid-at-all-0000000000000000", "'; select 1; --"} {
		_, err := lifecycle.GetDownloadGate(ctx, id)
		assert.ErrorIs(t, err, common.ErrNotFound, id)
		_, err = lifecycle.RecordDownload(ctx, id)
		assert.ErrorIs(t, err, common.ErrNotFound, id)
		_, err = lifecycle.RequireOwner(ctx, id, owner)
		assert.ErrorIs(t, err, common.ErrNotFound, id)
		assert.ErrorIs(t, lifecycle.Revoke(ctx, id, owner), common.ErrNotFound, id)

		_, err = passcodes.Issue(ctx, IssueRequest{FileID: id, Phone: phone})
		assert.ErrorIs(t, err, common.ErrNotFound, id)
		_, err = passcodes.Verify(ctx, id, phone, "123456")
		assert.ErrorIs(t, err, common.ErrNotFound, id)
		_, err = passcodes.Latest(ctx, id, phone)
		assert.ErrorIs(t, err, common.ErrNotFound, id)
	}

	assert.Zero(t, fr.calls.Load(), "malformed ids never reach the file store")
	assert.Zero(t, cr.calls.Load(), "malformed ids never reach the challenge store")
	assert.Empty(t, h.sender.sms)

	id := h.upload(t, false, 0)
	_, err := lifecycle.GetDownloadGate(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fr.calls.Load())
}
