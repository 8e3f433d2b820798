package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/cryptox"
	"github.com/dmitrijs2005/secureshare/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvite_BatchOutcomes(t *testing.T) {
	h := newHarness(t)
	id := h.upload(t, false, 0)
	h.sender.emailErr["bounce@example.com"] = errors.New("mailbox full")

	out, err := h.invitations.Invite(context.Background(), id, owner, []string{
		"Alice@Example.com",
		"not-an-address",
		"alice@example.com ",
		"bounce@example.com",
	})
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Equal(t, "alice@example.com", out[0].Email)
	assert.Equal(t, StatusSent, out[0].Status)
	assert.NotEmpty(t, out[0].InvitationID)

	assert.Equal(t, StatusInvalid, out[1].Status)
	assert.Equal(t, "not-an-address", out[1].Email)
	assert.Equal(t, "invalid address", out[1].Reason)

	assert.Equal(t, InviteOutcome{Email: "alice@example.com", Status: StatusInvalid, Reason: "duplicate"}, out[2])

	assert.Equal(t, StatusFailed, out[3].Status)

	require.Len(t, h.sender.emails, 1)
	body := h.sender.emails[0].Body
	assert.Contains(t, body, "https://share.test/invitations/")
	token := h.sender.lastToken(t, "alice@example.com")
	assert.GreaterOrEqual(t, len(token), 22, "token carries at least 128 bits")

	inv, err := h.repos.Invitations(nil).GetByTokenHash(context.Background(), cryptox.HashToken(token))
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Equal(t, t0.Add(7*24*time.Hour), inv.ExpiresAt)
	assert.False(t, strings.Contains(string(inv.TokenHash), token))
}

func TestInvite_RequiresOwner(t *testing.T) {
	h := newHarness(t)
	id := h.upload(t, false, 0)

	_, err := h.invitations.Invite(context.Background(), id, stranger, []string{"a@example.com"})
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Empty(t, h.sender.emails)
}

func TestInvite_InactiveFile(t *testing.T) {
	h := newHarness(t)
	id := h.upload(t, false, 1)
	h.clock.Advance(2 * time.Hour)

	_, err := h.invitations.Invite(context.Background(), id, owner, []string{"a@example.com"})
	require.ErrorIs(t, err, common.ErrExpired)
}

func invite(t *testing.T, h *harness, email string) (string, string) {
	t.Helper()
	id := h.upload(t, false, 0)
	out, err := h.invitations.Invite(context.Background(), id, owner, []string{email})
	require.NoError(t, err)
	require.Equal(t, StatusSent, out[0].Status)
	return id, h.sender.lastToken(t, email)
}

func TestAcceptToken_SingleUse(t *testing.T) {
	h := newHarness(t)
	fileID, token := invite(t, h, "bob@example.com")
	ctx := context.Background()

	inv, err := h.invitations.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, fileID, inv.FileID)

	accepted, err := h.invitations.AcceptToken(ctx, token, "user-bob")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedByUserID)
	assert.Equal(t, "user-bob", *accepted.AcceptedByUserID)

	_, err = h.invitations.AcceptToken(ctx, token, "user-eve")
	require.ErrorIs(t, err, common.ErrAlreadyAccepted)
	_, err = h.invitations.ValidateToken(ctx, token)
	require.ErrorIs(t, err, common.ErrAlreadyAccepted)
}

func TestValidateToken_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.invitations.ValidateToken(ctx, "no-such-token")
		require.ErrorIs(t, err, common.ErrNotFound)
		_, err = h.invitations.ValidateToken(ctx, "")
		require.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("expired is persisted", func(t *testing.T) {
		h := newHarness(t)
		_, token := invite(t, h, "carol@example.com")
		h.clock.Advance(7*24*time.Hour + time.Second)

		_, err := h.invitations.ValidateToken(ctx, token)
		require.ErrorIs(t, err, common.ErrExpired)

		inv, err := h.repos.Invitations(nil).GetByTokenHash(ctx, cryptox.HashToken(token))
		require.NoError(t, err)
		assert.Equal(t, models.InvitationExpired, inv.Status)

		_, err = h.invitations.AcceptToken(ctx, token, "user-carol")
		require.ErrorIs(t, err, common.ErrExpired)
	})
}

func TestAcceptToken_AtExpiryInstant(t *testing.T) {
	h := newHarness(t)
	_, token := invite(t, h, "dave@example.com")
	ctx := context.Background()
	h.clock.Advance(7 * 24 * time.Hour)

	_, err := h.invitations.ValidateToken(ctx, token)
	require.NoError(t, err)

	inv, err := h.invitations.AcceptToken(ctx, token, "user-dave")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, inv.Status)
}

func TestInvitations_OutliveFile(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked", func(t *testing.T) {
		h := newHarness(t)
		fileID, token := invite(t, h, "erin@example.com")
		require.NoError(t, h.lifecycle.Revoke(ctx, fileID, owner))

		inv, err := h.repos.Invitations(nil).GetByTokenHash(ctx, cryptox.HashToken(token))
		require.NoError(t, err)
		assert.Equal(t, fileID, inv.FileID)
		assert.Equal(t, models.InvitationPending, inv.Status)
	})

	t.Run("burned", func(t *testing.T) {
		h := newHarness(t)
		fileID := h.upload(t, true, 0)
		out, err := h.invitations.Invite(ctx, fileID, owner, []string{"frank@example.com"})
		require.NoError(t, err)
		require.Equal(t, StatusSent, out[0].Status)
		token := h.sender.lastToken(t, "frank@example.com")

		res, err := h.lifecycle.RecordDownload(ctx, fileID)
		require.NoError(t, err)
		require.True(t, res.Burned)

		_, err = h.file(t, fileID)
		require.ErrorIs(t, err, common.ErrNotFound)
		_, err = h.repos.Invitations(nil).GetByTokenHash(ctx, cryptox.HashToken(token))
		require.NoError(t, err)
	})
}

func TestAcceptToken_RequiresUser(t *testing.T) {
	h := newHarness(t)
	_, token := invite(t, h, "dave@example.com")

	_, err := h.invitations.AcceptToken(context.Background(), token, "")
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestInvitationLink(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "https://share.test/invitations/abc", h.invitations.InvitationLink("abc"))
}
