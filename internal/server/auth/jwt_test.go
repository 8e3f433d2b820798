package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/timex"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newIssuer() (*Issuer, *timex.ManualClock) {
	clock := timex.NewManualClock(start)
	return NewIssuer([]byte("super-secret"), clock), clock
}

func TestOwnerToken_RoundTrip(t *testing.T) {
	t.Parallel()
	iss, _ := newIssuer()

	tok, err := iss.OwnerToken("user-123", time.Hour)
	require.NoError(t, err)

	uid, err := iss.UserID(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", uid)
}

func TestOwnerToken_Expired(t *testing.T) {
	t.Parallel()
	iss, clock := newIssuer()

	tok, err := iss.OwnerToken("u1", time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = iss.UserID(tok)
	require.ErrorIs(t, err, common.ErrInvalidToken)
	assert.Contains(t, err.Error(), "expired")
}

func TestOwnerToken_WrongSecret(t *testing.T) {
	t.Parallel()
	iss, clock := newIssuer()
	other := NewIssuer([]byte("another-secret"), clock)

	tok, err := other.OwnerToken("u2", time.Hour)
	require.NoError(t, err)

	_, err = iss.UserID(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestOwnerToken_Garbage(t *testing.T) {
	t.Parallel()
	iss, _ := newIssuer()

	_, err := iss.UserID("not-a-jwt")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestOwnerToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	iss, _ := newIssuer()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: iss.registered(audienceOwner, "u3", time.Hour),
		UserID:           "u3",
	})
	s, err := tok.SignedString([]byte("super-secret"))
	require.NoError(t, err)

	_, err = iss.UserID(s)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGrant_RoundTrip(t *testing.T) {
	t.Parallel()
	iss, _ := newIssuer()

	tok, err := iss.GrantToken(Grant{FileID: "f1", Phone: "+15551234567", ChallengeID: "c1"}, 10*time.Minute)
	require.NoError(t, err)

	g, err := iss.ParseGrant(tok)
	require.NoError(t, err)
	assert.Equal(t, "f1", g.FileID)
	assert.Equal(t, "+15551234567", g.Phone)
	assert.Equal(t, "c1", g.ChallengeID)
	assert.True(t, g.ExpiresAt.Equal(start.Add(10*time.Minute)))
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	t.Parallel()
	iss, _ := newIssuer()

	owner, err := iss.OwnerToken("u1", time.Hour)
	require.NoError(t, err)
	grant, err := iss.GrantToken(Grant{FileID: "f1", Phone: "+1555", ChallengeID: "c1"}, time.Hour)
	require.NoError(t, err)

	_, err = iss.ParseGrant(owner)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = iss.UserID(grant)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGrant_Expired(t *testing.T) {
	t.Parallel()
	iss, clock := newIssuer()

	tok, err := iss.GrantToken(Grant{FileID: "f1", Phone: "+1555", ChallengeID: "c1"}, time.Minute)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	_, err = iss.ParseGrant(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestGrant_MissingFields(t *testing.T) {
	t.Parallel()
	iss, _ := newIssuer()

	tok, err := iss.GrantToken(Grant{FileID: "f1"}, time.Minute)
	require.NoError(t, err)

	_, err = iss.ParseGrant(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
