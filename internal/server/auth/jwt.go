// Package auth issues and parses the two HS256 token kinds the API accepts:
// owner tokens (who is calling) and download grants (which recipient proved
// which phone for which file).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/secureshare/internal/common"
	"github.com/dmitrijs2005/secureshare/internal/timex"
	"github.com/golang-jwt/jwt/v5"
)

const (
	audienceOwner = "secureshare:owner"
	audienceGrant = "secureshare:download"
)

// Claims carry the authenticated user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// GrantClaims bind a verified challenge to a file and phone.
type GrantClaims struct {
	jwt.RegisteredClaims
	FileID      string
	Phone       string
	ChallengeID string
}

// Grant is the parsed form of a download grant.
type Grant struct {
	FileID      string
	Phone       string
	ChallengeID string
	ExpiresAt   time.Time
}

type Issuer struct {
	secret []byte
	clock  timex.Clock
}

func NewIssuer(secret []byte, clock timex.Clock) *Issuer {
	return &Issuer{secret: secret, clock: clock}
}

func (i *Issuer) registered(aud, subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := i.clock.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{aud},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *Issuer) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *Issuer) parse(token, aud string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(aud),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: expired", common.ErrInvalidToken)
		}
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return common.ErrInvalidToken
	}
	return nil
}

// OwnerToken mints a token identifying userID.
func (i *Issuer) OwnerToken(userID string, ttl time.Duration) (string, error) {
	return i.sign(Claims{RegisteredClaims: i.registered(audienceOwner, userID, ttl), UserID: userID})
}

// UserID validates an owner token and returns the user it names.
func (i *Issuer) UserID(token string) (string, error) {
	claims := &Claims{}
	if err := i.parse(token, audienceOwner, claims); err != nil {
		return "", err
	}
	if claims.UserID == "" {
		return "", common.ErrInvalidToken
	}
	return claims.UserID, nil
}

func (i *Issuer) GrantToken(g Grant, ttl time.Duration) (string, error) {
	return i.sign(GrantClaims{
		RegisteredClaims: i.registered(audienceGrant, g.ChallengeID, ttl),
		FileID:           g.FileID,
		Phone:            g.Phone,
		ChallengeID:      g.ChallengeID,
	})
}

func (i *Issuer) ParseGrant(token string) (*Grant, error) {
	claims := &GrantClaims{}
	if err := i.parse(token, audienceGrant, claims); err != nil {
		return nil, err
	}
	if claims.FileID == "" || claims.Phone == "" || claims.ChallengeID == "" {
		return nil, common.ErrInvalidToken
	}
	return &Grant{
		FileID:      claims.FileID,
		Phone:       claims.Phone,
		ChallengeID: claims.ChallengeID,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}
