// Package cryptox implements the server-side secrets handling: one-time
// passcode generation, keyed passcode hashing and invitation tokens.
// Nothing here ever sees file key material; the blob is encrypted client-side.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

const (
	passcodeSpace = 1_000_000

	// TokenBytes is the invitation token entropy (256 bits).
	TokenBytes = 32

	passcodeKeyInfo = "secureshare/passcode-hash/v1"
)

var ErrWeakSecret = errors.New("secret must be at least 16 bytes")

// GeneratePasscode returns a uniformly distributed 6-digit code drawn from r,
// zero-padded so "000042" is a valid result. Pass crypto/rand.Reader in
// production.
func GeneratePasscode(r io.Reader) (string, error) {
	n, err := rand.Int(r, big.NewInt(passcodeSpace))
	if err != nil {
		return "", fmt.Errorf("generate passcode: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// PasscodeHasher computes keyed BLAKE2b-256 digests of passcodes. The key is
// derived with HKDF-SHA256 from the server secret so the raw secret is never
// used directly as a MAC key.
type PasscodeHasher struct {
	key []byte
}

func NewPasscodeHasher(secret []byte) (*PasscodeHasher, error) {
	if len(secret) < 16 {
		return nil, ErrWeakSecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(passcodeKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive passcode key: %w", err)
	}
	return &PasscodeHasher{key: key}, nil
}

// Sum binds the digest to the challenge so a hash copied onto another row
// does not verify there.
func (h *PasscodeHasher) Sum(challengeID, code string) []byte {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// only possible with a key longer than 64 bytes
		panic(err)
	}
	mac.Write([]byte(challengeID))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return mac.Sum(nil)
}

// Equal compares two digests in constant time.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// NewToken returns a URL-safe invitation token with TokenBytes of entropy.
func NewToken(r io.Reader) (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken is the lookup key stored in place of an invitation token.
func HashToken(token string) []byte {
	sum := blake2b.Sum256([]byte(token))
	return sum[:]
}
