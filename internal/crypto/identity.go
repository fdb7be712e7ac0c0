// Package crypto implements server-side identity hashing and verifier comparison.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// defaultPepper is the deployment-wide key for identity token derivation.
// Changing it invalidates every stored lookup key.
const defaultPepper = "planvault-identity-v1"

// TokenLen is the hex length of an identity token.
const TokenLen = 64

// Hasher turns raw identities into fixed-width pseudonymous lookup tokens.
// The transform is deterministic and one-way; it indexes records, it does
// not protect low-entropy identities the way a password hash would.
type Hasher struct {
	pepper []byte
}

// NewHasher returns a Hasher keyed with pepper. Empty pepper selects the default.
func NewHasher(pepper string) *Hasher {
	if pepper == "" {
		pepper = defaultPepper
	}
	return &Hasher{pepper: []byte(pepper)}
}

// Token maps a raw identity to its 64-char hex lookup token.
// Same input always yields the same token within a deployment.
func (h *Hasher) Token(rawIdentity string) string {
	// Normalize through SHA-256 first, then key the digest so tokens
	// cannot be precomputed without the deployment pepper.
	sum := sha256.Sum256([]byte(rawIdentity))
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write(sum[:])
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidToken reports whether s has the shape of a Token output.
func ValidToken(s string) bool {
	if len(s) != TokenLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// VerifierEqual compares a supplied verifier against the stored one in constant time.
func VerifierEqual(supplied, stored []byte) bool {
	return subtle.ConstantTimeCompare(supplied, stored) == 1
}
