// Package clientcrypto contains the client-trusted primitives of the envelope
// scheme: key derivation, verifier derivation, and authenticated encryption.
// Server request paths never call into this package; it exists so the CLI
// client and the tests can exercise the full protocol.
package clientcrypto

import (
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/degreelab/planvault/internal/errs"
)

// Argon2id parameters for the password-to-master derivation.
const (
	KeyLen      = 32
	VerifierLen = 32
	SaltLen     = 16

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
)

// HKDF domain-separation labels. The verifier label must never equal the
// key label: the server stores the verifier, and must not thereby hold
// anything usable as the envelope key.
const (
	labelKey      = "planvault/envelope-key"
	labelVerifier = "planvault/password-verifier"
)

func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// master runs the slow Argon2id step shared by DeriveKey and Verifier.
func master(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// expand derives len bytes from the master secret under a label via HKDF-SHA256.
func expand(secret []byte, label string, n int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, []byte(label))
	out := make([]byte, n)
	_, err := r.Read(out)
	return out, err
}

// DeriveKey derives the envelope encryption key from password and salt.
func DeriveKey(password, salt []byte) ([]byte, error) {
	return expand(master(password, salt), labelKey, KeyLen)
}

// Verifier derives the password verifier sent to and stored by the server.
// Domain separation guarantees it differs from DeriveKey's output.
func Verifier(password, salt []byte) ([]byte, error) {
	return expand(master(password, salt), labelVerifier, VerifierLen)
}

// Encrypt seals plaintext with XChaCha20-Poly1305 under key, generating a
// fresh random iv on every call. The iv and ciphertext are returned
// separately; a record must always carry both.
func Encrypt(key, plaintext []byte) (iv, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, err
	}
	iv, err = Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, nil, err
	}
	return iv, aead.Seal(nil, iv, plaintext, nil), nil
}

// Decrypt opens ciphertext under key and iv. Any tamper of key, iv, or
// ciphertext yields errs.ErrAuthenticationFailed, never garbage plaintext.
func Decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != chacha20poly1305.NonceSizeX {
		return nil, errs.ErrAuthenticationFailed
	}
	pt, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, errs.ErrAuthenticationFailed
	}
	return pt, nil
}
