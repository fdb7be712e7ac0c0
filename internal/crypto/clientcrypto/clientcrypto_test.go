package clientcrypto

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"testing"

	"github.com/degreelab/planvault/internal/errs"
)

func TestDeriveKey_DeterministicAndSaltDependent(t *testing.T) {
	t.Parallel()
	pw := []byte("p@ss")
	s1 := []byte("salt-1")
	s2 := []byte("salt-2")
	k1, err := DeriveKey(pw, s1)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	k2, _ := DeriveKey(pw, s1)
	if subtle.ConstantTimeCompare(k1, k2) != 1 {
		t.Fatalf("DeriveKey not deterministic")
	}
	k3, _ := DeriveKey(pw, s2)
	if subtle.ConstantTimeCompare(k1, k3) != 0 {
		t.Fatalf("DeriveKey must change with salt")
	}
	k4, _ := DeriveKey([]byte("other"), s1)
	if subtle.ConstantTimeCompare(k1, k4) != 0 {
		t.Fatalf("DeriveKey must change with password")
	}
}

func TestKeyVerifierSeparation(t *testing.T) {
	t.Parallel()
	pw := []byte("p@ss")
	salt := []byte("salt-xyz")
	key, err := DeriveKey(pw, salt)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	ver, err := Verifier(pw, salt)
	if err != nil {
		t.Fatalf("Verifier: %v", err)
	}
	// The server stores the verifier; it must never double as the key.
	if subtle.ConstantTimeCompare(key, ver) != 0 {
		t.Fatalf("verifier equals encryption key")
	}
	ver2, _ := Verifier(pw, salt)
	if subtle.ConstantTimeCompare(ver, ver2) != 1 {
		t.Fatalf("Verifier not deterministic")
	}
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	t.Parallel()
	key, _ := DeriveKey([]byte("pw"), []byte("salt"))
	pt := []byte(`{"name":"Alice","degree":"CS"}`)

	iv, ct, err := Encrypt(key, pt)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(ct, pt) {
		t.Fatalf("ciphertext must differ from plaintext")
	}

	got, err := Decrypt(key, iv, ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatalf("roundtrip mismatch: %q", got)
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	t.Parallel()
	key, _ := DeriveKey([]byte("pw"), []byte("salt"))
	pt := []byte("same plaintext")
	iv1, ct1, _ := Encrypt(key, pt)
	iv2, ct2, _ := Encrypt(key, pt)
	if bytes.Equal(iv1, iv2) {
		t.Fatalf("iv reused across encryption operations")
	}
	if bytes.Equal(ct1, ct2) {
		t.Fatalf("identical ciphertexts for distinct ivs")
	}
}

func TestDecrypt_FailsClosedOnTamper(t *testing.T) {
	t.Parallel()
	key, _ := DeriveKey([]byte("pw"), []byte("salt"))
	iv, ct, _ := Encrypt(key, []byte("payload"))

	flip := func(b []byte, i int) []byte {
		out := append([]byte(nil), b...)
		out[i] ^= 0x01
		return out
	}

	if _, err := Decrypt(key, iv, flip(ct, 0)); !errors.Is(err, errs.ErrAuthenticationFailed) {
		t.Fatalf("tampered ciphertext: got %v", err)
	}
	if _, err := Decrypt(key, flip(iv, 0), ct); !errors.Is(err, errs.ErrAuthenticationFailed) {
		t.Fatalf("tampered iv: got %v", err)
	}

	wrongKey, _ := DeriveKey([]byte("wrong"), []byte("salt"))
	if _, err := Decrypt(wrongKey, iv, ct); !errors.Is(err, errs.ErrAuthenticationFailed) {
		t.Fatalf("wrong key: got %v", err)
	}

	if _, err := Decrypt(key, iv[:4], ct); !errors.Is(err, errs.ErrAuthenticationFailed) {
		t.Fatalf("truncated iv: got %v", err)
	}
}

func TestRand_LengthUniq(t *testing.T) {
	t.Parallel()
	a, err := Rand(SaltLen)
	if err != nil || len(a) != SaltLen {
		t.Fatalf("Rand: len=%d err=%v", len(a), err)
	}
	b, _ := Rand(SaltLen)
	if bytes.Equal(a, b) {
		t.Fatalf("Rand produced equal slices")
	}
}
