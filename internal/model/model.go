// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Envelope is the client-encrypted profile payload. The iv is unique per
// encryption operation; the ciphertext is never stored or transmitted
// without it.
type Envelope struct {
	IV         []byte
	Ciphertext []byte
}

// CredentialRecord is the one row the server keeps per student identity.
// It never contains a plaintext password or plaintext profile.
type CredentialRecord struct {
	IdentityToken    string   // PK, output of the identity hasher
	PasswordVerifier []byte   // comparison material only, never key material
	Salt             []byte   // fixed for the record's lifetime
	Envelope         Envelope // opaque to the server
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Session binds a server-issued token to exactly one identity, with an
// explicit expiry.
type Session struct {
	ID            uuid.UUID // jti of the signed token
	IdentityToken string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the session is past its expiry at time now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
