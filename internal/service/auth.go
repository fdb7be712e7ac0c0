// Package service contains application services for authentication and
// gated profile access.
package service

import (
	"context"
	"errors"

	pkgcrypto "github.com/degreelab/planvault/internal/crypto"
	"github.com/degreelab/planvault/internal/errs"
	"github.com/degreelab/planvault/internal/limiter"
	"github.com/degreelab/planvault/internal/model"
	"github.com/degreelab/planvault/internal/repository"
	"github.com/degreelab/planvault/internal/session"
)

// AuthService defines provisioning and the session state machine.
type AuthService interface {
	// Provision creates a credential record at signup.
	Provision(ctx context.Context, rec *model.CredentialRecord) error
	// Login applies rate limiting, compares the supplied verifier, and
	// issues a session bound to the identity token.
	Login(ctx context.Context, identityToken string, suppliedVerifier []byte, ip string) (string, model.Session, error)
	// Check reports the session a token names, or errs.ErrUnauthorized.
	Check(token string) (model.Session, error)
	// Logout revokes a session; idempotent.
	Logout(token string)
}

type AuthServiceImpl struct {
	creds    repository.CredentialRepository
	sessions *session.Manager
	lim      limiter.Limiter

	// dummyVerifier keeps the compare on the unknown-identity path,
	// so the two login failures stay timing-indistinguishable.
	dummyVerifier []byte

	verifierEqual func(a, b []byte) bool
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(creds repository.CredentialRepository, sessions *session.Manager, lim limiter.Limiter) (*AuthServiceImpl, error) {
	dummy, err := pkgcrypto.RandBytes(32)
	if err != nil {
		return nil, err
	}
	return &AuthServiceImpl{
		creds:         creds,
		sessions:      sessions,
		lim:           lim,
		dummyVerifier: dummy,
		verifierEqual: pkgcrypto.VerifierEqual,
	}, nil
}

// Provision validates the record shape and inserts it. The server receives
// only already-hashed and already-encrypted material.
func (s *AuthServiceImpl) Provision(ctx context.Context, rec *model.CredentialRecord) error {
	if rec == nil || !pkgcrypto.ValidToken(rec.IdentityToken) {
		return errors.New("validation: identity token")
	}
	if len(rec.PasswordVerifier) == 0 || len(rec.Salt) == 0 {
		return errors.New("validation: verifier/salt")
	}
	if len(rec.Envelope.IV) == 0 || len(rec.Envelope.Ciphertext) == 0 {
		return errors.New("validation: envelope")
	}
	return s.creds.Put(ctx, rec)
}

// Login authenticates with rate limiting by (identity, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, identityToken string, suppliedVerifier []byte, ip string) (string, model.Session, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, identityToken, ipHash)
	if err != nil {
		return "", model.Session{}, err
	}
	if !allowed {
		return "", model.Session{}, errs.ErrRateLimited
	}

	rec, err := s.creds.GetByToken(ctx, identityToken)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return "", model.Session{}, err
	}

	stored := s.dummyVerifier
	if err == nil {
		stored = rec.PasswordVerifier
	}
	// The compare runs before the branch so an unknown identity costs the
	// same as a wrong password.
	ok := s.verifierEqual(suppliedVerifier, stored)
	if err != nil || !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, identityToken, ipHash); ferr == nil && blocked {
			return "", model.Session{}, errs.ErrRateLimited
		}
		// unknown identity and wrong verifier collapse into one outcome
		return "", model.Session{}, errs.ErrInvalidCredentials
	}

	_ = s.lim.Success(ctx, identityToken, ipHash)

	token, sess, err := s.sessions.Issue(identityToken)
	if err != nil {
		return "", model.Session{}, err
	}
	return token, sess, nil
}

// Check validates a presented session token. Pure query.
func (s *AuthServiceImpl) Check(token string) (model.Session, error) {
	return s.sessions.Check(token)
}

// Logout revokes the session; repeating it is not an error.
func (s *AuthServiceImpl) Logout(token string) {
	s.sessions.Revoke(token)
}
