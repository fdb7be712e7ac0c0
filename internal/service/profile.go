package service

import (
	"context"
	"errors"

	"github.com/degreelab/planvault/internal/errs"
	"github.com/degreelab/planvault/internal/model"
	"github.com/degreelab/planvault/internal/repository"
	"github.com/degreelab/planvault/internal/session"
)

// ProfileGateway is the boundary that hands the opaque envelope and verifier
// fields to an authenticated client. It never decrypts, derives, or logs the
// profile payload.
type ProfileGateway interface {
	// GetEnvelope returns the full credential record for the identity the
	// session is bound to.
	GetEnvelope(ctx context.Context, sessionToken, identityToken string) (*model.CredentialRecord, error)
	// UpdateEnvelope replaces the stored envelope with a freshly encrypted one.
	UpdateEnvelope(ctx context.Context, sessionToken, identityToken string, env model.Envelope) error
	// Delete removes the credential record and revokes the session.
	Delete(ctx context.Context, sessionToken, identityToken string) error
}

type ProfileGatewayImpl struct {
	creds    repository.CredentialRepository
	sessions *session.Manager
}

// NewProfileGateway constructs the gateway over a credential store and
// session manager.
func NewProfileGateway(creds repository.CredentialRepository, sessions *session.Manager) *ProfileGatewayImpl {
	return &ProfileGatewayImpl{creds: creds, sessions: sessions}
}

// gate admits the call only when the session is valid and bound to exactly
// the requested identity. A session for identity A grants nothing for B.
func (g *ProfileGatewayImpl) gate(sessionToken, identityToken string) error {
	sess, err := g.sessions.Check(sessionToken)
	if err != nil {
		return errs.ErrUnauthorized
	}
	if sess.IdentityToken != identityToken {
		return errs.ErrUnauthorized
	}
	return nil
}

// GetEnvelope returns the full credential record: identity token, password
// verifier, salt and envelope, which is what the client needs to re-derive
// the key and decrypt.
func (g *ProfileGatewayImpl) GetEnvelope(ctx context.Context, sessionToken, identityToken string) (*model.CredentialRecord, error) {
	if err := g.gate(sessionToken, identityToken); err != nil {
		return nil, err
	}
	return g.creds.GetByToken(ctx, identityToken)
}

// UpdateEnvelope swaps in a new iv+ciphertext; salt and verifier stay fixed.
func (g *ProfileGatewayImpl) UpdateEnvelope(ctx context.Context, sessionToken, identityToken string, env model.Envelope) error {
	if err := g.gate(sessionToken, identityToken); err != nil {
		return err
	}
	if len(env.IV) == 0 || len(env.Ciphertext) == 0 {
		return errors.New("validation: envelope")
	}
	return g.creds.UpdateEnvelope(ctx, identityToken, env)
}

// Delete removes the record, then revokes the session that authorized it.
func (g *ProfileGatewayImpl) Delete(ctx context.Context, sessionToken, identityToken string) error {
	if err := g.gate(sessionToken, identityToken); err != nil {
		return err
	}
	if err := g.creds.Delete(ctx, identityToken); err != nil {
		return err
	}
	g.sessions.Revoke(sessionToken)
	return nil
}
