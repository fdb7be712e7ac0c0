// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/degreelab/planvault/internal/model"
)

// CredentialRepository provides single-record access to credential records,
// keyed by exact identity token match.
type CredentialRepository interface {
	// Put inserts a new record; errs.ErrDuplicateIdentity if the token is taken.
	// The uniqueness check is atomic under concurrent provisioning.
	Put(ctx context.Context, rec *model.CredentialRecord) error
	// GetByToken loads a record; errs.ErrNotFound if absent.
	GetByToken(ctx context.Context, identityToken string) (*model.CredentialRecord, error)
	// UpdateEnvelope replaces the stored envelope; errs.ErrNotFound if absent.
	UpdateEnvelope(ctx context.Context, identityToken string, env model.Envelope) error
	// Delete removes a record; errs.ErrNotFound if absent.
	Delete(ctx context.Context, identityToken string) error
}
