// Package memory provides an in-memory CredentialRepository used by tests
// and single-process deployments without Postgres.
package memory

import (
	"context"
	"sync"

	"github.com/degreelab/planvault/internal/errs"
	"github.com/degreelab/planvault/internal/model"
)

// CredentialRepo keeps records in a mutex-guarded map keyed by identity token.
type CredentialRepo struct {
	mu   sync.Mutex
	recs map[string]model.CredentialRecord
}

// NewCredentialRepo constructs an empty in-memory repository.
func NewCredentialRepo() *CredentialRepo {
	return &CredentialRepo{recs: make(map[string]model.CredentialRecord)}
}

// Put inserts a record; the check-and-insert happens under one lock, so
// concurrent provisioning of the same token admits exactly one writer.
func (r *CredentialRepo) Put(_ context.Context, rec *model.CredentialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.recs[rec.IdentityToken]; exists {
		return errs.ErrDuplicateIdentity
	}
	r.recs[rec.IdentityToken] = cloneRecord(*rec)
	return nil
}

// GetByToken loads a record by exact token match.
func (r *CredentialRepo) GetByToken(_ context.Context, identityToken string) (*model.CredentialRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[identityToken]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

// UpdateEnvelope replaces the stored envelope.
func (r *CredentialRepo) UpdateEnvelope(_ context.Context, identityToken string, env model.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[identityToken]
	if !ok {
		return errs.ErrNotFound
	}
	rec.Envelope = model.Envelope{
		IV:         append([]byte(nil), env.IV...),
		Ciphertext: append([]byte(nil), env.Ciphertext...),
	}
	r.recs[identityToken] = rec
	return nil
}

// Delete removes a record.
func (r *CredentialRepo) Delete(_ context.Context, identityToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recs[identityToken]; !ok {
		return errs.ErrNotFound
	}
	delete(r.recs, identityToken)
	return nil
}

func cloneRecord(rec model.CredentialRecord) model.CredentialRecord {
	rec.PasswordVerifier = append([]byte(nil), rec.PasswordVerifier...)
	rec.Salt = append([]byte(nil), rec.Salt...)
	rec.Envelope.IV = append([]byte(nil), rec.Envelope.IV...)
	rec.Envelope.Ciphertext = append([]byte(nil), rec.Envelope.Ciphertext...)
	return rec
}
