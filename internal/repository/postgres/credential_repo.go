package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/degreelab/planvault/internal/errs"
	"github.com/degreelab/planvault/internal/model"
)

// CredentialRepo implements CredentialRepository using PostgreSQL.
type CredentialRepo struct{ db *DB }

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

// Put inserts a new credential record. The primary key on identity_token
// makes the uniqueness check atomic under concurrent provisioning.
func (r *CredentialRepo) Put(ctx context.Context, rec *model.CredentialRecord) error {
	const q = `
INSERT INTO credentials (identity_token, password_verifier, salt, envelope_iv, envelope_ct)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q,
		rec.IdentityToken, rec.PasswordVerifier, rec.Salt,
		rec.Envelope.IV, rec.Envelope.Ciphertext)
	if isUniqueViolation(err) {
		return errs.ErrDuplicateIdentity
	}
	return storeErr(err)
}

// GetByToken selects a record by exact identity token match.
func (r *CredentialRepo) GetByToken(ctx context.Context, identityToken string) (*model.CredentialRecord, error) {
	const q = `
SELECT identity_token, password_verifier, salt, envelope_iv, envelope_ct, created_at, updated_at
FROM credentials WHERE identity_token=$1`
	row := r.db.Pool.QueryRow(ctx, q, identityToken)
	var rec model.CredentialRecord
	err := row.Scan(&rec.IdentityToken, &rec.PasswordVerifier, &rec.Salt,
		&rec.Envelope.IV, &rec.Envelope.Ciphertext, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, storeErr(err)
	}
	return &rec, nil
}

// UpdateEnvelope replaces the envelope for an existing record. The salt and
// verifier stay fixed; only the profile payload is re-encrypted by the client.
func (r *CredentialRepo) UpdateEnvelope(ctx context.Context, identityToken string, env model.Envelope) error {
	const q = `
UPDATE credentials SET envelope_iv=$2, envelope_ct=$3 WHERE identity_token=$1`
	tag, err := r.db.Pool.Exec(ctx, q, identityToken, env.IV, env.Ciphertext)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a record by identity token.
func (r *CredentialRepo) Delete(ctx context.Context, identityToken string) error {
	const q = `DELETE FROM credentials WHERE identity_token=$1`
	tag, err := r.db.Pool.Exec(ctx, q, identityToken)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
