package session

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/degreelab/planvault/internal/errs"
	"github.com/degreelab/planvault/internal/model"
)

// Manager issues signed session tokens and validates them against the store.
// A token is valid only while its signature checks out, its expiry has not
// passed, and its ID is still present in the store (logout removes it).
type Manager struct {
	signKey []byte
	ttl     time.Duration
	store   Store
	now     func() time.Time
}

// NewManager constructs a Manager signing HS256 tokens with signKey.
func NewManager(signKey []byte, ttl time.Duration, store Store) *Manager {
	return &Manager{signKey: signKey, ttl: ttl, store: store, now: time.Now}
}

// Issue creates a session bound to identityToken and returns the signed token.
func (m *Manager) Issue(identityToken string) (string, model.Session, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", model.Session{}, err
	}
	now := m.now()
	sess := model.Session{
		ID:            id,
		IdentityToken: identityToken,
		IssuedAt:      now,
		ExpiresAt:     now.Add(m.ttl),
	}
	claims := jwt.RegisteredClaims{
		ID:        id.String(),
		Subject:   identityToken,
		IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signKey)
	if err != nil {
		return "", model.Session{}, err
	}
	m.store.Save(sess)
	return signed, sess, nil
}

// Check validates a presented token and returns the session it names.
// It is a pure query: any failure yields errs.ErrUnauthorized, never a panic,
// and no state is mutated beyond expiry purging in the store.
func (m *Manager) Check(token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, errs.ErrUnauthorized
	}
	claims, err := m.parse(token, true)
	if err != nil {
		return model.Session{}, errs.ErrUnauthorized
	}
	id, err := uuid.FromString(claims.ID)
	if err != nil {
		return model.Session{}, errs.ErrUnauthorized
	}
	sess, ok := m.store.Get(id)
	if !ok || sess.IdentityToken != claims.Subject || sess.Expired(m.now()) {
		return model.Session{}, errs.ErrUnauthorized
	}
	return sess, nil
}

// Revoke removes the session named by token. It is idempotent: unknown,
// malformed, and already-revoked tokens are all no-ops.
func (m *Manager) Revoke(token string) {
	claims, err := m.parse(token, false)
	if err != nil {
		return
	}
	if id, err := uuid.FromString(claims.ID); err == nil {
		m.store.Delete(id)
	}
}

func (m *Manager) parse(token string, validate bool) (*jwt.RegisteredClaims, error) {
	var opts []jwt.ParserOption
	if !validate {
		// Revocation must reach the store entry even for expired tokens.
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.signKey, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, errs.ErrUnauthorized
	}
	return claims, nil
}
