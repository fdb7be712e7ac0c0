package session

import (
	"errors"
	"testing"
	"time"

	"github.com/degreelab/planvault/internal/errs"
)

const identA = "token-of-identity-a"

func newTestManager(ttl time.Duration) *Manager {
	return NewManager([]byte("test-sign-key"), ttl, NewMemoryStore())
}

func TestIssueCheckLogout_Lifecycle(t *testing.T) {
	t.Parallel()
	m := newTestManager(time.Hour)

	tok, sess, err := m.Issue(identA)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if sess.IdentityToken != identA {
		t.Fatalf("session bound to %q", sess.IdentityToken)
	}
	if !sess.ExpiresAt.After(sess.IssuedAt) {
		t.Fatalf("session has no expiry window")
	}

	got, err := m.Check(tok)
	if err != nil {
		t.Fatalf("Check after Issue: %v", err)
	}
	if got.IdentityToken != identA {
		t.Fatalf("Check returned wrong identity %q", got.IdentityToken)
	}

	m.Revoke(tok)
	if _, err := m.Check(tok); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("Check after Revoke: got %v", err)
	}

	// Revoke is idempotent.
	m.Revoke(tok)
	m.Revoke("not-even-a-token")
}

func TestCheck_RejectsGarbage(t *testing.T) {
	t.Parallel()
	m := newTestManager(time.Hour)
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.Check(tok); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("Check(%q): got %v, want ErrUnauthorized", tok, err)
		}
	}
}

func TestCheck_RejectsForeignSignature(t *testing.T) {
	t.Parallel()
	other := NewManager([]byte("other-key"), time.Hour, NewMemoryStore())
	tok, _, err := other.Issue(identA)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	m := newTestManager(time.Hour)
	if _, err := m.Check(tok); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("foreign token accepted: %v", err)
	}
}

func TestCheck_RejectsExpired(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	m := NewManager([]byte("k"), time.Minute, store)

	base := time.Now()
	m.now = func() time.Time { return base }
	store.now = m.now

	tok, _, err := m.Issue(identA)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.Check(tok); err != nil {
		t.Fatalf("Check before expiry: %v", err)
	}

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	store.now = m.now
	if _, err := m.Check(tok); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expired session accepted: %v", err)
	}
}

func TestCheck_RejectsRevokedButUnexpiredToken(t *testing.T) {
	t.Parallel()
	m := newTestManager(time.Hour)
	tok, sess, err := m.Issue(identA)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// Simulate server-side revocation without touching the token itself.
	m.store.Delete(sess.ID)
	if _, err := m.Check(tok); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("revoked session accepted: %v", err)
	}
}

func TestMemoryStore_PurgesExpired(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	m := NewManager([]byte("k"), time.Minute, store)

	base := time.Now()
	m.now = func() time.Time { return base }
	store.now = m.now

	_, sess, err := m.Issue(identA)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	store.now = func() time.Time { return base.Add(time.Hour) }
	if _, ok := store.Get(sess.ID); ok {
		t.Fatalf("expired session still retrievable")
	}
}
