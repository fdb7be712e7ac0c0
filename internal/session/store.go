// Package session issues, validates, and revokes session tokens bound to an
// authenticated identity.
package session

import (
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/degreelab/planvault/internal/model"
)

// Store tracks live sessions by token ID so they can be revoked before expiry.
type Store interface {
	Save(s model.Session)
	Get(id uuid.UUID) (model.Session, bool)
	Delete(id uuid.UUID)
}

// MemoryStore is a mutex-guarded in-process session store. Sessions are
// ephemeral, so process-local state is sufficient.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]model.Session
	now      func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]model.Session), now: time.Now}
}

// Save records a session and opportunistically drops expired ones.
func (s *MemoryStore) Save(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, old := range s.sessions {
		if old.Expired(now) {
			delete(s.sessions, id)
		}
	}
	s.sessions[sess.ID] = sess
}

// Get returns a live session; expired entries are purged and reported absent.
func (s *MemoryStore) Get(id uuid.UUID) (model.Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return model.Session{}, false
	}
	if sess.Expired(s.now()) {
		s.Delete(id)
		return model.Session{}, false
	}
	return sess, true
}

// Delete removes a session; removing an absent session is a no-op.
func (s *MemoryStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
