package referral

import (
	"sync"
	"time"
)

// Store is the pair of client-side stores a referral code lives in. The
// session side lasts for one browsing session; the persistent side survives
// until its ttl elapses.
type Store interface {
	GetSession(key string) (string, bool)
	SetSession(key, value string) error
	GetPersistent(key string) (string, bool)
	SetPersistent(key, value string, ttl time.Duration) error
	ClearSession(key string) error
	ClearPersistent(key string) error
}

type persistentEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store. It backs tests and non-HTTP hosts.
type MemoryStore struct {
	mu         sync.RWMutex
	session    map[string]string
	persistent map[string]persistentEntry
	now        func() time.Time
	writeErr   error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		session:    make(map[string]string),
		persistent: make(map[string]persistentEntry),
		now:        time.Now,
	}
}

// SetClock replaces the time source used for persistent expiry
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailWrites makes every subsequent Set call return err. Pass nil to recover.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// GetSession returns the session-scoped value for key
func (s *MemoryStore) GetSession(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.session[key]
	return v, ok
}

// SetSession stores a session-scoped value
func (s *MemoryStore) SetSession(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.session[key] = value
	return nil
}

// GetPersistent returns the persistent value for key unless it has expired
func (s *MemoryStore) GetPersistent(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.persistent[key]
	if !ok || !s.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

// SetPersistent stores a value that expires after ttl
func (s *MemoryStore) SetPersistent(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.persistent[key] = persistentEntry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// ClearSession removes the session-scoped value for key
func (s *MemoryStore) ClearSession(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.session, key)
	return nil
}

// ClearPersistent removes the persistent value for key
func (s *MemoryStore) ClearPersistent(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.persistent, key)
	return nil
}
