package referral

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// sessionCookiePrefix keeps session-scoped cookies apart from persistent ones
// that share the same logical key.
const sessionCookiePrefix = "session_"

// CookieStore maps Store onto the cookies of a single HTTP exchange. Reads see
// the request's cookies overlaid with any writes made while handling it; writes
// become Set-Cookie headers, so they must happen before the response is written.
type CookieStore struct {
	w      http.ResponseWriter
	r      *http.Request
	secure bool
	now    func() time.Time

	mu      sync.Mutex
	overlay map[string]*string // nil value marks a cleared cookie
}

// NewCookieStore binds a store to one request/response pair. secure sets the
// Secure attribute on every cookie written.
func NewCookieStore(w http.ResponseWriter, r *http.Request, secure bool) *CookieStore {
	return &CookieStore{
		w:       w,
		r:       r,
		secure:  secure,
		now:     time.Now,
		overlay: make(map[string]*string),
	}
}

// GetSession returns the session cookie value for key
func (s *CookieStore) GetSession(key string) (string, bool) {
	return s.get(sessionCookiePrefix + key)
}

// SetSession writes a cookie without expiry, so the browser drops it when the
// session ends.
func (s *CookieStore) SetSession(key, value string) error {
	return s.set(s.cookie(sessionCookiePrefix+key, value), &value)
}

// GetPersistent returns the persistent cookie value for key
func (s *CookieStore) GetPersistent(key string) (string, bool) {
	return s.get(key)
}

// SetPersistent writes a cookie that the browser keeps for ttl
func (s *CookieStore) SetPersistent(key, value string, ttl time.Duration) error {
	c := s.cookie(key, value)
	c.MaxAge = int(ttl / time.Second)
	c.Expires = s.now().Add(ttl).UTC()
	return s.set(c, &value)
}

// ClearSession expires the session cookie for key
func (s *CookieStore) ClearSession(key string) error {
	return s.clear(sessionCookiePrefix + key)
}

// ClearPersistent expires the persistent cookie for key
func (s *CookieStore) ClearPersistent(key string) error {
	return s.clear(key)
}

func (s *CookieStore) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *CookieStore) get(name string) (string, bool) {
	s.mu.Lock()
	v, overridden := s.overlay[name]
	s.mu.Unlock()
	if overridden {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	c, err := s.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (s *CookieStore) set(c *http.Cookie, value *string) error {
	if err := c.Valid(); err != nil {
		return fmt.Errorf("invalid cookie %s: %w", c.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	http.SetCookie(s.w, c)
	s.overlay[c.Name] = value
	return nil
}

func (s *CookieStore) clear(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.overlay[name] = nil
	return nil
}
