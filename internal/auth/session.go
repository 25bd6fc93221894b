package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"
)

// SessionCookieName is the name of the login session cookie.
const SessionCookieName = "l2vpn_session"

// Session is the signed-in user as stored in the encrypted cookie.
type Session struct {
	Subject     string    `json:"sub"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	WorkgroupID int       `json:"workgroup_id"`
	IsAdmin     bool      `json:"is_admin"`
	ReadOnly    bool      `json:"read_only"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Editable reports whether the user may change circuits. Admins can edit
// even when their workgroup membership is read-only.
func (s *Session) Editable() bool {
	return s != nil && (s.IsAdmin || !s.ReadOnly)
}

// SessionManager handles encrypted session cookies.
type SessionManager struct {
	sealer   *sealer
	duration time.Duration
	now      func() time.Time
}

// NewSessionManager creates a session manager. key must be 32 bytes.
func NewSessionManager(key []byte, duration time.Duration, secure bool) (*SessionManager, error) {
	s, err := newSealer(key, secure)
	if err != nil {
		return nil, err
	}
	return &SessionManager{sealer: s, duration: duration, now: time.Now}, nil
}

// Create stamps the session and writes it as a cookie.
func (sm *SessionManager) Create(w http.ResponseWriter, session *Session) error {
	session.CreatedAt = sm.now()
	session.ExpiresAt = session.CreatedAt.Add(sm.duration)
	return sm.sealer.write(w, SessionCookieName, session, int(sm.duration.Seconds()))
}

// Get returns the session from the request, failing when it is missing,
// tampered with or expired.
func (sm *SessionManager) Get(r *http.Request) (*Session, error) {
	var session Session
	if err := sm.sealer.read(r, SessionCookieName, &session); err != nil {
		return nil, err
	}
	if sm.now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("session expired")
	}
	return &session, nil
}

// Clear clears the session cookie.
func (sm *SessionManager) Clear(w http.ResponseWriter) {
	sm.sealer.clear(w, SessionCookieName)
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
