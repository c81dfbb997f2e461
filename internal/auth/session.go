package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// CookieName is the session cookie. The value is the session token plus
// an HMAC signature keyed by the configured session key, so a restarted
// server with a different key rejects stale cookies outright.
const CookieName = "auth_id"

// SessionTTL is the maximum time a login cookie stays valid. After this
// the user has to log in again.
const SessionTTL = 14 * 24 * time.Hour

const cleanupInterval = time.Hour

// Session binds a server-issued token to a user for a limited time.
type Session struct {
	Token     string
	UserID    UserID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionManager issues, resolves and expires sessions. Sessions live in
// memory only: a restart logs everyone out.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	key      []byte
}

// NewSessionManager returns a manager signing cookies with the given
// master key and starts the hourly expiry sweep.
func NewSessionManager(key []byte) *SessionManager {
	sm := &SessionManager{
		sessions: make(map[string]*Session),
		key:      key,
	}
	go sm.cleanupExpiredSessions()
	return sm
}

// CreateSession issues a fresh session for the user.
func (sm *SessionManager) CreateSession(id UserID) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	now := time.Now()
	session := &Session{
		Token:     token,
		UserID:    id,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}

	sm.mu.Lock()
	sm.sessions[token] = session
	sm.mu.Unlock()

	return session, nil
}

// Resolve maps a cookie value back to a live session. It verifies the
// signature before consulting the session map, then checks expiry.
func (sm *SessionManager) Resolve(cookieValue string) (*Session, bool) {
	token, ok := sm.verify(cookieValue)
	if !ok {
		return nil, false
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[token]
	if !ok {
		return nil, false
	}
	if time.Now().After(session.ExpiresAt) {
		delete(sm.sessions, token)
		return nil, false
	}
	return session, true
}

// Delete invalidates a session. Used by logout.
func (sm *SessionManager) Delete(token string) {
	sm.mu.Lock()
	delete(sm.sessions, token)
	sm.mu.Unlock()
}

// CookieValue returns the signed wire form of a session token.
func (sm *SessionManager) CookieValue(session *Session) string {
	return session.Token + "." + sm.sign(session.Token)
}

// SetSessionCookie attaches the session to the response. Secure,
// HttpOnly and SameSite=Strict: the cookie is only for this origin, only
// over TLS, and invisible to scripts.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sm.CookieValue(session),
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// ClearSessionCookie expires the cookie on the client.
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// SessionFromRequest resolves the request's session cookie, if any.
func (sm *SessionManager) SessionFromRequest(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, false
	}
	return sm.Resolve(cookie.Value)
}

func (sm *SessionManager) sign(token string) string {
	mac := hmac.New(sha256.New, sm.key)
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (sm *SessionManager) verify(cookieValue string) (string, bool) {
	token, signature, ok := strings.Cut(cookieValue, ".")
	if !ok {
		return "", false
	}
	expected := sm.sign(token)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return "", false
	}
	return token, true
}

func (sm *SessionManager) cleanupExpiredSessions() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		sm.mu.Lock()
		for token, session := range sm.sessions {
			if now.After(session.ExpiresAt) {
				delete(sm.sessions, token)
			}
		}
		sm.mu.Unlock()
	}
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
