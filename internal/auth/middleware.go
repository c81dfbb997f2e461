package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Login header names. Deliberately without underscores: some reverse
// proxies strip headers that contain them.
const (
	HeaderUserID   = "userid"
	HeaderUserPass = "userpass"
)

const principalContextKey = "principal"

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID   UserID
	Name string
	// SessionToken lets logout invalidate the session it arrived on.
	SessionToken string
}

// Middleware resolves session cookies to principals.
type Middleware struct {
	sessions *SessionManager
	users    *Table
}

func NewMiddleware(sessions *SessionManager, users *Table) *Middleware {
	return &Middleware{sessions: sessions, users: users}
}

// RequireAuth rejects requests without a valid session with 401.
// On success the principal is available via GetPrincipal.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := m.sessions.SessionFromRequest(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		info, ok := m.users.Lookup(session.UserID)
		if !ok {
			// Session outlived the user. Drop it.
			m.sessions.Delete(session.Token)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(principalContextKey, Principal{
			ID:           session.UserID,
			Name:         info.Name,
			SessionToken: session.Token,
		})
		c.Next()
	}
}

// GetPrincipal extracts the authenticated user from the request context.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	value, exists := c.Get(principalContextKey)
	if !exists {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}
