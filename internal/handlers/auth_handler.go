package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wcubed/rss-r/internal/auth"
)

// AuthHandler serves login, logout and the cookie test endpoint.
type AuthHandler struct {
	users    *auth.Table
	sessions *auth.SessionManager
}

func NewAuthHandler(users *auth.Table, sessions *auth.SessionManager) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions}
}

// Login reads the credential headers, validates them against the table
// and binds a new session to the caller via the auth cookie.
func (ah *AuthHandler) Login(c *gin.Context) {
	name := c.GetHeader(auth.HeaderUserID)
	password := c.GetHeader(auth.HeaderUserPass)
	if name == "" || password == "" {
		log.Printf("Login attempt without %s and %s headers", auth.HeaderUserID, auth.HeaderUserPass)
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing credential headers"})
		return
	}

	id, ok := ah.users.ValidatePassword(name, password)
	if !ok {
		log.Printf("Failed login for user %q", name)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	session, err := ah.sessions.CreateSession(id)
	if err != nil {
		log.Printf("Could not create session for user %q: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	ah.sessions.SetSessionCookie(c.Writer, session)
	log.Printf("User %q logged in", name)
	c.Status(http.StatusOK)
}

// Logout invalidates the session the request arrived on.
func (ah *AuthHandler) Logout(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	log.Printf("Logging out %q", principal.Name)
	ah.sessions.Delete(principal.SessionToken)
	ah.sessions.ClearSessionCookie(c.Writer)
	c.Status(http.StatusOK)
}

// TestAuthCookie succeeds iff the session cookie still resolves. Having
// a dedicated side-effect-free endpoint for this is neater than clients
// poking an arbitrary authenticated route.
func (ah *AuthHandler) TestAuthCookie(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	log.Printf("User %q connected with valid auth cookie", principal.Name)
	c.Status(http.StatusOK)
}
