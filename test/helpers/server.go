// Package helpers assembles a full in-process server for integration
// tests.
package helpers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/wcubed/rss-r/internal/auth"
	"github.com/wcubed/rss-r/internal/collection"
	"github.com/wcubed/rss-r/internal/fetch"
	"github.com/wcubed/rss-r/internal/handlers"
	"github.com/wcubed/rss-r/internal/persist"
	"github.com/wcubed/rss-r/internal/services"
)

// TestServer is the wired application with direct access to its state.
type TestServer struct {
	Router   *gin.Engine
	Registry *collection.Registry
	Users    *auth.Table
	Sessions *auth.SessionManager
	Store    *persist.Store
	Refresh  *services.RefreshService
	Workers  *services.Workers
}

// SetupTestServer wires the full stack against a temporary persistence
// directory. Background workers are built but not started; tests drive
// snapshots and refreshes explicitly.
func SetupTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := collection.NewRegistry()
	users := auth.NewTable()
	sessions := auth.NewSessionManager([]byte("integration-test-session-key-32b"))
	store := persist.NewStore(t.TempDir())

	// The production client refuses private addresses; tests talk to
	// httptest servers on loopback.
	fetcher := fetch.NewWithClient(http.DefaultClient)
	refresh := services.NewRefreshService(registry, fetcher, nil)
	workers := services.NewWorkers(registry, refresh, store, nil, 0, 0)

	authHandler := handlers.NewAuthHandler(users, sessions)
	feedHandler := handlers.NewFeedHandler(registry, refresh, fetcher)
	middleware := auth.NewMiddleware(sessions, users)

	router := gin.New()
	apiGroup := router.Group("/api")
	apiGroup.POST("/login", authHandler.Login)

	authed := apiGroup.Group("")
	authed.Use(middleware.RequireAuth())
	authed.POST("/logout", authHandler.Logout)
	authed.POST("/test_auth_cookie", authHandler.TestAuthCookie)
	authed.POST("/is_url_an_rss_feed", feedHandler.IsURLAnRSSFeed)
	authed.POST("/add_feed", feedHandler.AddFeed)
	authed.POST("/feeds", feedHandler.Feeds)
	authed.POST("/set_entry_read", feedHandler.SetEntryRead)
	authed.POST("/set_feed_info", feedHandler.SetFeedInfo)

	return &TestServer{
		Router:   router,
		Registry: registry,
		Users:    users,
		Sessions: sessions,
		Store:    store,
		Refresh:  refresh,
		Workers:  workers,
	}
}

// CreateTestUser registers a user and returns the session cookie of a
// fresh login.
func (ts *TestServer) CreateTestUser(t *testing.T, name, password string) *http.Cookie {
	t.Helper()
	if _, err := ts.Users.AddUser(name, password); err != nil {
		t.Fatalf("Failed to create user %q: %v", name, err)
	}
	return ts.Login(t, name, password)
}

// Login performs the header-based login and returns the session cookie.
func (ts *TestServer) Login(t *testing.T, name, password string) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.Header.Set(auth.HeaderUserID, name)
	req.Header.Set(auth.HeaderUserPass, password)
	rec := httptest.NewRecorder()
	ts.Router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Login for %q failed with status %d: %s", name, rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("Login for %q returned no session cookie", name)
	return nil
}

// Post sends an authenticated JSON request.
func (ts *TestServer) Post(t *testing.T, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.Router.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals a response body or fails the test.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Could not decode response %q: %v", rec.Body.String(), err)
	}
}

// ServeFeed runs an upstream whose body the test can swap at runtime.
type ServeFeed struct {
	Server *httptest.Server

	mu   sync.Mutex
	body string
}

func NewServeFeed(t *testing.T, body string) *ServeFeed {
	t.Helper()
	sf := &ServeFeed{body: body}
	sf.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sf.mu.Lock()
		body := sf.body
		sf.mu.Unlock()
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(sf.Server.Close)
	return sf
}

// SetBody swaps the document the upstream serves.
func (sf *ServeFeed) SetBody(body string) {
	sf.mu.Lock()
	sf.body = body
	sf.mu.Unlock()
}

// URL is the upstream address.
func (sf *ServeFeed) URL() string {
	return sf.Server.URL
}
