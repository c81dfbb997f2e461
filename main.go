package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/wcubed/rss-r/internal/auth"
	"github.com/wcubed/rss-r/internal/collection"
	"github.com/wcubed/rss-r/internal/config"
	"github.com/wcubed/rss-r/internal/fetch"
	"github.com/wcubed/rss-r/internal/handlers"
	"github.com/wcubed/rss-r/internal/metrics"
	"github.com/wcubed/rss-r/internal/persist"
	"github.com/wcubed/rss-r/internal/services"
)

func main() {
	persistenceDir := flag.String("persistence", persist.DefaultDir, "directory holding the persisted documents")
	flag.Parse()

	store := persist.NewStore(*persistenceDir)

	cfg := config.Default()
	store.LoadOrDefault(persist.AppConfigFile, &cfg)
	cfg.ApplyDefaults()
	generated, err := cfg.EnsureSessionKey()
	if err != nil {
		log.Fatal("Failed to initialize session key:", err)
	}
	if generated {
		log.Printf("Generated a new session master key")
	}
	if err := store.Save(persist.AppConfigFile, &cfg); err != nil {
		log.Printf("Could not save application config: %v", err)
	}

	users := auth.NewTable()
	store.LoadOrDefault(persist.AuthFile, users)
	if users.Len() == 0 {
		log.Printf("The user table is empty; add users with the useradmin tool before logging in")
	}
	if err := store.Save(persist.AuthFile, users); err != nil {
		log.Printf("Could not save auth table: %v", err)
	}

	registry := collection.NewRegistry()
	store.LoadOrDefault(persist.CollectionsFile, registry)

	collector := metrics.NewCollector()
	fetcher := fetch.New()
	refresh := services.NewRefreshService(registry, fetcher, collector)
	workers := services.NewWorkers(registry, refresh, store, collector, 0, 0)

	sessions := auth.NewSessionManager(cfg.SessionKey)
	authMiddleware := auth.NewMiddleware(sessions, users)
	loginLimiter := auth.NewRateLimiter(rate.Every(time.Second), 5)

	authHandler := handlers.NewAuthHandler(users, sessions)
	feedHandler := handlers.NewFeedHandler(registry, refresh, fetcher)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// The route prefix absorbs path-rewriting reverse proxies; with an
	// empty prefix the group is a no-op.
	root := r.Group(cfg.RoutePrefix)
	root.GET("/metrics", gin.WrapH(collector.Handler()))

	apiGroup := root.Group("/api")
	apiGroup.POST("/login", auth.RateLimitMiddleware(loginLimiter), authHandler.Login)

	authed := apiGroup.Group("", authMiddleware.RequireAuth())
	{
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/test_auth_cookie", authHandler.TestAuthCookie)
		authed.POST("/is_url_an_rss_feed", feedHandler.IsURLAnRSSFeed)
		authed.POST("/add_feed", feedHandler.AddFeed)
		authed.POST("/feeds", feedHandler.Feeds)
		authed.POST("/set_entry_read", feedHandler.SetEntryRead)
		authed.POST("/set_feed_info", feedHandler.SetFeedInfo)
	}

	if err := workers.Start(); err != nil {
		log.Fatal("Failed to start background workers:", err)
	}

	srv := &http.Server{
		Addr:    cfg.BindAddr(),
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on http://%s:%d%s", cfg.Hostname, cfg.Port, cfg.RoutePrefix)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown of http server: %v", err)
	}

	// Workers first, then one unconditional snapshot so nothing mutated
	// since the last dirty check is lost.
	workers.Stop()
	workers.SnapshotNow()
	log.Printf("Shutdown complete")
}
