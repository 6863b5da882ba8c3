package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mrlokans/flashshelf/internal/addbook"
	"github.com/mrlokans/flashshelf/internal/auth"
	"github.com/mrlokans/flashshelf/internal/backend"
	"github.com/mrlokans/flashshelf/internal/config"
	"github.com/mrlokans/flashshelf/internal/database"
	http_controllers "github.com/mrlokans/flashshelf/internal/http"
	"github.com/mrlokans/flashshelf/internal/library"
	"github.com/mrlokans/flashshelf/internal/metadata"
	"github.com/mrlokans/flashshelf/internal/scheduler"
	"github.com/mrlokans/flashshelf/internal/tags"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill -9 can't be caught, so only INT and TERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work before the listener so open sockets see the feed close.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	logCloser := setupLogging(cfg.Log)
	defer logCloser.Close()

	log.Printf("Starting Flash Shelf v%s", version)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Sessions always live in SQLite, books only with BACKEND=local.
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	be, err := backend.Open(cfg, db)
	if err != nil {
		log.Fatalf("Failed to open backend: %v", err)
	}

	lib := library.New(be.Store, be.Feed)

	suggester := tags.NewSuggester(cfg.Tags)
	if suggester == nil {
		log.Printf("Tag suggestion disabled (no API key for provider %q)", cfg.Tags.Provider)
	}

	forms := addbook.NewRegistry(addbook.Deps{
		Lookup:    metadata.NewDefaultChain(cfg.Metadata),
		Suggester: suggester,
		Bucket:    be.Bucket,
		Books:     lib,
	})

	passcodeHash, err := auth.ResolvePasscodeHash(cfg.Auth.Passcode, cfg.Auth.PasscodeHash, 0)
	if err != nil {
		log.Fatalf("Failed to prepare passcode: %v", err)
	}

	sqlDB, err := db.SQL()
	if err != nil {
		log.Fatalf("Failed to get SQL DB for sessions: %v", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	limiter := auth.NewRateLimiter(auth.RateLimitConfigFrom(cfg.Auth))
	gate := auth.NewGate(passcodeHash, sessionManager, limiter, cfg.Auth.ErrorWindow)

	var csrfSecret []byte
	if cfg.Auth.SessionSecret != "" {
		csrfSecret, err = hex.DecodeString(cfg.Auth.SessionSecret)
		if err != nil {
			// Not hex, use as raw bytes
			csrfSecret = []byte(cfg.Auth.SessionSecret)
		}
	} else {
		secret, err := auth.GenerateSessionSecret()
		if err != nil {
			log.Fatalf("Failed to generate CSRF secret: %v", err)
		}
		csrfSecret, _ = hex.DecodeString(secret)
		log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
	}

	var connectOrigins []string
	if be.Origin != "" {
		connectOrigins = append(connectOrigins, be.Origin)
	}

	routerCfg := http_controllers.RouterConfig{
		Books:          lib,
		Forms:          forms,
		Database:       db,
		Gate:           gate,
		SessionManager: sessionManager,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		ConnectOrigins: connectOrigins,
		StaticPath:     cfg.UI.StaticPath,
		CoversDir:      be.CoversDir,
		CoversURLPath:  cfg.Covers.BaseURL,
		Version:        version,
	}

	router := http_controllers.NewRouter(routerCfg)

	// The scheduler owns the realtime subscription and the idle form sweep.
	sched := scheduler.New(lib, forms, cfg.Sync)
	schedCtx, schedCancel := context.WithCancel(context.Background())
	if err := sched.Start(schedCtx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	onShutdown := func(ctx context.Context) {
		schedCancel()
		sched.Stop()
		forms.CloseAll()
		lib.Close()
		limiter.Stop()
	}

	Serve(router, cfg, onShutdown)
}
