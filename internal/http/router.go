package http

import (
	"log"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/flashshelf/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(auth.SecurityHeadersMiddleware(cfg.ConnectOrigins...))

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies))
	}

	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	if cfg.Gate != nil && cfg.SessionManager != nil {
		router.Use(auth.NewMiddleware(cfg.SessionManager).Handler())

		gateController := auth.NewGateController(cfg.Gate, cfg.SessionManager)
		router.GET("/api/session", gateController.Session)
		router.POST("/api/unlock", gateController.Unlock)
		router.POST("/api/lock", gateController.Lock)
	}

	health := NewHealthController(cfg.Database, cfg.Books, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", Ping)

	if cfg.Books != nil {
		books := NewBooksController(cfg.Books)
		router.GET("/api/books", books.GetBooks)
		router.GET("/api/books/ws", books.StreamBooks)
		router.PATCH("/api/books/:id", books.UpdateBook)
		router.DELETE("/api/books/:id", books.DeleteBook)
	}

	if cfg.Forms != nil {
		forms := NewFormsController(cfg.Forms, cfg.MaxUploadBytes)
		router.POST("/api/forms", forms.Open)
		router.GET("/api/forms/:id", forms.Get)
		router.PATCH("/api/forms/:id", forms.Patch)
		router.DELETE("/api/forms/:id", forms.Close)
		router.POST("/api/forms/:id/lookup", forms.Lookup)
		router.POST("/api/forms/:id/scan", forms.StartScan)
		router.DELETE("/api/forms/:id/scan", forms.StopScan)
		router.POST("/api/forms/:id/scan/detect", forms.Detect)
		router.POST("/api/forms/:id/cover", forms.UploadCover)
		router.POST("/api/forms/:id/submit", forms.Submit)
	}

	if cfg.CoversDir != "" {
		path := cfg.CoversURLPath
		if path == "" {
			path = "/covers"
		}
		router.Static(path, cfg.CoversDir)
	}

	registerUI(router, cfg.StaticPath)

	return router
}

// registerUI serves the front-end bundle when it has been built.
func registerUI(router *gin.Engine, staticPath string) {
	if staticPath == "" {
		return
	}
	index := filepath.Join(staticPath, "index.html")
	if _, err := os.Stat(index); err != nil {
		log.Printf("UI bundle not found at %s, serving API only", staticPath)
		return
	}
	router.Static("/static", staticPath)
	router.StaticFile("/", index)
}
