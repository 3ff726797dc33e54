package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/logger"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// The returned function releases background resources held by the routes
// and must be called on shutdown.
func NewRouter(cfg RouterConfig) (*gin.Engine, func()) {
	router := gin.New()
	router.Use(logger.RequestID())
	router.Use(logger.AccessLog())
	router.Use(gin.Recovery())

	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.AuthConfig.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFKey) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFKey, cfg.AuthConfig.SecureCookies))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	router.Use(cfg.SessionManager.SessionLoadSave())
	router.Use(auth.NewMiddleware(cfg.AuthService, cfg.SessionManager).Handler())

	// Inject auth data for templates
	router.Use(AuthContextMiddleware(cfg.SessionManager))

	if cfg.StaticPath != "" {
		router.Static("/static", cfg.StaticPath)
	}

	pages := newPageRenderer(cfg.TemplatesPath, cfg.SessionManager)
	router.NoRoute(pages.notFound)

	// Health endpoints
	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", ping)

	authController := auth.NewAuthController(cfg.AuthService, cfg.SessionManager, cfg.TemplatesPath, cfg.AuthConfig, cfg.Audit)
	authController.RegisterRoutes(router)

	library := NewLibraryController(cfg.Books, cfg.Audit, cfg.SessionManager, pages)

	// UI routes
	router.GET("/", library.Home)
	router.GET("/books", library.ListBooks)
	router.GET("/donate", library.DonatePage)
	router.POST("/donate", library.Donate)
	router.GET("/borrow/:id", library.BorrowPage)
	router.POST("/borrow/:id", library.Borrow)
	router.GET("/return/:id", library.ReturnPage)
	router.POST("/return/:id", library.Return)
	router.GET("/track", library.Track)

	// Books API endpoints
	router.GET("/api/books", library.GetAllBooks)
	router.GET("/api/books/borrowed", library.GetBorrowedBooks)
	router.GET("/api/books/:id", library.GetBook)

	if cfg.Audit != nil {
		auditController := NewAuditController(cfg.Audit, cfg.Books)
		router.GET("/api/audit", auditController.GetAuditEvents)
		router.GET("/api/books/:id/history", auditController.GetBookHistory)
	}

	return router, authController.Stop
}
