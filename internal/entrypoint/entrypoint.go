// Package entrypoint wires the library application together and runs the
// HTTP server until it receives SIGINT or SIGTERM.
package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	dbaudit "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/database/users"
	http_controllers "github.com/mrlokans/librarian/internal/http"
	"github.com/mrlokans/librarian/internal/logger"
	"github.com/mrlokans/librarian/internal/scheduler"
	"github.com/mrlokans/librarian/internal/tasks"
)

// App holds every long-lived component of a running server.
type App struct {
	Router *gin.Engine

	cfg        *config.Config
	db         *database.Database
	audit      *audit.Service
	sessions   *auth.SessionManager
	taskClient *tasks.Client
	scheduler  *scheduler.AuditCleanupScheduler
	stopRouter func()
	cancel     context.CancelFunc
}

// NewApp opens the databases and builds the router. Nothing runs in the
// background until Start.
func NewApp(cfg *config.Config, version string) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	app := &App{cfg: cfg, db: db}

	app.audit = audit.NewService(dbaudit.NewRepository(db.DB))
	authService := auth.NewService(users.NewRepository(db.DB), cfg.Auth)

	sqlDB, err := db.DB.DB()
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to get SQL DB for sessions: %w", err)
	}
	app.sessions, err = auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	var csrfKey []byte
	if cfg.Auth.CSRFEnabled {
		secret := cfg.Auth.SessionSecret
		if secret == "" {
			secret, err = auth.GenerateSessionSecret()
			if err != nil {
				app.close()
				return nil, fmt.Errorf("failed to generate CSRF secret: %w", err)
			}
			logger.Log.Warn("Generated CSRF secret; set AUTH_SESSION_SECRET to keep forms valid across restarts")
		}
		csrfKey = auth.CSRFKey(secret)
	} else {
		logger.Log.Warn("CSRF protection is disabled")
	}

	var enqueuer scheduler.CleanupEnqueuer = directCleanup{cleaner: app.audit}
	if cfg.Tasks.Enabled {
		app.taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		app.taskClient.Register(tasks.NewCleanupAuditEventsQueue(app.audit))
		enqueuer = app.taskClient
	}
	app.scheduler = scheduler.NewAuditCleanupScheduler(enqueuer, cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays)

	if hasUsers, err := authService.HasUsers(); err == nil && !hasUsers {
		logger.Log.Info("No users yet. Visit /register or run 'librarian create-user' to add one.")
	}

	app.Router, app.stopRouter = http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       db,
		Books:          books.NewRepository(db.DB),
		Audit:          app.audit,
		AuthService:    authService,
		SessionManager: app.sessions,
		AuthConfig:     cfg.Auth,
		CSRFKey:        csrfKey,
		TemplatesPath:  cfg.UI.TemplatesPath,
		StaticPath:     cfg.UI.StaticPath,
		Version:        version,
	})

	return app, nil
}

// Start launches the task workers and the cleanup scheduler.
func (a *App) Start() error {
	var ctx context.Context
	ctx, a.cancel = context.WithCancel(context.Background())

	if a.taskClient != nil {
		go a.taskClient.Start(ctx)
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	return nil
}

// Shutdown stops background work and releases every resource. Safe to call
// without Start.
func (a *App) Shutdown(ctx context.Context) {
	a.scheduler.Stop()
	if a.taskClient != nil {
		a.taskClient.Stop(ctx)
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.stopRouter()
	a.audit.Wait()
	a.close()
}

func (a *App) close() {
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.taskClient != nil {
		if err := a.taskClient.Close(); err != nil {
			logger.Log.Errorw("Error closing task client", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		logger.Log.Errorw("Error closing database", "error", err)
	}
}

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts it down
// within the configured timeout and calls onShutdown with the same deadline.
func Serve(router http.Handler, cfg *config.Config, onShutdown func(ctx context.Context)) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Infow("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case sig := <-quit:
		logger.Log.Infow("Shutting down server", "signal", sig.String(), "timeout", timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if onShutdown != nil {
		onShutdown(ctx)
	}
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Log.Info("Server exiting")
	return nil
}

// Run builds the application from cfg and serves it.
func Run(cfg *config.Config, version string) error {
	logger.Log.Infow("Starting Librarian", "version", version)

	app, err := NewApp(cfg, version)
	if err != nil {
		return err
	}
	if err := app.Start(); err != nil {
		app.Shutdown(context.Background())
		return err
	}

	return Serve(app.Router, cfg, app.Shutdown)
}

// directCleanup runs audit retention inline when the task queue is disabled.
type directCleanup struct {
	cleaner tasks.AuditEventCleaner
}

func (d directCleanup) EnqueueAuditCleanup(retentionDays int) (string, error) {
	if retentionDays <= 0 {
		retentionDays = tasks.DefaultAuditRetentionDays
	}
	deleted, err := d.cleaner.DeleteOldEvents(time.Duration(retentionDays) * 24 * time.Hour)
	if err != nil {
		return "", fmt.Errorf("audit cleanup: %w", err)
	}
	logger.Log.Infow("Audit cleanup finished", "deleted", deleted, "retention_days", retentionDays)
	return "inline", nil
}
