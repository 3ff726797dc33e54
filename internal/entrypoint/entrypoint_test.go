package entrypoint

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/tasks"
)

func testConfig(t *testing.T, tasksEnabled bool) *config.Config {
	t.Helper()
	gin.SetMode(gin.TestMode)

	return &config.Config{
		Global:   config.Global{ShutdownTimeoutInSeconds: 1},
		Database: config.Database{Path: filepath.Join(t.TempDir(), "library.db")},
		Auth: config.Auth{
			SessionLifetime:  time.Hour,
			BcryptCost:       bcrypt.MinCost,
			CSRFEnabled:      true,
			MaxLoginAttempts: 5,
			RateLimitWindow:  time.Minute,
			LockoutDuration:  time.Minute,
		},
		Audit: config.Audit{RetentionDays: 30, CleanupSchedule: "0 3 * * *"},
		Tasks: config.Tasks{
			Enabled:         tasksEnabled,
			Workers:         1,
			ReleaseAfter:    time.Minute,
			CleanupInterval: time.Hour,
		},
	}
}

func TestNewApp(t *testing.T) {
	for _, tasksEnabled := range []bool{true, false} {
		name := "tasks disabled"
		if tasksEnabled {
			name = "tasks enabled"
		}

		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t, tasksEnabled)

			app, err := NewApp(cfg, "test")
			require.NoError(t, err)
			require.NoError(t, app.Start())
			assert.True(t, app.scheduler.IsRunning())

			w := httptest.NewRecorder()
			app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"version": "test"`)

			w = httptest.NewRecorder()
			app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books", nil))
			assert.Equal(t, http.StatusFound, w.Code)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			app.Shutdown(ctx)
			assert.False(t, app.scheduler.IsRunning())

			_, err = os.Stat(tasks.DBPath(cfg.Database.Path))
			assert.Equal(t, tasksEnabled, err == nil)
		})
	}
}

func TestNewApp_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.Audit.CleanupSchedule = "every day"

	app, err := NewApp(cfg, "test")
	require.NoError(t, err)
	defer app.Shutdown(context.Background())

	assert.Error(t, app.Start())
}

func TestNewApp_BadDatabasePath(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.Database.Path = filepath.Join(t.TempDir(), "missing", "dir", "library.db")

	_, err := NewApp(cfg, "test")
	assert.Error(t, err)
}

type stubCleaner struct {
	retention time.Duration
	err       error
}

func (s *stubCleaner) DeleteOldEvents(retention time.Duration) (int64, error) {
	s.retention = retention
	return 3, s.err
}

func TestDirectCleanup(t *testing.T) {
	t.Run("uses retention days", func(t *testing.T) {
		cleaner := &stubCleaner{}
		id, err := directCleanup{cleaner: cleaner}.EnqueueAuditCleanup(7)
		require.NoError(t, err)
		assert.Equal(t, "inline", id)
		assert.Equal(t, 7*24*time.Hour, cleaner.retention)
	})

	t.Run("defaults non-positive retention", func(t *testing.T) {
		cleaner := &stubCleaner{}
		_, err := directCleanup{cleaner: cleaner}.EnqueueAuditCleanup(0)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(tasks.DefaultAuditRetentionDays)*24*time.Hour, cleaner.retention)
	})

	t.Run("propagates errors", func(t *testing.T) {
		cleaner := &stubCleaner{err: errors.New("locked")}
		_, err := directCleanup{cleaner: cleaner}.EnqueueAuditCleanup(7)
		assert.ErrorContains(t, err, "locked")
	})
}
