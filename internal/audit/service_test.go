package audit

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	auditRepo "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return NewService(auditRepo.NewRepository(db)), db
}

func TestService_LogAsync(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		UserID:    1,
		EventType: entities.AuditEventAuth,
		Action:    "login",
		Status:    entities.AuditStatusSuccess,
	}

	svc.LogAsync(event)
	svc.Wait()

	var saved entities.AuditEvent
	err := db.First(&saved, event.ID).Error
	require.NoError(t, err)
	assert.Equal(t, "login", saved.Action)
}

func TestService_LogAuth(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAuth(1, "login", "10.0.0.1", "Mozilla/5.0", true)
	svc.LogAuth(0, "login_failed", "10.0.0.2", strings.Repeat("x", 600), false)
	svc.Wait()

	var ok entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "login").First(&ok).Error)
	assert.Equal(t, entities.AuditStatusSuccess, ok.Status)
	assert.Equal(t, entities.AuditEventAuth, ok.EventType)
	assert.Equal(t, "10.0.0.1", ok.IPAddress)

	var failed entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "login_failed").First(&failed).Error)
	assert.Equal(t, entities.AuditStatusFailed, failed.Status)
	assert.Len(t, failed.UserAgent, 500)
	assert.True(t, strings.HasSuffix(failed.UserAgent, "..."))
}

func TestService_LogCirculation(t *testing.T) {
	svc, db := setupTestService(t)
	book := &entities.Book{ID: 42, Title: "The Hobbit"}

	// Wait between writes so IDs follow call order.
	svc.LogCirculation(7, ActionBorrow, book, true)
	svc.Wait()
	svc.LogCirculation(8, ActionBorrow, book, false)
	svc.Wait()
	svc.LogCirculation(7, ActionReturn, book, true)
	svc.Wait()

	var events []entities.AuditEvent
	require.NoError(t, db.Order("id ASC").Find(&events).Error)
	require.Len(t, events, 3)

	assert.Equal(t, entities.AuditEventCirculation, events[0].EventType)
	assert.Equal(t, "Borrowed: The Hobbit", events[0].Description)
	require.NotNil(t, events[0].EntityID)
	assert.Equal(t, uint(42), *events[0].EntityID)

	assert.Equal(t, entities.AuditStatusFailed, events[1].Status)
	assert.Equal(t, "Returned: The Hobbit", events[2].Description)

	history, total, err := svc.GetBookHistory(42, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, history, 3)
}

func TestService_LogDonation(t *testing.T) {
	svc, _ := setupTestService(t)

	svc.LogDonation(3, &entities.Book{ID: 1, Title: "Dune"})
	svc.Wait()

	events, total, err := svc.GetEvents(3, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, entities.AuditEventDonation, events[0].EventType)
	assert.Equal(t, ActionDonate, events[0].Action)
	assert.Equal(t, "Donated: Dune", events[0].Description)
}

func TestService_DeleteOldEvents(t *testing.T) {
	svc, db := setupTestService(t)

	old := &entities.AuditEvent{Action: "old", CreatedAt: time.Now().Add(-100 * 24 * time.Hour)}
	recent := &entities.AuditEvent{Action: "recent"}
	svc.LogAsync(old)
	svc.LogAsync(recent)
	svc.Wait()

	deleted, err := svc.DeleteOldEvents(90 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var count int64
	db.Model(&entities.AuditEvent{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))

	// "é" is two bytes; a byte cut at 7 would land mid-rune.
	got := truncate(strings.Repeat("é", 10), 10)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "ééé...", got)
	assert.LessOrEqual(t, len(got), 10)
}

func TestService_LogAuth_MultibyteUserAgent(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAuth(1, "login", "10.0.0.1", strings.Repeat("日本", 200), true)
	svc.Wait()

	var saved entities.AuditEvent
	require.NoError(t, db.First(&saved).Error)
	assert.True(t, utf8.ValidString(saved.UserAgent))
	assert.LessOrEqual(t, len(saved.UserAgent), 500)
}
