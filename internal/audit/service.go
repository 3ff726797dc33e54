// Package audit records who did what in the library: logins, registrations,
// borrows, returns and donations. Writes are asynchronous so a slow disk
// never delays a page.
package audit

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/logger"
)

// Circulation actions.
const (
	ActionBorrow = "book_borrow"
	ActionReturn = "book_return"
	ActionDonate = "book_donate"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			logger.Log.Errorw("Failed to log audit event", "action", event.Action, "error", err)
		}
	}()
}

// Wait blocks until every event queued with LogAsync has been written.
func (s *Service) Wait() {
	s.pending.Wait()
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(userID uint, action string, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		UserID:     userID,
		EventType:  entities.AuditEventAuth,
		Action:     action,
		EntityType: "user",
		IPAddress:  ipAddr,
		UserAgent:  truncate(userAgent, 500),
		Status:     entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogCirculation records a borrow or return. A failed status means the
// request was refused because the book was already in the requested state.
func (s *Service) LogCirculation(userID uint, action string, book *entities.Book, success bool) {
	verb := "Borrowed"
	if action == ActionReturn {
		verb = "Returned"
	}

	bookID := book.ID
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventCirculation,
		Action:      action,
		Description: truncate(fmt.Sprintf("%s: %s", verb, book.Title), 500),
		EntityType:  "book",
		EntityID:    &bookID,
		Status:      entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogDonation records a new book entering the catalogue.
func (s *Service) LogDonation(userID uint, book *entities.Book) {
	bookID := book.ID
	s.LogAsync(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventDonation,
		Action:      ActionDonate,
		Description: truncate("Donated: "+book.Title, 500),
		EntityType:  "book",
		EntityID:    &bookID,
		Status:      entities.AuditStatusSuccess,
	})
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(userID uint, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(userID, limit, offset)
}

// GetBookHistory retrieves the circulation history of one book.
func (s *Service) GetBookHistory(bookID uint, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEventsForBook(bookID, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

// truncate shortens s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
