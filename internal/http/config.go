package http

import (
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping() error
}

// BookStore is the catalogue as seen by the HTTP layer.
// *books.Repository satisfies it.
type BookStore interface {
	CreateBook(title string) (*entities.Book, error)
	GetBookByID(id uint) (*entities.Book, error)
	GetAllBooks() ([]entities.Book, error)
	GetBorrowedBooks() ([]entities.Book, error)
	Borrow(id uint) (*entities.Book, error)
	Return(id uint) (*entities.Book, error)
	GetStats() (total int64, borrowed int64, err error)
}

// AuditService records and reads back the audit trail.
// *audit.Service satisfies it.
type AuditService interface {
	auth.AuditLogger
	LogCirculation(userID uint, action string, book *entities.Book, success bool)
	LogDonation(userID uint, book *entities.Book)
	GetEvents(userID uint, limit, offset int) ([]entities.AuditEvent, int64, error)
	GetBookHistory(bookID uint, limit, offset int) ([]entities.AuditEvent, int64, error)
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database Pinger
	Books    BookStore
	Audit    AuditService

	// Authentication
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthConfig     config.Auth

	// CSRFKey enables gorilla/csrf when non-empty.
	CSRFKey []byte

	// UI paths. Without templates every page renders as JSON.
	TemplatesPath string
	StaticPath    string

	// Application info
	Version string
}
