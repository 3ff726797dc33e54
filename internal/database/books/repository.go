// Package books provides database operations for the book catalogue.
package books

import (
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/entities"
)

// MaxTitleLength matches the width of the books.title column.
const MaxTitleLength = 100

var (
	ErrBookNotFound    = errors.New("book not found")
	ErrTitleRequired   = errors.New("title is required")
	ErrTitleTooLong    = errors.New("title must be at most 100 characters")
	ErrAlreadyBorrowed = errors.New("book is already borrowed")
	ErrNotBorrowed     = errors.New("book is not borrowed")
)

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateBook adds a donated book to the catalogue. New books are available.
func (r *Repository) CreateBook(title string) (*entities.Book, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, ErrTitleTooLong
	}

	book := &entities.Book{Title: title}
	if err := r.db.Create(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

// GetBookByID retrieves a book, returning ErrBookNotFound if it doesn't exist.
func (r *Repository) GetBookByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.First(&book, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}

// GetAllBooks returns the whole catalogue ordered by ID.
func (r *Repository) GetAllBooks() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Order("id ASC").Find(&books).Error
	return books, err
}

// GetBorrowedBooks returns books currently on loan.
func (r *Repository) GetBorrowedBooks() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Where("is_borrowed = ?", true).Order("id ASC").Find(&books).Error
	return books, err
}

// Borrow marks an available book as borrowed.
// The returned book is non-nil whenever the book exists.
func (r *Repository) Borrow(id uint) (*entities.Book, error) {
	return r.setBorrowed(id, true, ErrAlreadyBorrowed)
}

// Return marks a borrowed book as available again.
func (r *Repository) Return(id uint) (*entities.Book, error) {
	return r.setBorrowed(id, false, ErrNotBorrowed)
}

// setBorrowed flips the flag only if it currently holds the opposite value,
// so concurrent borrowers of the same copy cannot both succeed.
func (r *Repository) setBorrowed(id uint, borrowed bool, errSameState error) (*entities.Book, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND is_borrowed = ?", id, !borrowed).
		Update("is_borrowed", borrowed)
	if result.Error != nil {
		return nil, result.Error
	}

	book, err := r.GetBookByID(id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return book, errSameState
	}
	return book, nil
}

// GetStats returns the catalogue size and the number of books on loan.
func (r *Repository) GetStats() (total int64, borrowed int64, err error) {
	err = r.db.Model(&entities.Book{}).Count(&total).Error
	if err != nil {
		return
	}
	err = r.db.Model(&entities.Book{}).Where("is_borrowed = ?", true).Count(&borrowed).Error
	return
}
