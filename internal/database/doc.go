// Package database provides the data access layer for the application.
//
// database.go owns the connection and migrations. Each table gets a
// sub-package with a Repository over *gorm.DB:
//
//	database/
//	├── database.go  # Connection setup, migrations
//	├── books/       # Catalogue and borrowed flag
//	├── users/       # Registered users
//	└── audit/       # Audit trail
//
// Usage:
//
//	db, err := database.NewDatabase("./library.db")
//	booksRepo := books.NewRepository(db.DB)
//	book, err := booksRepo.Borrow(id)
package database
