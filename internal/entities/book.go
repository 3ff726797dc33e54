package entities

import "time"

// Book is a catalogue entry. IsBorrowed is the only availability state;
// who holds the book is recorded in the audit trail, not here.
type Book struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:100;not null" json:"title"`
	IsBorrowed bool      `gorm:"index;not null;default:false" json:"is_borrowed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
