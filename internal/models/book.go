package models

import "time"

type Book struct {
	ID            int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Title         string     `json:"title" gorm:"not null;index"`
	Author        string     `json:"author" gorm:"not null"`
	PublishedYear *int       `json:"published_year,omitempty"`
	Publisher     *string    `json:"publisher,omitempty"`
	Genre         *string    `json:"genre,omitempty" gorm:"index"`
	Description   *string    `json:"description,omitempty"`
	TotalCopies   int        `json:"total_copies" gorm:"not null;default:0"`
	// AvailableCopies tracks stock left after active loans.
	// Invariant: 0 <= available_copies <= total_copies, and it always equals
	// total_copies minus the count of approved, unreturned borrows. Only the
	// borrow transitions and admin edits may change it.
	AvailableCopies int        `json:"available_copies" gorm:"not null;default:0"`
	CreatedAt       *time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
}

func (Book) TableName() string {
	return "books"
}
