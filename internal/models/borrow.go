package models

import "time"

// BorrowStatus is the single source of truth for where a borrow sits in its
// lifecycle. The legacy is_returned boolean is derived at the response
// boundary instead of being stored alongside it.
type BorrowStatus string

const (
	BorrowPending  BorrowStatus = "pending"
	BorrowApproved BorrowStatus = "approved"
	BorrowRejected BorrowStatus = "rejected"
	BorrowReturned BorrowStatus = "returned"
)

// The partial unique index on (user_id, book_id) backs the one-active-borrow
// rule at the schema level: the duplicate precondition in the request
// transition is a read, so the index is what stops two racing requests from
// both inserting a pending row.
type Borrow struct {
	ID     int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID string       `gorm:"type:uuid;not null;index;uniqueIndex:idx_borrows_active_pair,where:status = 'pending' OR status = 'approved'" json:"user_id"`
	BookID int64        `gorm:"not null;index;uniqueIndex:idx_borrows_active_pair" json:"book_id"`
	Status BorrowStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	RequestDate         time.Time  `gorm:"not null" json:"request_date"`
	RequestedBorrowDate time.Time  `gorm:"not null" json:"requested_borrow_date"`
	RequestedReturnDate time.Time  `gorm:"not null" json:"requested_return_date"`
	BorrowDate          *time.Time `json:"borrow_date,omitempty"`
	ReturnDate          *time.Time `json:"return_date,omitempty"`

	// Associations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

func (Borrow) TableName() string {
	return "borrows"
}

// Active reports whether this borrow blocks a new request for the same
// (user, book) pair: a pending request or an approved, unreturned loan.
func (b *Borrow) Active() bool {
	return b.Status == BorrowPending || b.Status == BorrowApproved
}

// Returned reports the legacy is_returned view of the status.
func (b *Borrow) Returned() bool {
	return b.Status == BorrowReturned
}
