package dto

import (
	"time"

	"librehub/internal/models"
)

// BorrowRequest: payload to request borrowing a book for a date window
type BorrowRequest struct {
	BookID              int64     `json:"book_id" binding:"required"`
	RequestedBorrowDate time.Time `json:"requested_borrow_date" binding:"required"`
	RequestedReturnDate time.Time `json:"requested_return_date" binding:"required"`
}

// BorrowReturnRequest: self-service return, addressed by book
type BorrowReturnRequest struct {
	BookID int64 `json:"book_id" binding:"required"`
}

// BorrowDecisionRequest: admin approval or rejection of a pending request.
// Approve is a pointer so that an explicit false survives binding.
type BorrowDecisionRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

// BookSummary: the book block nested in a borrow view
type BookSummary struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// UserSummary: the optional user block nested in a borrow view
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// BorrowResponse: the serialized borrow lifecycle view. IsReturned is
// derived from the status; it is never stored separately.
type BorrowResponse struct {
	ID                  int64        `json:"id"`
	Book                BookSummary  `json:"book"`
	User                *UserSummary `json:"user,omitempty"`
	RequestDate         time.Time    `json:"request_date"`
	RequestedBorrowDate time.Time    `json:"requested_borrow_date"`
	RequestedReturnDate time.Time    `json:"requested_return_date"`
	BorrowDate          *time.Time   `json:"borrow_date,omitempty"`
	ReturnDate          *time.Time   `json:"return_date,omitempty"`
	Status              string       `json:"status"`
	IsReturned          bool         `json:"is_returned"`
}

// FromBorrowModel projects a borrow with its related book and, optionally,
// its user. When the caller already knows the subject user (the
// authenticated actor), pass it here rather than relying on a preloaded
// association; when it is nil, the borrow's own linked user is used if it
// was loaded, and the block is omitted otherwise.
func FromBorrowModel(b models.Borrow, user *models.User) BorrowResponse {
	resp := BorrowResponse{
		ID:                  b.ID,
		RequestDate:         b.RequestDate,
		RequestedBorrowDate: b.RequestedBorrowDate,
		RequestedReturnDate: b.RequestedReturnDate,
		BorrowDate:          b.BorrowDate,
		ReturnDate:          b.ReturnDate,
		Status:              string(b.Status),
		IsReturned:          b.Returned(),
	}

	if b.Book != nil {
		resp.Book = BookSummary{ID: b.Book.ID, Title: b.Book.Title, Author: b.Book.Author}
	} else {
		// a borrow without its book is a data-integrity fault upstream; keep
		// the id so the row is still traceable
		resp.Book = BookSummary{ID: b.BookID}
	}

	if user == nil {
		user = b.User
	}
	if user != nil {
		resp.User = &UserSummary{ID: user.ID, Username: user.Username, Email: user.Email}
	}

	return resp
}

// BorrowListResponse: list of borrow views
type BorrowListResponse struct {
	Items []BorrowResponse `json:"items"`
	Total int              `json:"total"`
}
