package dto

import (
	"time"

	"librehub/internal/models"
	"librehub/internal/service"
)

// CreateBookRequest: payload for adding a book to the catalog
type CreateBookRequest struct {
	Title         string  `json:"title" binding:"required"`
	Author        string  `json:"author" binding:"required"`
	PublishedYear *int    `json:"published_year,omitempty"`
	Publisher     *string `json:"publisher,omitempty"`
	Genre         *string `json:"genre,omitempty"`
	Description   *string `json:"description,omitempty"`
	TotalCopies   int     `json:"total_copies" binding:"min=0"`
}

func (r CreateBookRequest) ToModel() models.Book {
	return models.Book{
		Title:         r.Title,
		Author:        r.Author,
		PublishedYear: r.PublishedYear,
		Publisher:     r.Publisher,
		Genre:         r.Genre,
		Description:   r.Description,
		TotalCopies:   r.TotalCopies,
	}
}

// UpdateBookRequest: explicit patch payload, every field optional. Absent
// fields are left untouched.
type UpdateBookRequest struct {
	Title         *string `json:"title,omitempty"`
	Author        *string `json:"author,omitempty"`
	PublishedYear *int    `json:"published_year,omitempty"`
	Publisher     *string `json:"publisher,omitempty"`
	Genre         *string `json:"genre,omitempty"`
	Description   *string `json:"description,omitempty"`
	TotalCopies   *int    `json:"total_copies,omitempty"`
}

func (r UpdateBookRequest) ToPatch() service.BookPatch {
	return service.BookPatch{
		Title:         r.Title,
		Author:        r.Author,
		PublishedYear: r.PublishedYear,
		Publisher:     r.Publisher,
		Genre:         r.Genre,
		Description:   r.Description,
		TotalCopies:   r.TotalCopies,
	}
}

// BookResponse: full catalog view of a book
type BookResponse struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	PublishedYear   *int       `json:"published_year,omitempty"`
	Publisher       *string    `json:"publisher,omitempty"`
	Genre           *string    `json:"genre,omitempty"`
	Description     *string    `json:"description,omitempty"`
	TotalCopies     int        `json:"total_copies"`
	AvailableCopies int        `json:"available_copies"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
}

func FromBookModel(b models.Book) BookResponse {
	return BookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		PublishedYear:   b.PublishedYear,
		Publisher:       b.Publisher,
		Genre:           b.Genre,
		Description:     b.Description,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		CreatedAt:       b.CreatedAt,
	}
}

// BookListResponse: paginated catalog listing
type BookListResponse struct {
	Items []BookResponse `json:"items"`
	Total int64          `json:"total"`
}

// AvailabilityResponse: copy counters for one book
type AvailabilityResponse struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}
