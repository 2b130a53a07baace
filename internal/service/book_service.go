package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"librehub/internal/cache"
	"librehub/internal/models"
	"librehub/internal/repository"

	"gorm.io/gorm"
)

// BookPatch lists the catalog fields an admin may update. Each field is
// optional; nil means "leave unchanged", so the set of mutable fields is
// statically enumerable instead of an arbitrary key/value payload.
type BookPatch struct {
	Title         *string
	Author        *string
	PublishedYear *int
	Publisher     *string
	Genre         *string
	Description   *string
	TotalCopies   *int
}

type BookService interface {
	List(ctx context.Context, page, pageSize int) ([]models.Book, int64, error)
	GetByID(ctx context.Context, id int64) (*models.Book, error)
	SearchByTitle(ctx context.Context, query string) ([]models.Book, error)
	Genres(ctx context.Context) ([]string, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, id int64, patch BookPatch) (*models.Book, error)
	Delete(ctx context.Context, id int64) error
}

type bookService struct {
	db     *gorm.DB
	repo   repository.BookRepository
	cache  *cache.AvailabilityCache
	logger *slog.Logger
}

func NewBookService(db *gorm.DB, repo repository.BookRepository, availability *cache.AvailabilityCache, logger *slog.Logger) BookService {
	return &bookService{db: db, repo: repo, cache: availability, logger: logger}
}

func (s *bookService) List(ctx context.Context, page, pageSize int) ([]models.Book, int64, error) {
	return s.repo.List(ctx, page, pageSize)
}

func (s *bookService) GetByID(ctx context.Context, id int64) (*models.Book, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

func (s *bookService) SearchByTitle(ctx context.Context, query string) ([]models.Book, error) {
	return s.repo.SearchByTitle(ctx, query)
}

func (s *bookService) Genres(ctx context.Context) ([]string, error) {
	return s.repo.Genres(ctx)
}

func (s *bookService) Create(ctx context.Context, book *models.Book) error {
	if book.TotalCopies < 0 {
		book.TotalCopies = 0
	}
	// A new book starts with all copies on the shelf.
	book.AvailableCopies = book.TotalCopies
	return s.repo.Create(ctx, book)
}

// Update applies a patch to a book. When total_copies changes,
// available_copies is re-derived inside the same transaction from the count
// of active loans and clamped to [0, total], keeping the invariant intact.
func (s *bookService) Update(ctx context.Context, id int64, patch BookPatch) (*models.Book, error) {
	var updated models.Book
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return fmt.Errorf("load book: %w", err)
		}

		if patch.Title != nil {
			updated.Title = *patch.Title
		}
		if patch.Author != nil {
			updated.Author = *patch.Author
		}
		if patch.PublishedYear != nil {
			updated.PublishedYear = patch.PublishedYear
		}
		if patch.Publisher != nil {
			updated.Publisher = patch.Publisher
		}
		if patch.Genre != nil {
			updated.Genre = patch.Genre
		}
		if patch.Description != nil {
			updated.Description = patch.Description
		}

		if patch.TotalCopies != nil {
			total := *patch.TotalCopies
			if total < 0 {
				total = 0
			}

			var activeLoans int64
			if err := tx.Model(&models.Borrow{}).
				Where("book_id = ? AND status = ?", id, models.BorrowApproved).
				Count(&activeLoans).Error; err != nil {
				return fmt.Errorf("count active loans: %w", err)
			}

			available := total - int(activeLoans)
			if available < 0 {
				s.logger.Warn("total copies set below active loan count",
					"book_id", id, "total", total, "active_loans", activeLoans)
				available = 0
			}

			updated.TotalCopies = total
			updated.AvailableCopies = available
		}

		if err := tx.Save(&updated).Error; err != nil {
			return fmt.Errorf("save book: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, id)
	return &updated, nil
}

func (s *bookService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		return err
	}
	s.cache.Invalidate(ctx, id)
	return nil
}
