package repository

import (
	"context"
	"fmt"

	"librehub/internal/models"

	"gorm.io/gorm"
)

// BorrowRepository is the query surface over borrow records used by the
// lifecycle engine and the read endpoints. Reads that feed a state transition
// go through the transition's own transaction instead (see the borrow service).
type BorrowRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Borrow, error)
	FindActive(ctx context.Context, userID string, bookID int64) (*models.Borrow, error)
	ListByUser(ctx context.Context, userID string) ([]models.Borrow, error)
	ListByStatus(ctx context.Context, status models.BorrowStatus) ([]models.Borrow, error)
	ListAll(ctx context.Context) ([]models.Borrow, error)
	CountActiveLoans(ctx context.Context, bookID int64) (int64, error)
}

type borrowRepository struct {
	db *gorm.DB
}

func NewBorrowRepository(db *gorm.DB) BorrowRepository {
	return &borrowRepository{db: db}
}

func (r *borrowRepository) GetByID(ctx context.Context, id int64) (*models.Borrow, error) {
	var borrow models.Borrow
	if err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		First(&borrow, id).Error; err != nil {
		return nil, err
	}
	return &borrow, nil
}

// FindActive returns the pending or approved borrow for the (user, book)
// pair, if one exists. At most one can exist at a time.
func (r *borrowRepository) FindActive(ctx context.Context, userID string, bookID int64) (*models.Borrow, error) {
	var borrow models.Borrow
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ? AND status IN ?",
			userID, bookID, []models.BorrowStatus{models.BorrowPending, models.BorrowApproved}).
		First(&borrow).Error; err != nil {
		return nil, err
	}
	return &borrow, nil
}

func (r *borrowRepository) ListByUser(ctx context.Context, userID string) ([]models.Borrow, error) {
	var borrows []models.Borrow
	if err := r.db.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("request_date DESC").
		Find(&borrows).Error; err != nil {
		return nil, fmt.Errorf("list borrows by user: %w", err)
	}
	return borrows, nil
}

func (r *borrowRepository) ListByStatus(ctx context.Context, status models.BorrowStatus) ([]models.Borrow, error) {
	var borrows []models.Borrow
	if err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Where("status = ?", status).
		Order("request_date ASC").
		Find(&borrows).Error; err != nil {
		return nil, fmt.Errorf("list borrows by status: %w", err)
	}
	return borrows, nil
}

func (r *borrowRepository) ListAll(ctx context.Context) ([]models.Borrow, error) {
	var borrows []models.Borrow
	if err := r.db.WithContext(ctx).
		Preload("Book").
		Preload("User").
		Order("request_date DESC").
		Find(&borrows).Error; err != nil {
		return nil, fmt.Errorf("list all borrows: %w", err)
	}
	return borrows, nil
}

// CountActiveLoans counts approved, unreturned borrows for a book. Admin
// catalog edits use it to re-derive available_copies.
func (r *borrowRepository) CountActiveLoans(ctx context.Context, bookID int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Borrow{}).
		Where("book_id = ? AND status = ?", bookID, models.BorrowApproved).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
