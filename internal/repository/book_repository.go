package repository

import (
	"context"
	"fmt"

	"librehub/internal/models"

	"gorm.io/gorm"
)

// BookRepository defines catalog data operations.
type BookRepository interface {
	List(ctx context.Context, page, pageSize int) ([]models.Book, int64, error)
	GetByID(ctx context.Context, id int64) (*models.Book, error)
	SearchByTitle(ctx context.Context, query string) ([]models.Book, error)
	Genres(ctx context.Context) ([]string, error)
	Create(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id int64) error
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) List(ctx context.Context, page, pageSize int) ([]models.Book, int64, error) {
	var books []models.Book
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Book{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	offset := (page - 1) * pageSize
	if err := r.db.WithContext(ctx).
		Order("title ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&books).Error; err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	return books, total, nil
}

func (r *bookRepository) GetByID(ctx context.Context, id int64) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) SearchByTitle(ctx context.Context, query string) ([]models.Book, error) {
	var books []models.Book
	if err := r.db.WithContext(ctx).
		Where("LOWER(title) LIKE LOWER(?)", "%"+query+"%").
		Order("title ASC").
		Find(&books).Error; err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}

func (r *bookRepository) Genres(ctx context.Context) ([]string, error) {
	var genres []string
	if err := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Distinct("genre").
		Where("genre IS NOT NULL").
		Order("genre ASC").
		Pluck("genre", &genres).Error; err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return genres, nil
}

func (r *bookRepository) Create(ctx context.Context, book *models.Book) error {
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

func (r *bookRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&models.Book{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete book: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
