package repository

import (
	"errors"
	"fmt"

	"librehub/internal/models"

	"gorm.io/gorm"
)

var (
	// ErrNoAvailableCopies is returned by Decrement when the book has no
	// copies left to hand out.
	ErrNoAvailableCopies = errors.New("no available copies")
	// ErrCopiesExceedTotal is returned by Increment when adding a copy back
	// would push available_copies past total_copies. That only happens when
	// the invariant is already broken, so callers treat it as an integrity
	// fault rather than a user error.
	ErrCopiesExceedTotal = errors.New("available copies would exceed total")
)

// InventoryLedger applies copy-count adjustments to a book. Both operations
// take the caller's transaction handle so the adjustment commits or rolls
// back together with the borrow transition that triggered it. The guards in
// the WHERE clause make each adjustment atomic: two racing decrements of the
// last copy cannot both pass.
type InventoryLedger interface {
	Decrement(tx *gorm.DB, bookID int64) error
	Increment(tx *gorm.DB, bookID int64) error
}

type inventoryLedger struct{}

func NewInventoryLedger() InventoryLedger {
	return inventoryLedger{}
}

func (inventoryLedger) Decrement(tx *gorm.DB, bookID int64) error {
	result := tx.Model(&models.Book{}).
		Where("id = ? AND available_copies > 0", bookID).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
	if result.Error != nil {
		return fmt.Errorf("decrement copies: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNoAvailableCopies
	}
	return nil
}

func (inventoryLedger) Increment(tx *gorm.DB, bookID int64) error {
	result := tx.Model(&models.Book{}).
		Where("id = ? AND available_copies < total_copies", bookID).
		UpdateColumn("available_copies", gorm.Expr("available_copies + 1"))
	if result.Error != nil {
		return fmt.Errorf("increment copies: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCopiesExceedTotal
	}
	return nil
}
