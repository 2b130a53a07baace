package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"librehub/internal/cache"
	"librehub/internal/models"
	"librehub/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrBookNotFound      = errors.New("book not found")
	ErrBorrowNotFound    = errors.New("borrow not found")
	ErrForbidden         = errors.New("forbidden")
	ErrOutOfStock        = errors.New("no copies available")
	ErrDuplicateRequest  = errors.New("a pending request for this book already exists")
	ErrAlreadyBorrowed   = errors.New("this book is already borrowed by the user")
	ErrInvalidDateRange  = errors.New("invalid borrow date range")
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrIntegrityFault means the copy-count invariant is broken. It is a bug,
	// not a user error, and gets logged at error level wherever it surfaces.
	ErrIntegrityFault = errors.New("inventory integrity fault")
)

// TransitionError reports an action attempted from a lifecycle state that
// does not permit it. It matches ErrInvalidTransition under errors.Is.
type TransitionError struct {
	Action  string
	Current models.BorrowStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a borrow in status %q", e.Action, e.Current)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// maxBorrowWindow bounds the requested borrow period.
const maxBorrowWindow = 15 * 24 * time.Hour

// BorrowService is the borrow lifecycle engine: it owns the
// request -> approve/reject -> return state machine and keeps each book's
// available-copy count consistent with the set of active loans. Every
// transition runs its precondition checks and writes inside one database
// transaction, so a failure after any check rolls back the whole step.
type BorrowService interface {
	Request(ctx context.Context, actor Principal, bookID int64, from, until time.Time) (*models.Borrow, error)
	Decide(ctx context.Context, actor Principal, borrowID int64, approve bool) (*models.Borrow, error)
	ReturnByBook(ctx context.Context, actor Principal, bookID int64) (*models.Borrow, error)
	ReturnByID(ctx context.Context, actor Principal, borrowID int64) (*models.Borrow, error)
	ListMine(ctx context.Context, actor Principal) ([]models.Borrow, error)
	ListPending(ctx context.Context, actor Principal) ([]models.Borrow, error)
	ListAll(ctx context.Context, actor Principal) ([]models.Borrow, error)
	Availability(ctx context.Context, bookID int64) (total, available int, err error)
}

type borrowService struct {
	db     *gorm.DB
	repo   repository.BorrowRepository
	ledger repository.InventoryLedger
	cache  *cache.AvailabilityCache
	logger *slog.Logger
}

func NewBorrowService(
	db *gorm.DB,
	repo repository.BorrowRepository,
	ledger repository.InventoryLedger,
	availability *cache.AvailabilityCache,
	logger *slog.Logger,
) BorrowService {
	return &borrowService{
		db:     db,
		repo:   repo,
		ledger: ledger,
		cache:  availability,
		logger: logger,
	}
}

func validateWindow(from, until time.Time) error {
	if !until.After(from) {
		return ErrInvalidDateRange
	}
	if until.Sub(from) > maxBorrowWindow {
		return ErrInvalidDateRange
	}
	return nil
}

// Request creates a pending borrow for the acting user. A request does not
// reserve a copy: availability is only checked, and stock is claimed at
// approval time.
func (s *borrowService) Request(ctx context.Context, actor Principal, bookID int64, from, until time.Time) (*models.Borrow, error) {
	if err := validateWindow(from, until); err != nil {
		return nil, err
	}

	var created models.Borrow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var book models.Book
		if err := tx.First(&book, bookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookNotFound
			}
			return fmt.Errorf("load book: %w", err)
		}
		if book.AvailableCopies <= 0 {
			return ErrOutOfStock
		}

		// Only one pending-or-approved borrow may exist per (user, book).
		var existing models.Borrow
		err := tx.Where("user_id = ? AND book_id = ? AND status IN ?",
			actor.ID, bookID, []models.BorrowStatus{models.BorrowPending, models.BorrowApproved}).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.Status == models.BorrowApproved {
				return ErrAlreadyBorrowed
			}
			return ErrDuplicateRequest
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("check active borrow: %w", err)
		}

		created = models.Borrow{
			UserID:              actor.ID,
			BookID:              bookID,
			Status:              models.BorrowPending,
			RequestDate:         time.Now(),
			RequestedBorrowDate: from,
			RequestedReturnDate: until,
		}
		if err := tx.Create(&created).Error; err != nil {
			// a racing request for the same pair slipped past the read above
			// and lost to the active-pair unique index
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateRequest
			}
			return fmt.Errorf("create borrow: %w", err)
		}
		created.Book = &book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Decide approves or rejects a pending borrow. Approval claims a copy: the
// status change and the inventory decrement commit together or not at all,
// so a losing race for the last copy leaves the request pending.
func (s *borrowService) Decide(ctx context.Context, actor Principal, borrowID int64, approve bool) (*models.Borrow, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}

	var borrow models.Borrow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&borrow, borrowID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBorrowNotFound
			}
			return fmt.Errorf("load borrow: %w", err)
		}
		if borrow.Status != models.BorrowPending {
			return &TransitionError{Action: "decide on", Current: borrow.Status}
		}

		var book models.Book
		if err := tx.First(&book, borrow.BookID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Error("borrow references a missing book",
					"borrow_id", borrow.ID, "book_id", borrow.BookID)
				return ErrIntegrityFault
			}
			return fmt.Errorf("load book: %w", err)
		}

		if !approve {
			result := tx.Model(&models.Borrow{}).
				Where("id = ? AND status = ?", borrowID, models.BorrowPending).
				Update("status", models.BorrowRejected)
			if result.Error != nil {
				return fmt.Errorf("reject borrow: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return staleStatus(tx, borrowID, "decide on")
			}
			borrow.Status = models.BorrowRejected
			borrow.Book = &book
			return nil
		}

		now := time.Now()
		result := tx.Model(&models.Borrow{}).
			Where("id = ? AND status = ?", borrowID, models.BorrowPending).
			Updates(map[string]any{"status": models.BorrowApproved, "borrow_date": now})
		if result.Error != nil {
			return fmt.Errorf("approve borrow: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return staleStatus(tx, borrowID, "decide on")
		}

		if err := s.ledger.Decrement(tx, book.ID); err != nil {
			if errors.Is(err, repository.ErrNoAvailableCopies) {
				// rollback leaves the borrow pending
				return ErrOutOfStock
			}
			return err
		}

		borrow.Status = models.BorrowApproved
		borrow.BorrowDate = &now
		book.AvailableCopies--
		borrow.Book = &book
		return nil
	})
	if err != nil {
		return nil, err
	}

	if approve {
		s.cache.Invalidate(ctx, borrow.BookID)
	}
	return &borrow, nil
}

// ReturnByBook is the self-service return path: the acting user returns
// their own active loan of the given book.
func (s *borrowService) ReturnByBook(ctx context.Context, actor Principal, bookID int64) (*models.Borrow, error) {
	var borrow models.Borrow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND book_id = ? AND status = ?",
			actor.ID, bookID, models.BorrowApproved).
			First(&borrow).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBorrowNotFound
			}
			return fmt.Errorf("load borrow: %w", err)
		}
		return s.completeReturn(tx, &borrow)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, borrow.BookID)
	return &borrow, nil
}

// ReturnByID is the admin force-return path, addressed by borrow id.
// Re-returning an already-returned loan is an idempotent no-op.
func (s *borrowService) ReturnByID(ctx context.Context, actor Principal, borrowID int64) (*models.Borrow, error) {
	var borrow models.Borrow
	var noop bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&borrow, borrowID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBorrowNotFound
			}
			return fmt.Errorf("load borrow: %w", err)
		}
		if !actor.IsAdmin && borrow.UserID != actor.ID {
			return ErrForbidden
		}
		if borrow.Status == models.BorrowReturned && actor.IsAdmin {
			noop = true
			return nil
		}
		if borrow.Status != models.BorrowApproved {
			return &TransitionError{Action: "return", Current: borrow.Status}
		}
		return s.completeReturn(tx, &borrow)
	})
	if err != nil {
		return nil, err
	}

	if !noop {
		s.cache.Invalidate(ctx, borrow.BookID)
	}
	if borrow.Book == nil {
		s.attachBook(ctx, &borrow)
	}
	return &borrow, nil
}

// completeReturn moves an approved borrow to returned and hands the copy
// back to inventory, all within the caller's transaction.
func (s *borrowService) completeReturn(tx *gorm.DB, borrow *models.Borrow) error {
	now := time.Now()
	result := tx.Model(&models.Borrow{}).
		Where("id = ? AND status = ?", borrow.ID, models.BorrowApproved).
		Updates(map[string]any{"status": models.BorrowReturned, "return_date": now})
	if result.Error != nil {
		return fmt.Errorf("return borrow: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return staleStatus(tx, borrow.ID, "return")
	}

	if err := s.ledger.Increment(tx, borrow.BookID); err != nil {
		if errors.Is(err, repository.ErrCopiesExceedTotal) {
			s.logger.Error("return would push available copies past total",
				"borrow_id", borrow.ID, "book_id", borrow.BookID)
			return ErrIntegrityFault
		}
		return err
	}

	borrow.Status = models.BorrowReturned
	borrow.ReturnDate = &now

	var book models.Book
	if err := tx.First(&book, borrow.BookID).Error; err != nil {
		return fmt.Errorf("reload book: %w", err)
	}
	borrow.Book = &book
	return nil
}

// staleStatus builds the transition error for a guarded update that matched
// no rows: a concurrent transition got there first, report the state it left.
func staleStatus(tx *gorm.DB, borrowID int64, action string) error {
	var current models.Borrow
	if err := tx.First(&current, borrowID).Error; err != nil {
		return fmt.Errorf("reload borrow: %w", err)
	}
	return &TransitionError{Action: action, Current: current.Status}
}

func (s *borrowService) attachBook(ctx context.Context, borrow *models.Borrow) {
	var book models.Book
	if err := s.db.WithContext(ctx).First(&book, borrow.BookID).Error; err != nil {
		s.logger.Error("borrow references a missing book",
			"borrow_id", borrow.ID, "book_id", borrow.BookID)
		return
	}
	borrow.Book = &book
}

func (s *borrowService) ListMine(ctx context.Context, actor Principal) ([]models.Borrow, error) {
	return s.repo.ListByUser(ctx, actor.ID)
}

func (s *borrowService) ListPending(ctx context.Context, actor Principal) ([]models.Borrow, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return s.repo.ListByStatus(ctx, models.BorrowPending)
}

func (s *borrowService) ListAll(ctx context.Context, actor Principal) ([]models.Borrow, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return s.repo.ListAll(ctx)
}

// Availability reports the copy counters for a book, read through the cache.
func (s *borrowService) Availability(ctx context.Context, bookID int64) (int, int, error) {
	if total, available, ok := s.cache.Get(ctx, bookID); ok {
		return total, available, nil
	}

	var book models.Book
	if err := s.db.WithContext(ctx).First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, ErrBookNotFound
		}
		return 0, 0, fmt.Errorf("load book: %w", err)
	}

	s.cache.Set(ctx, bookID, book.TotalCopies, book.AvailableCopies)
	return book.TotalCopies, book.AvailableCopies, nil
}
