package ports

import (
	"context"
	"time"

	"github.com/bibliora/library-system/internal/core/domain"
)

// CopyRepository defines persistence operations for book copies. Every query
// filters out soft-deleted rows.
type CopyRepository interface {
	FindByID(ctx context.Context, id string) (*domain.BookCopy, error)
	FindByBookID(ctx context.Context, bookID string) ([]*domain.BookCopy, error)
	FindAvailableByBookID(ctx context.Context, bookID string) ([]*domain.BookCopy, error)
	FindBorrowedByUser(ctx context.Context, userID string) ([]*domain.BookCopy, error)
	FindOverdue(ctx context.Context, now time.Time) ([]*domain.BookCopy, error)
	FindDueBetween(ctx context.Context, from, to time.Time) ([]*domain.BookCopy, error)
	ExistsByBookIDAndCopyNumber(ctx context.Context, bookID, copyNumber string) (bool, error)
	CountByBookID(ctx context.Context, bookID string) (int64, error)
	CountAvailableByBookID(ctx context.Context, bookID string) (int64, error)

	Insert(ctx context.Context, copy *domain.BookCopy) (*domain.BookCopy, error)

	// Update persists the copy's current state, guarded by the status the row
	// held when it was loaded. When the guard no longer matches (a concurrent
	// writer won the race) the repository returns domain.ErrCopyConflict and
	// writes nothing.
	Update(ctx context.Context, copy *domain.BookCopy, expectedStatus domain.CopyStatus) error

	SoftDelete(ctx context.Context, id string, deletedAt time.Time) error
}
