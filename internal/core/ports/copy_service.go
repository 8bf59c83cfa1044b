package ports

import (
	"context"
	"time"
)

// CreateCopiesInput carries the parameters for registering physical copies of
// a book. Count copies are created, numbered sequentially from StartNumber.
type CreateCopiesInput struct {
	BookID      string
	Count       int
	StartNumber int
	Condition   string
	Location    string
	Caller      Caller
}

// CopyView is the service-level projection of a single copy.
type CopyView struct {
	ID         string
	BookID     string
	CopyNumber string
	Status     string
	Condition  string
	Location   string
	BorrowedBy string
	BorrowedAt *time.Time
	DueAt      *time.Time
}

// BorrowCopyInput identifies the copy, the borrower, and the loan period.
type BorrowCopyInput struct {
	CopyID         string
	BorrowerID     string
	LoanPeriodDays int
	Caller         Caller
}

// ReserveCopyInput identifies the copy and the member placing the hold.
type ReserveCopyInput struct {
	CopyID     string
	ReserverID string
	Caller     Caller
}

// MaintenanceResult reports the per-copy outcome of a bulk maintenance sweep.
type MaintenanceResult struct {
	CopyID string
	Marked bool
	Reason string
}

// CopyStatistics aggregates circulation counts for one book.
type CopyStatistics struct {
	Total            int64
	Available        int64
	Borrowed         int64
	Reserved         int64
	Maintenance      int64
	AvailabilityRate float64
	UtilizationRate  float64
}

// CopyService defines the use-case operations on the book-copy lifecycle.
type CopyService interface {
	CreateCopies(ctx context.Context, in CreateCopiesInput) ([]CopyView, error)
	BorrowCopy(ctx context.Context, in BorrowCopyInput) (*CopyView, error)
	ReturnCopy(ctx context.Context, copyID string, caller Caller) (*CopyView, error)
	ReserveCopy(ctx context.Context, in ReserveCopyInput) (*CopyView, error)
	FindBestAvailableCopy(ctx context.Context, bookID string) (*CopyView, error)
	CalculateOverdueFine(ctx context.Context, copyID string, dailyRate float64) (float64, error)
	MarkCopiesForMaintenance(ctx context.Context, copyIDs []string, caller Caller) []MaintenanceResult
	CompleteMaintenance(ctx context.Context, copyID, condition string, caller Caller) (*CopyView, error)
	MarkCopyLost(ctx context.Context, copyID string, caller Caller) (*CopyView, error)
	ListOverdueCopies(ctx context.Context) ([]CopyView, error)
	ListCopiesDueWithin(ctx context.Context, days int) ([]CopyView, error)
	GetStatistics(ctx context.Context, bookID string) (*CopyStatistics, error)
	CanBookBeDeleted(ctx context.Context, bookID string) (bool, error)
	DeleteCopy(ctx context.Context, copyID string, caller Caller) error
}
