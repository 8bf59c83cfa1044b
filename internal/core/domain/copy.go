package domain

import (
	"fmt"
	"time"
)

// CopyStatus represents the circulation state of a physical book copy.
type CopyStatus string

const (
	CopyAvailable   CopyStatus = "available"
	CopyBorrowed    CopyStatus = "borrowed"
	CopyReserved    CopyStatus = "reserved"
	CopyMaintenance CopyStatus = "maintenance"
	CopyLost        CopyStatus = "lost"
)

// CopyCondition describes the physical condition of a copy. Lower priority
// numbers mean better condition; the priority is used as the primary sort key
// when picking the best available copy of a book.
type CopyCondition string

const (
	ConditionNew     CopyCondition = "new"
	ConditionGood    CopyCondition = "good"
	ConditionFair    CopyCondition = "fair"
	ConditionPoor    CopyCondition = "poor"
	ConditionDamaged CopyCondition = "damaged"
)

// Priority returns the ordering rank of a condition, 1 (best) through 5 (worst).
func (c CopyCondition) Priority() int {
	switch c {
	case ConditionNew:
		return 1
	case ConditionGood:
		return 2
	case ConditionFair:
		return 3
	case ConditionPoor:
		return 4
	case ConditionDamaged:
		return 5
	default:
		return 5
	}
}

// RequiresSpecialHandling reports whether the copy should be routed through
// the repair desk instead of the regular return shelf.
func (c CopyCondition) RequiresSpecialHandling() bool {
	return c == ConditionPoor || c == ConditionDamaged
}

// BookCopy is the aggregate root for one physical copy of a book.
//
// Invariant: BorrowedBy, BorrowedAt and DueAt are all set if and only if
// Status is CopyBorrowed. All mutations go through the methods below; the
// service layer never writes these fields directly.
type BookCopy struct {
	ID         string        `json:"id" bson:"_id,omitempty"`
	BookID     string        `json:"book_id" bson:"book_id"`
	CopyNumber string        `json:"copy_number" bson:"copy_number"`
	Status     CopyStatus    `json:"status" bson:"status"`
	Condition  CopyCondition `json:"condition" bson:"condition"`
	Location   string        `json:"location" bson:"location"`
	AcquiredAt time.Time     `json:"acquired_at" bson:"acquired_at"`
	BorrowedBy *string       `json:"borrowed_by,omitempty" bson:"borrowed_by,omitempty"`
	BorrowedAt *time.Time    `json:"borrowed_at,omitempty" bson:"borrowed_at,omitempty"`
	DueAt      *time.Time    `json:"due_at,omitempty" bson:"due_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" bson:"updated_at"`
	DeletedAt  *time.Time    `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

// NewBookCopy creates a copy in the available state.
func NewBookCopy(bookID, copyNumber string, condition CopyCondition, location string, now time.Time) *BookCopy {
	return &BookCopy{
		BookID:     bookID,
		CopyNumber: copyNumber,
		Status:     CopyAvailable,
		Condition:  condition,
		Location:   location,
		AcquiredAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanBeBorrowed reports whether the copy is eligible for lending: it must be
// on the shelf and not damaged.
func (c *BookCopy) CanBeBorrowed() bool {
	return c.Status == CopyAvailable && c.Condition != ConditionDamaged
}

// BorrowTo transitions the copy to borrowed. The copy must be available or
// reserved (a reserved copy is handed over at the desk); a damaged copy is
// never lent out.
func (c *BookCopy) BorrowTo(borrowerID string, dueAt time.Time, now time.Time) error {
	if c.Status != CopyAvailable && c.Status != CopyReserved {
		return fmt.Errorf("%w: copy %s is %s", ErrCopyNotAvailable, c.CopyNumber, c.Status)
	}
	if c.Condition == ConditionDamaged {
		return fmt.Errorf("%w: copy %s is damaged", ErrCopyNotAvailable, c.CopyNumber)
	}
	c.Status = CopyBorrowed
	c.BorrowedBy = &borrowerID
	c.BorrowedAt = &now
	c.DueAt = &dueAt
	c.UpdatedAt = now
	return nil
}

// Return transitions a borrowed copy back to available and clears the loan fields.
func (c *BookCopy) Return(now time.Time) error {
	if c.Status != CopyBorrowed {
		return fmt.Errorf("%w: copy %s is %s", ErrCopyNotBorrowed, c.CopyNumber, c.Status)
	}
	c.Status = CopyAvailable
	c.BorrowedBy = nil
	c.BorrowedAt = nil
	c.DueAt = nil
	c.UpdatedAt = now
	return nil
}

// Reserve places a hold on the copy. Reserving is allowed while the copy is
// available or still out on loan (the hold queues ahead of availability).
func (c *BookCopy) Reserve(now time.Time) error {
	if c.Status != CopyAvailable && c.Status != CopyBorrowed {
		return fmt.Errorf("%w: copy %s is %s", ErrCopyNotReservable, c.CopyNumber, c.Status)
	}
	if c.Status == CopyAvailable {
		c.Status = CopyReserved
	}
	c.UpdatedAt = now
	return nil
}

// MarkForMaintenance pulls an available copy off the shelf. Copies in any
// other state are rejected so that a bulk sweep can skip them individually.
func (c *BookCopy) MarkForMaintenance(now time.Time) error {
	if c.Status != CopyAvailable {
		return fmt.Errorf("%w: copy %s is %s, only available copies can enter maintenance",
			ErrCopyNotAvailable, c.CopyNumber, c.Status)
	}
	c.Status = CopyMaintenance
	c.UpdatedAt = now
	return nil
}

// CompleteMaintenance returns a copy from the repair desk to the shelf,
// recording its post-repair condition.
func (c *BookCopy) CompleteMaintenance(condition CopyCondition, now time.Time) error {
	if c.Status != CopyMaintenance {
		return fmt.Errorf("%w: copy %s is %s", ErrCopyNotInMaintenance, c.CopyNumber, c.Status)
	}
	c.Status = CopyAvailable
	c.Condition = condition
	c.UpdatedAt = now
	return nil
}

// MarkLost is an administrative, terminal transition. Any loan fields are
// cleared since a lost copy has no active borrowing.
func (c *BookCopy) MarkLost(now time.Time) error {
	if c.Status == CopyLost {
		return fmt.Errorf("%w: copy %s is already lost", ErrInvalidTransition, c.CopyNumber)
	}
	c.Status = CopyLost
	c.BorrowedBy = nil
	c.BorrowedAt = nil
	c.DueAt = nil
	c.UpdatedAt = now
	return nil
}

// IsOverdue reports whether the copy is out on loan past its due date.
func (c *BookCopy) IsOverdue(now time.Time) bool {
	return c.Status == CopyBorrowed && c.DueAt != nil && c.DueAt.Before(now)
}

// SoftDelete marks the copy as logically removed. Only idle available copies
// may be removed from the catalog.
func (c *BookCopy) SoftDelete(now time.Time) error {
	if c.Status != CopyAvailable {
		return fmt.Errorf("%w: copy %s is %s", ErrCopyNotAvailable, c.CopyNumber, c.Status)
	}
	c.DeletedAt = &now
	c.UpdatedAt = now
	return nil
}
