package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bibliora/library-system/internal/core/domain"
	"github.com/bibliora/library-system/internal/core/ports"
)

// CopyLifecycleService orchestrates borrow/return/reserve/maintenance
// operations on book copies. All state checks live in the BookCopy aggregate;
// this service loads, delegates, and persists with a compare-and-swap on the
// status the row held at load time, so two concurrent borrows of the same copy
// cannot both succeed.
type CopyLifecycleService struct {
	repo   ports.CopyRepository
	audit  ports.AuditPublisher
	logger zerolog.Logger
}

func NewCopyLifecycleService(repo ports.CopyRepository, audit ports.AuditPublisher, logger zerolog.Logger) *CopyLifecycleService {
	return &CopyLifecycleService{repo: repo, audit: audit, logger: logger}
}

// CreateCopies registers Count new copies of a book, numbered C<n> from
// StartNumber. Copy numbers already present for the book are rejected up front.
func (s *CopyLifecycleService) CreateCopies(ctx context.Context, in ports.CreateCopiesInput) ([]ports.CopyView, error) {
	if !in.Caller.HasAnyRole(domain.RoleAdmin, domain.RoleLibrarian) {
		return nil, domain.ErrForbidden
	}
	if in.Count < 1 {
		return nil, fmt.Errorf("%w: count must be at least 1", domain.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	views := make([]ports.CopyView, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		copyNumber := fmt.Sprintf("C%d", in.StartNumber+i)

		exists, err := s.repo.ExistsByBookIDAndCopyNumber(ctx, in.BookID, copyNumber)
		if err != nil {
			return nil, fmt.Errorf("create copies: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("%w: copy number %s already exists for book %s",
				domain.ErrInvalidTransition, copyNumber, in.BookID)
		}

		bc := domain.NewBookCopy(in.BookID, copyNumber, domain.CopyCondition(in.Condition), in.Location, now)
		created, err := s.repo.Insert(ctx, bc)
		if err != nil {
			return nil, fmt.Errorf("create copies: %w", err)
		}

		s.publishAudit(domain.AuditCreate, created.ID, in.Caller.UserID, "copy registered")
		views = append(views, toCopyView(created))
	}

	s.logger.Info().Str("book_id", in.BookID).Int("count", in.Count).Msg("copies created")
	return views, nil
}

// BorrowCopy lends a copy to a member for LoanPeriodDays. A borrower holding
// any overdue copy is blocked before the copy is even loaded.
func (s *CopyLifecycleService) BorrowCopy(ctx context.Context, in ports.BorrowCopyInput) (*ports.CopyView, error) {
	now := time.Now().UTC()

	borrowed, err := s.repo.FindBorrowedByUser(ctx, in.BorrowerID)
	if err != nil {
		return nil, fmt.Errorf("borrow copy: %w", err)
	}
	for _, c := range borrowed {
		if c.IsOverdue(now) {
			s.logger.Info().
				Str("borrower_id", in.BorrowerID).
				Str("overdue_copy", c.ID).
				Msg("borrow blocked, borrower has overdue items")
			return nil, domain.ErrBorrowerHasOverdue
		}
	}

	bc, err := s.repo.FindByID(ctx, in.CopyID)
	if err != nil {
		return nil, err
	}

	loadedStatus := bc.Status
	dueAt := now.AddDate(0, 0, in.LoanPeriodDays)
	if err := bc.BorrowTo(in.BorrowerID, dueAt, now); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, bc, loadedStatus); err != nil {
		return nil, err
	}

	s.publishAudit(domain.AuditUpdate, bc.ID, in.Caller.UserID, "copy borrowed")
	s.logger.Info().
		Str("copy_id", bc.ID).
		Str("borrower_id", in.BorrowerID).
		Time("due_at", dueAt).
		Msg("copy borrowed")

	view := toCopyView(bc)
	return &view, nil
}

// ReturnCopy takes a borrowed copy back and puts it on the shelf.
func (s *CopyLifecycleService) ReturnCopy(ctx context.Context, copyID string, caller ports.Caller) (*ports.CopyView, error) {
	now := time.Now().UTC()

	bc, err := s.repo.FindByID(ctx, copyID)
	if err != nil {
		return nil, err
	}

	loadedStatus := bc.Status
	if err := bc.Return(now); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, bc, loadedStatus); err != nil {
		return nil, err
	}

	s.publishAudit(domain.AuditUpdate, bc.ID, caller.UserID, "copy returned")
	s.logger.Info().Str("copy_id", bc.ID).Msg("copy returned")

	view := toCopyView(bc)
	return &view, nil
}

// ReserveCopy places a hold for a member.
func (s *CopyLifecycleService) ReserveCopy(ctx context.Context, in ports.ReserveCopyInput) (*ports.CopyView, error) {
	now := time.Now().UTC()

	bc, err := s.repo.FindByID(ctx, in.CopyID)
	if err != nil {
		return nil, err
	}

	loadedStatus := bc.Status
	if err := bc.Reserve(now); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, bc, loadedStatus); err != nil {
		return nil, err
	}

	s.publishAudit(domain.AuditUpdate, bc.ID, in.Caller.UserID, "copy reserved")
	s.logger.Info().Str("copy_id", bc.ID).Str("reserver_id", in.ReserverID).Msg("copy reserved")

	view := toCopyView(bc)
	return &view, nil
}

// FindBestAvailableCopy picks the eligible copy of a book with the best
// condition, breaking ties by the lexicographically lowest copy number.
// Returns ErrCopyNotFound when no copy qualifies.
func (s *CopyLifecycleService) FindBestAvailableCopy(ctx context.Context, bookID string) (*ports.CopyView, error) {
	copies, err := s.repo.FindAvailableByBookID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("find best copy: %w", err)
	}

	var best *domain.BookCopy
	for _, c := range copies {
		if !c.CanBeBorrowed() {
			continue
		}
		if best == nil || betterCopy(c, best) {
			best = c
		}
	}
	if best == nil {
		return nil, domain.ErrCopyNotFound
	}

	view := toCopyView(best)
	return &view, nil
}

// betterCopy reports whether a should be picked over b.
func betterCopy(a, b *domain.BookCopy) bool {
	if a.Condition.Priority() != b.Condition.Priority() {
		return a.Condition.Priority() < b.Condition.Priority()
	}
	return a.CopyNumber < b.CopyNumber
}

// CalculateOverdueFine quotes the fine accrued on a copy: whole days elapsed
// since the due date times the daily rate. A copy that is not overdue owes
// nothing. Partial days are not charged.
func (s *CopyLifecycleService) CalculateOverdueFine(ctx context.Context, copyID string, dailyRate float64) (float64, error) {
	now := time.Now().UTC()

	bc, err := s.repo.FindByID(ctx, copyID)
	if err != nil {
		return 0, err
	}
	if !bc.IsOverdue(now) {
		return 0, nil
	}

	daysLate := int64(now.Sub(*bc.DueAt).Hours() / 24)
	return float64(daysLate) * dailyRate, nil
}

// MarkCopiesForMaintenance runs a best-effort sweep: each copy is updated in
// its own round-trip, and an individual failure is recorded and skipped, never
// fatal to the batch.
func (s *CopyLifecycleService) MarkCopiesForMaintenance(ctx context.Context, copyIDs []string, caller ports.Caller) []ports.MaintenanceResult {
	now := time.Now().UTC()
	results := make([]ports.MaintenanceResult, 0, len(copyIDs))

	for _, id := range copyIDs {
		res := ports.MaintenanceResult{CopyID: id}

		bc, err := s.repo.FindByID(ctx, id)
		if err != nil {
			res.Reason = err.Error()
			s.logger.Warn().Err(err).Str("copy_id", id).Msg("maintenance sweep: copy skipped")
			results = append(results, res)
			continue
		}

		loadedStatus := bc.Status
		if err := bc.MarkForMaintenance(now); err != nil {
			res.Reason = err.Error()
			s.logger.Warn().Err(err).Str("copy_id", id).Msg("maintenance sweep: copy skipped")
			results = append(results, res)
			continue
		}
		if err := s.repo.Update(ctx, bc, loadedStatus); err != nil {
			res.Reason = err.Error()
			s.logger.Warn().Err(err).Str("copy_id", id).Msg("maintenance sweep: update failed")
			results = append(results, res)
			continue
		}

		s.publishAudit(domain.AuditUpdate, bc.ID, caller.UserID, "copy sent to maintenance")
		res.Marked = true
		results = append(results, res)
	}

	return results
}

// CompleteMaintenance returns a repaired copy to the shelf with its new condition.
func (s *CopyLifecycleService) CompleteMaintenance(ctx context.Context, copyID, condition string, caller ports.Caller) (*ports.CopyView, error) {
	now := time.Now().UTC()

	bc, err := s.repo.FindByID(ctx, copyID)
	if err != nil {
		return nil, err
	}

	loadedStatus := bc.Status
	if err := bc.CompleteMaintenance(domain.CopyCondition(condition), now); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, bc, loadedStatus); err != nil {
		return nil, err
	}

	s.publishAudit(domain.AuditUpdate, bc.ID, caller.UserID, "maintenance completed")
	view := toCopyView(bc)
	return &view, nil
}

// MarkCopyLost records the administrative, terminal lost state.
func (s *CopyLifecycleService) MarkCopyLost(ctx context.Context, copyID string, caller ports.Caller) (*ports.CopyView, error) {
	if !caller.HasAnyRole(domain.RoleAdmin, domain.RoleLibrarian) {
		return nil, domain.ErrForbidden
	}
	now := time.Now().UTC()

	bc, err := s.repo.FindByID(ctx, copyID)
	if err != nil {
		return nil, err
	}

	loadedStatus := bc.Status
	if err := bc.MarkLost(now); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, bc, loadedStatus); err != nil {
		return nil, err
	}

	s.publishAudit(domain.AuditUpdate, bc.ID, caller.UserID, "copy marked lost")
	s.logger.Info().Str("copy_id", bc.ID).Msg("copy marked lost")

	view := toCopyView(bc)
	return &view, nil
}

// ListOverdueCopies reports every copy currently out past its due date.
func (s *CopyLifecycleService) ListOverdueCopies(ctx context.Context) ([]ports.CopyView, error) {
	copies, err := s.repo.FindOverdue(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}

	views := make([]ports.CopyView, 0, len(copies))
	for _, c := range copies {
		views = append(views, toCopyView(c))
	}
	return views, nil
}

// ListCopiesDueWithin reports borrowed copies whose due date falls inside the
// next `days` days, the input for courtesy reminders.
func (s *CopyLifecycleService) ListCopiesDueWithin(ctx context.Context, days int) ([]ports.CopyView, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days must be at least 1", domain.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	copies, err := s.repo.FindDueBetween(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("list due soon: %w", err)
	}

	views := make([]ports.CopyView, 0, len(copies))
	for _, c := range copies {
		views = append(views, toCopyView(c))
	}
	return views, nil
}

// GetStatistics aggregates circulation counts and derived rates for one book.
// Rates are percentages over the total copy count; a book with no copies
// reports zero rates.
func (s *CopyLifecycleService) GetStatistics(ctx context.Context, bookID string) (*ports.CopyStatistics, error) {
	copies, err := s.repo.FindByBookID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("copy statistics: %w", err)
	}

	stats := &ports.CopyStatistics{Total: int64(len(copies))}
	for _, c := range copies {
		switch c.Status {
		case domain.CopyAvailable:
			stats.Available++
		case domain.CopyBorrowed:
			stats.Borrowed++
		case domain.CopyReserved:
			stats.Reserved++
		case domain.CopyMaintenance:
			stats.Maintenance++
		}
	}
	if stats.Total > 0 {
		stats.AvailabilityRate = float64(stats.Available) / float64(stats.Total) * 100
		stats.UtilizationRate = float64(stats.Borrowed) / float64(stats.Total) * 100
	}
	return stats, nil
}

// CanBookBeDeleted reports whether no copy of the book is currently out on
// loan. Reserved and maintenance copies do not block deletion.
func (s *CopyLifecycleService) CanBookBeDeleted(ctx context.Context, bookID string) (bool, error) {
	copies, err := s.repo.FindByBookID(ctx, bookID)
	if err != nil {
		return false, fmt.Errorf("can delete book: %w", err)
	}
	for _, c := range copies {
		if c.Status == domain.CopyBorrowed {
			return false, nil
		}
	}
	return true, nil
}

// DeleteCopy soft-deletes an idle copy. The row is kept for audit history.
func (s *CopyLifecycleService) DeleteCopy(ctx context.Context, copyID string, caller ports.Caller) error {
	if !caller.HasAnyRole(domain.RoleAdmin, domain.RoleLibrarian) {
		return domain.ErrForbidden
	}
	now := time.Now().UTC()

	bc, err := s.repo.FindByID(ctx, copyID)
	if err != nil {
		return err
	}
	if err := bc.SoftDelete(now); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, bc.ID, now); err != nil {
		return fmt.Errorf("delete copy: %w", err)
	}

	s.publishAudit(domain.AuditDelete, bc.ID, caller.UserID, "copy soft-deleted")
	s.logger.Info().Str("copy_id", bc.ID).Msg("copy soft-deleted")
	return nil
}

func (s *CopyLifecycleService) publishAudit(action, entityID, actor, payload string) {
	s.audit.Publish(domain.AuditEvent{
		Action:     action,
		EntityType: domain.EntityBookCopy,
		EntityID:   entityID,
		Payload:    payload,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	})
}

func toCopyView(c *domain.BookCopy) ports.CopyView {
	v := ports.CopyView{
		ID:         c.ID,
		BookID:     c.BookID,
		CopyNumber: c.CopyNumber,
		Status:     string(c.Status),
		Condition:  string(c.Condition),
		Location:   c.Location,
		BorrowedAt: c.BorrowedAt,
		DueAt:      c.DueAt,
	}
	if c.BorrowedBy != nil {
		v.BorrowedBy = *c.BorrowedBy
	}
	return v
}
