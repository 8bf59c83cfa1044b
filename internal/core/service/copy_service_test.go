package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bibliora/library-system/internal/core/domain"
	"github.com/bibliora/library-system/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repository with a mutex-guarded CAS, mirroring the filtered
// UpdateOne the Mongo repository issues.
// ---------------------------------------------------------------------------

type stubCopyRepo struct {
	mu     sync.Mutex
	copies map[string]*domain.BookCopy
	nextID int
}

func newStubCopyRepo() *stubCopyRepo {
	return &stubCopyRepo{copies: make(map[string]*domain.BookCopy)}
}

func (r *stubCopyRepo) seed(c *domain.BookCopy) *domain.BookCopy {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	clone := *c
	if clone.ID == "" {
		clone.ID = fmt.Sprintf("copy-%d", r.nextID)
	}
	r.copies[clone.ID] = &clone
	return &clone
}

func (r *stubCopyRepo) FindByID(_ context.Context, id string) (*domain.BookCopy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.copies[id]
	if !ok || c.DeletedAt != nil {
		return nil, domain.ErrCopyNotFound
	}
	clone := *c
	return &clone, nil
}

func (r *stubCopyRepo) FindByBookID(_ context.Context, bookID string) ([]*domain.BookCopy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.BookCopy
	for _, c := range r.copies {
		if c.BookID == bookID && c.DeletedAt == nil {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubCopyRepo) FindAvailableByBookID(_ context.Context, bookID string) ([]*domain.BookCopy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.BookCopy
	for _, c := range r.copies {
		if c.BookID == bookID && c.Status == domain.CopyAvailable && c.DeletedAt == nil {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubCopyRepo) FindBorrowedByUser(_ context.Context, userID string) ([]*domain.BookCopy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.BookCopy
	for _, c := range r.copies {
		if c.BorrowedBy != nil && *c.BorrowedBy == userID && c.DeletedAt == nil {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubCopyRepo) FindOverdue(_ context.Context, now time.Time) ([]*domain.BookCopy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.BookCopy
	for _, c := range r.copies {
		if c.IsOverdue(now) && c.DeletedAt == nil {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubCopyRepo) FindDueBetween(_ context.Context, from, to time.Time) ([]*domain.BookCopy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.BookCopy
	for _, c := range r.copies {
		if c.DueAt != nil && !c.DueAt.Before(from) && !c.DueAt.After(to) {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubCopyRepo) ExistsByBookIDAndCopyNumber(_ context.Context, bookID, copyNumber string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.copies {
		if c.BookID == bookID && c.CopyNumber == copyNumber && c.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubCopyRepo) CountByBookID(_ context.Context, bookID string) (int64, error) {
	list, _ := r.FindByBookID(context.Background(), bookID)
	return int64(len(list)), nil
}

func (r *stubCopyRepo) CountAvailableByBookID(_ context.Context, bookID string) (int64, error) {
	list, _ := r.FindAvailableByBookID(context.Background(), bookID)
	return int64(len(list)), nil
}

func (r *stubCopyRepo) Insert(_ context.Context, c *domain.BookCopy) (*domain.BookCopy, error) {
	return r.seed(c), nil
}

// Update applies the same compare-and-swap the Mongo repository does: the
// write only lands if the stored row still holds expectedStatus.
func (r *stubCopyRepo) Update(_ context.Context, c *domain.BookCopy, expectedStatus domain.CopyStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.copies[c.ID]
	if !ok || stored.DeletedAt != nil {
		return domain.ErrCopyNotFound
	}
	if stored.Status != expectedStatus {
		return domain.ErrCopyConflict
	}
	clone := *c
	r.copies[c.ID] = &clone
	return nil
}

func (r *stubCopyRepo) SoftDelete(_ context.Context, id string, deletedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.copies[id]
	if !ok {
		return domain.ErrCopyNotFound
	}
	c.DeletedAt = &deletedAt
	return nil
}

type stubAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *stubAudit) Publish(e domain.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *stubAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var staffCaller = ports.Caller{UserID: "kc-staff", Role: domain.RoleLibrarian}

func newCopySvc(repo *stubCopyRepo) (*CopyLifecycleService, *stubAudit) {
	audit := &stubAudit{}
	return NewCopyLifecycleService(repo, audit, zerolog.Nop()), audit
}

func seedCopy(repo *stubCopyRepo, bookID, num string, status domain.CopyStatus, cond domain.CopyCondition) *domain.BookCopy {
	now := time.Now().UTC()
	c := domain.NewBookCopy(bookID, num, cond, "shelf A1", now)
	c.Status = status
	return repo.seed(c)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestBorrowCopy_HappyPath(t *testing.T) {
	repo := newStubCopyRepo()
	seeded := seedCopy(repo, "book-1", "C1", domain.CopyAvailable, domain.ConditionGood)
	svc, audit := newCopySvc(repo)

	view, err := svc.BorrowCopy(context.Background(), ports.BorrowCopyInput{
		CopyID: seeded.ID, BorrowerID: "kc-member", LoanPeriodDays: 14, Caller: staffCaller,
	})
	if err != nil {
		t.Fatalf("expected borrow to succeed, got: %v", err)
	}
	if view.Status != string(domain.CopyBorrowed) || view.BorrowedBy != "kc-member" {
		t.Fatalf("unexpected view: %+v", view)
	}

	stored, _ := repo.FindByID(context.Background(), seeded.ID)
	if stored.Status != domain.CopyBorrowed {
		t.Fatalf("row not persisted as borrowed: %s", stored.Status)
	}
	wantDue := time.Now().UTC().AddDate(0, 0, 14)
	if stored.DueAt.Sub(wantDue) > time.Minute || wantDue.Sub(*stored.DueAt) > time.Minute {
		t.Fatalf("due date not ~14 days out: %v", stored.DueAt)
	}
	if audit.count() != 1 {
		t.Fatalf("expected 1 audit event, got %d", audit.count())
	}
}

func TestBorrowCopy_BlockedByOverdueItem(t *testing.T) {
	repo := newStubCopyRepo()
	now := time.Now().UTC()

	// The member already holds a copy three days overdue.
	held := seedCopy(repo, "book-2", "C1", domain.CopyAvailable, domain.ConditionGood)
	loaded, _ := repo.FindByID(context.Background(), held.ID)
	if err := loaded.BorrowTo("kc-member", now.AddDate(0, 0, -3), now.AddDate(0, 0, -17)); err != nil {
		t.Fatalf("seed borrow failed: %v", err)
	}
	if err := repo.Update(context.Background(), loaded, domain.CopyAvailable); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}

	target := seedCopy(repo, "book-1", "C1", domain.CopyAvailable, domain.ConditionGood)
	svc, _ := newCopySvc(repo)

	_, err := svc.BorrowCopy(context.Background(), ports.BorrowCopyInput{
		CopyID: target.ID, BorrowerID: "kc-member", LoanPeriodDays: 14, Caller: staffCaller,
	})
	if !errors.Is(err, domain.ErrBorrowerHasOverdue) {
		t.Fatalf("expected ErrBorrowerHasOverdue, got: %v", err)
	}

	stored, _ := repo.FindByID(context.Background(), target.ID)
	if stored.Status != domain.CopyAvailable {
		t.Fatalf("target copy mutated by blocked borrow: %s", stored.Status)
	}
}

func TestBorrowCopy_NotFound(t *testing.T) {
	repo := newStubCopyRepo()
	svc, _ := newCopySvc(repo)

	_, err := svc.BorrowCopy(context.Background(), ports.BorrowCopyInput{
		CopyID: "missing", BorrowerID: "kc-member", LoanPeriodDays: 14, Caller: staffCaller,
	})
	if !errors.Is(err, domain.ErrCopyNotFound) {
		t.Fatalf("expected ErrCopyNotFound, got: %v", err)
	}
}

func TestReturnCopy_RoundTrip(t *testing.T) {
	repo := newStubCopyRepo()
	seeded := seedCopy(repo, "book-1", "C1", domain.CopyAvailable, domain.ConditionGood)
	svc, _ := newCopySvc(repo)

	if _, err := svc.BorrowCopy(context.Background(), ports.BorrowCopyInput{
		CopyID: seeded.ID, BorrowerID: "kc-member", LoanPeriodDays: 14, Caller: staffCaller,
	}); err != nil {
		t.Fatalf("borrow failed: %v", err)
	}

	view, err := svc.ReturnCopy(context.Background(), seeded.ID, staffCaller)
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if view.Status != string(domain.CopyAvailable) || view.BorrowedBy != "" || view.DueAt != nil {
		t.Fatalf("loan fields not cleared: %+v", view)
	}
}

func TestFindBestAvailableCopy_ConditionThenNumber(t *testing.T) {
	repo := newStubCopyRepo()
	seedCopy(repo, "book-1", "C2", domain.CopyAvailable, domain.ConditionGood)
	seedCopy(repo, "book-1", "C1", domain.CopyAvailable, domain.ConditionNew)
	seedCopy(repo, "book-1", "C3", domain.CopyAvailable, domain.ConditionNew)
	svc, _ := newCopySvc(repo)

	best, err := svc.FindBestAvailableCopy(context.Background(), "book-1")
	if err != nil {
		t.Fatalf("expected a best copy, got: %v", err)
	}
	if best.CopyNumber != "C1" {
		t.Fatalf("expected C1 (best condition, lowest number), got %s", best.CopyNumber)
	}
}

func TestFindBestAvailableCopy_SkipsDamagedAndEmpty(t *testing.T) {
	repo := newStubCopyRepo()
	seedCopy(repo, "book-1", "C1", domain.CopyAvailable, domain.ConditionDamaged)
	svc, _ := newCopySvc(repo)

	_, err := svc.FindBestAvailableCopy(context.Background(), "book-1")
	if !errors.Is(err, domain.ErrCopyNotFound) {
		t.Fatalf("expected ErrCopyNotFound when only a damaged copy exists, got: %v", err)
	}
}

func TestCalculateOverdueFine(t *testing.T) {
	repo := newStubCopyRepo()
	now := time.Now().UTC()

	seeded := seedCopy(repo, "book-1", "C1", domain.CopyAvailable, domain.ConditionGood)
	loaded, _ := repo.FindByID(context.Background(), seeded.ID)
	// Due exactly 3 days (and a bit) ago; the partial day is not charged.
	if err := loaded.BorrowTo("kc-member", now.Add(-73*time.Hour), now.AddDate(0, 0, -17)); err != nil {
		t.Fatalf("seed borrow failed: %v", err)
	}
	if err := repo.Update(context.Background(), loaded, domain.CopyAvailable); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}

	svc, _ := newCopySvc(repo)
	fine, err := svc.CalculateOverdueFine(context.Background(), seeded.ID, 2.0)
	if err != nil {
		t.Fatalf("fine calculation failed: %v", err)
	}
	if fine != 6.0 {
		t.Fatalf("expected fine 6.0 for 3 whole days at 2.0/day, got %v", fine)
	}
}

func TestCalculateOverdueFine_NotOverdue(t *testing.T) {
	repo := newStubCopyRepo()
	seeded := seedCopy(repo, "book-1", "C1", domain.CopyAvailable, domain.ConditionGood)
	svc, _ := newCopySvc(repo)

	fine, err := svc.CalculateOverdueFine(context.Background(), seeded.ID, 2.0)
	if err != nil {
		t.Fatalf("fine calculation failed: %v", err)
	}
	if fine != 0 {
		t.Fatalf("expected zero fine for a copy that is not overdue, got %v", fine)
	}
}

func TestMarkCopiesForMaintenance_PartialFailure(t *testing.T) {
	repo := newStubCopyRepo()
	ok1 := seedCopy(repo, "book-1", "C1", domain.CopyAvailable, domain.ConditionFair)
	bad := seedCopy(repo, "book-1", "C2", domain.CopyBorrowed, domain.ConditionFair)
	ok2 := seedCopy(repo, "book-1", "C3", domain.CopyAvailable, domain.ConditionPoor)
	svc, _ := newCopySvc(repo)

	results := svc.MarkCopiesForMaintenance(context.Background(),
		[]string{ok1.ID, bad.ID, "missing", ok2.ID}, staffCaller)

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if !results[0].Marked || !results[3].Marked {
		t.Fatalf("available copies should be marked: %+v", results)
	}
	if results[1].Marked || results[2].Marked {
		t.Fatalf("borrowed/missing copies should be skipped: %+v", results)
	}
	if results[1].Reason == "" || results[2].Reason == "" {
		t.Fatalf("skipped copies must carry a reason: %+v", results)
	}

	stored, _ := repo.FindByID(context.Background(), ok2.ID)
	if stored.Status != domain.CopyMaintenance {
		t.Fatalf("sweep stopped early, C3 not marked: %s", stored.Status)
	}
}

func TestGetStatistics(t *testing.T) {
	repo := newStubCopyRepo()
	for i := 0; i < 6; i++ {
		seedCopy(repo, "book-1", fmt.Sprintf("A%d", i), domain.CopyAvailable, domain.ConditionGood)
	}
	for i := 0; i < 3; i++ {
		seedCopy(repo, "book-1", fmt.Sprintf("B%d", i), domain.CopyBorrowed, domain.ConditionGood)
	}
	seedCopy(repo, "book-1", "M0", domain.CopyMaintenance, domain.ConditionPoor)
	svc, _ := newCopySvc(repo)

	stats, err := svc.GetStatistics(context.Background(), "book-1")
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if stats.Total != 10 || stats.Available != 6 || stats.Borrowed != 3 || stats.Maintenance != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.AvailabilityRate != 60.0 {
		t.Fatalf("expected availability 60.0, got %v", stats.AvailabilityRate)
	}
	if stats.UtilizationRate != 30.0 {
		t.Fatalf("expected utilization 30.0, got %v", stats.UtilizationRate)
	}
}

func TestGetStatistics_NoCopies(t *testing.T) {
	repo := newStubCopyRepo()
	svc, _ := newCopySvc(repo)

	stats, err := svc.GetStatistics(context.Background(), "book-1")
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if stats.Total != 0 || stats.AvailabilityRate != 0 || stats.UtilizationRate != 0 {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
}

func TestCanBookBeDeleted(t *testing.T) {
	repo := newStubCopyRepo()
	seedCopy(repo, "book-1", "C1", domain.CopyReserved, domain.ConditionGood)
	seedCopy(repo, "book-1", "C2", domain.CopyMaintenance, domain.ConditionFair)
	svc, _ := newCopySvc(repo)

	ok, err := svc.CanBookBeDeleted(context.Background(), "book-1")
	if err != nil || !ok {
		t.Fatalf("reserved/maintenance copies must not block deletion: ok=%v err=%v", ok, err)
	}

	seedCopy(repo, "book-1", "C3", domain.CopyBorrowed, domain.ConditionGood)
	ok, err = svc.CanBookBeDeleted(context.Background(), "book-1")
	if err != nil || ok {
		t.Fatalf("a borrowed copy must block deletion: ok=%v err=%v", ok, err)
	}
}

func TestCreateCopies(t *testing.T) {
	repo := newStubCopyRepo()
	svc, audit := newCopySvc(repo)

	views, err := svc.CreateCopies(context.Background(), ports.CreateCopiesInput{
		BookID: "book-1", Count: 3, StartNumber: 1,
		Condition: string(domain.ConditionNew), Location: "shelf B2", Caller: staffCaller,
	})
	if err != nil {
		t.Fatalf("create copies failed: %v", err)
	}
	if len(views) != 3 || views[0].CopyNumber != "C1" || views[2].CopyNumber != "C3" {
		t.Fatalf("unexpected copies: %+v", views)
	}
	if audit.count() != 3 {
		t.Fatalf("expected 3 audit events, got %d", audit.count())
	}

	// Duplicate numbering is rejected.
	if _, err := svc.CreateCopies(context.Background(), ports.CreateCopiesInput{
		BookID: "book-1", Count: 1, StartNumber: 2,
		Condition: string(domain.ConditionNew), Caller: staffCaller,
	}); err == nil {
		t.Fatalf("expected duplicate copy number to be rejected")
	}

	// Member role cannot register copies.
	if _, err := svc.CreateCopies(context.Background(), ports.CreateCopiesInput{
		BookID: "book-2", Count: 1, StartNumber: 1,
		Condition: string(domain.ConditionNew), Caller: ports.Caller{UserID: "kc-m", Role: domain.RoleMember},
	}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got: %v", err)
	}
}

func TestDeleteCopy(t *testing.T) {
	repo := newStubCopyRepo()
	idle := seedCopy(repo, "book-1", "C1", domain.CopyAvailable, domain.ConditionGood)
	busy := seedCopy(repo, "book-1", "C2", domain.CopyBorrowed, domain.ConditionGood)
	svc, _ := newCopySvc(repo)

	if err := svc.DeleteCopy(context.Background(), idle.ID, staffCaller); err != nil {
		t.Fatalf("delete of idle copy failed: %v", err)
	}
	if _, err := repo.FindByID(context.Background(), idle.ID); !errors.Is(err, domain.ErrCopyNotFound) {
		t.Fatalf("soft-deleted copy still visible")
	}

	if err := svc.DeleteCopy(context.Background(), busy.ID, staffCaller); err == nil {
		t.Fatalf("expected delete of borrowed copy to fail")
	}
}

// Two concurrent borrows of the same available copy: exactly one wins, the
// loser gets a conflict, and the row ends up borrowed by exactly one member.
func TestBorrowCopy_ConcurrentBorrowSingleWinner(t *testing.T) {
	repo := newStubCopyRepo()
	seeded := seedCopy(repo, "book-1", "C1", domain.CopyAvailable, domain.ConditionGood)
	svc, _ := newCopySvc(repo)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	borrowers := []string{"kc-alice", "kc-bob"}

	// Both goroutines load the copy before either saves, forcing the race
	// through the repository's CAS.
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.BorrowCopy(context.Background(), ports.BorrowCopyInput{
				CopyID: seeded.ID, BorrowerID: borrowers[i], LoanPeriodDays: 14, Caller: staffCaller,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrCopyConflict) || errors.Is(err, domain.ErrCopyNotAvailable):
			conflicts++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner and one conflict, got %d/%d (errs=%v)", successes, conflicts, errs)
	}

	stored, _ := repo.FindByID(context.Background(), seeded.ID)
	if stored.Status != domain.CopyBorrowed || stored.BorrowedBy == nil {
		t.Fatalf("row must end borrowed with one borrower: %+v", stored)
	}
}

func TestListOverdueCopies(t *testing.T) {
	repo := newStubCopyRepo()
	now := time.Now().UTC()

	// One copy three days overdue, one due next week, one on the shelf.
	late := seedCopy(repo, "book-1", "C1", domain.CopyAvailable, domain.ConditionGood)
	loaded, _ := repo.FindByID(context.Background(), late.ID)
	if err := loaded.BorrowTo("kc-member", now.AddDate(0, 0, -3), now.AddDate(0, 0, -17)); err != nil {
		t.Fatalf("seed borrow failed: %v", err)
	}
	if err := repo.Update(context.Background(), loaded, domain.CopyAvailable); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}

	onTime := seedCopy(repo, "book-1", "C2", domain.CopyAvailable, domain.ConditionGood)
	loaded, _ = repo.FindByID(context.Background(), onTime.ID)
	if err := loaded.BorrowTo("kc-other", now.AddDate(0, 0, 7), now); err != nil {
		t.Fatalf("seed borrow failed: %v", err)
	}
	if err := repo.Update(context.Background(), loaded, domain.CopyAvailable); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}
	seedCopy(repo, "book-1", "C3", domain.CopyAvailable, domain.ConditionGood)

	svc, _ := newCopySvc(repo)
	views, err := svc.ListOverdueCopies(context.Background())
	if err != nil {
		t.Fatalf("expected listing to succeed, got: %v", err)
	}
	if len(views) != 1 || views[0].ID != late.ID {
		t.Fatalf("expected exactly the overdue copy, got: %+v", views)
	}
}

func TestListCopiesDueWithin(t *testing.T) {
	repo := newStubCopyRepo()
	now := time.Now().UTC()

	seedBorrowed := func(num string, dueInDays int) *domain.BookCopy {
		c := seedCopy(repo, "book-1", num, domain.CopyAvailable, domain.ConditionGood)
		loaded, _ := repo.FindByID(context.Background(), c.ID)
		if err := loaded.BorrowTo("kc-member", now.AddDate(0, 0, dueInDays), now); err != nil {
			t.Fatalf("seed borrow failed: %v", err)
		}
		if err := repo.Update(context.Background(), loaded, domain.CopyAvailable); err != nil {
			t.Fatalf("seed update failed: %v", err)
		}
		return c
	}

	soon := seedBorrowed("C1", 2)
	seedBorrowed("C2", 10)

	svc, _ := newCopySvc(repo)
	views, err := svc.ListCopiesDueWithin(context.Background(), 3)
	if err != nil {
		t.Fatalf("expected listing to succeed, got: %v", err)
	}
	if len(views) != 1 || views[0].ID != soon.ID {
		t.Fatalf("expected only the copy due in 2 days, got: %+v", views)
	}

	if _, err := svc.ListCopiesDueWithin(context.Background(), 0); err == nil {
		t.Fatalf("expected a zero-day window to be rejected")
	}
}
