package ports

import (
	"context"
	"time"

	"github.com/bibliora/library-system/internal/core/domain"
)

// CardRepository defines persistence operations for library cards. All lookups
// exclude soft-deleted rows.
type CardRepository interface {
	FindByID(ctx context.Context, id string) (*domain.LibraryCard, error)
	FindByUserID(ctx context.Context, userID string) ([]*domain.LibraryCard, error)
	ExistsByCardNumber(ctx context.Context, cardNumber string) (bool, error)
	CountActiveByUserID(ctx context.Context, userID string) (int64, error)

	// Insert persists a new card. The storage layer holds a unique index on
	// card_number; a collision surfaces as domain.ErrCardNumberTaken so the
	// issue loop can draw a fresh candidate.
	Insert(ctx context.Context, card *domain.LibraryCard) (*domain.LibraryCard, error)

	Update(ctx context.Context, card *domain.LibraryCard) error
	SoftDelete(ctx context.Context, id string, deletedAt time.Time, deletedBy string) error
}

// UserRepository resolves referenced users. The core only reads users; account
// management lives outside this service.
type UserRepository interface {
	FindByKeycloakID(ctx context.Context, keycloakID string) (*domain.User, error)
}
