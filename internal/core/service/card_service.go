package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bibliora/library-system/internal/core/domain"
	"github.com/bibliora/library-system/internal/core/ports"
)

// maxCardNumberAttempts bounds the issue loop. The unique index on
// card_number is the authority; the loop only recovers from races between the
// existence check and the insert.
const maxCardNumberAttempts = 10

// ActiveCardCache is the optional hot-path cache for HasActiveCard lookups
// (backed by Redis). A miss or cache error falls through to the repository.
type ActiveCardCache interface {
	Get(ctx context.Context, userID string) (active bool, found bool, err error)
	Set(ctx context.Context, userID string, active bool) error
	Invalidate(ctx context.Context, userID string) error
}

// CardLifecycleService orchestrates library-card issuing, status transitions
// and deactivation, with role checks on every mutating operation.
type CardLifecycleService struct {
	cards  ports.CardRepository
	users  ports.UserRepository
	cache  ActiveCardCache
	audit  ports.AuditPublisher
	logger zerolog.Logger
}

func NewCardLifecycleService(
	cards ports.CardRepository,
	users ports.UserRepository,
	cache ActiveCardCache,
	audit ports.AuditPublisher,
	logger zerolog.Logger,
) *CardLifecycleService {
	return &CardLifecycleService{cards: cards, users: users, cache: cache, audit: audit, logger: logger}
}

// CreateCard issues a new card for an active user. The card number is drawn
// at random and checked for uniqueness; the insert retries on a duplicate-key
// collision up to maxCardNumberAttempts before giving up.
func (s *CardLifecycleService) CreateCard(ctx context.Context, in ports.CreateCardInput) (*ports.CardView, error) {
	if !in.Caller.HasAnyRole(domain.RoleAdmin, domain.RoleLibrarian) {
		return nil, domain.ErrForbidden
	}

	user, err := s.users.FindByKeycloakID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, fmt.Errorf("%w: cannot issue a card for user %s", domain.ErrUserInactive, in.UserID)
	}

	now := time.Now().UTC()
	for attempt := 1; attempt <= maxCardNumberAttempts; attempt++ {
		candidate := generateCardNumber()

		exists, err := s.cards.ExistsByCardNumber(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("create card: %w", err)
		}
		if exists {
			s.logger.Debug().Str("card_number", candidate).Int("attempt", attempt).Msg("card number collision")
			continue
		}

		card := domain.NewLibraryCard(candidate, in.UserID, in.ExpiresAt, now)
		created, err := s.cards.Insert(ctx, card)
		if errors.Is(err, domain.ErrCardNumberTaken) {
			// Another writer claimed the number between the check and the
			// insert; draw again.
			s.logger.Debug().Str("card_number", candidate).Int("attempt", attempt).Msg("card number lost insert race")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create card: %w", err)
		}

		if err := s.cache.Invalidate(ctx, in.UserID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", in.UserID).Msg("active-card cache invalidation failed")
		}
		s.publishAudit(domain.AuditCreate, created.ID, in.Caller.UserID, "card issued")
		s.logger.Info().
			Str("card_id", created.ID).
			Str("card_number", created.CardNumber).
			Str("user_id", in.UserID).
			Msg("library card issued")

		view := toCardView(created)
		return &view, nil
	}

	return nil, domain.ErrCardNumberExhausted
}

// UpdateCardStatus applies a validated status transition.
func (s *CardLifecycleService) UpdateCardStatus(ctx context.Context, cardID, newStatus string, caller ports.Caller) (*ports.CardView, error) {
	if !caller.HasAnyRole(domain.RoleAdmin, domain.RoleLibrarian) {
		return nil, domain.ErrForbidden
	}

	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := card.TransitionTo(domain.CardStatus(newStatus), now); err != nil {
		return nil, err
	}
	if err := s.cards.Update(ctx, card); err != nil {
		return nil, fmt.Errorf("update card status: %w", err)
	}

	if err := s.cache.Invalidate(ctx, card.UserID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", card.UserID).Msg("active-card cache invalidation failed")
	}
	s.publishAudit(domain.AuditUpdate, card.ID, caller.UserID, "card status changed to "+newStatus)
	s.logger.Info().Str("card_id", card.ID).Str("status", newStatus).Msg("card status updated")

	view := toCardView(card)
	return &view, nil
}

// GetUserCards lists a user's cards. Members may only see their own; staff
// may see anyone's.
func (s *CardLifecycleService) GetUserCards(ctx context.Context, userID string, caller ports.Caller) ([]ports.CardView, error) {
	if caller.UserID != userID && !caller.HasAnyRole(domain.RoleAdmin, domain.RoleLibrarian) {
		return nil, domain.ErrForbidden
	}

	cards, err := s.cards.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user cards: %w", err)
	}

	views := make([]ports.CardView, len(cards))
	for i, c := range cards {
		views[i] = toCardView(c)
	}
	return views, nil
}

// HasActiveCard reports whether the user holds at least one active card. The
// answer is cached briefly; cache errors fall through to the repository.
func (s *CardLifecycleService) HasActiveCard(ctx context.Context, userID string) (bool, error) {
	if active, found, err := s.cache.Get(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("active-card cache read failed")
	} else if found {
		return active, nil
	}

	count, err := s.cards.CountActiveByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("has active card: %w", err)
	}
	active := count > 0

	if err := s.cache.Set(ctx, userID, active); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("active-card cache write failed")
	}
	return active, nil
}

// DeactivateCard soft-deletes a card; the row survives for audit history.
func (s *CardLifecycleService) DeactivateCard(ctx context.Context, cardID string, caller ports.Caller) error {
	if !caller.HasAnyRole(domain.RoleAdmin, domain.RoleLibrarian) {
		return domain.ErrForbidden
	}

	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.cards.SoftDelete(ctx, card.ID, now, caller.UserID); err != nil {
		return fmt.Errorf("deactivate card: %w", err)
	}

	if err := s.cache.Invalidate(ctx, card.UserID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", card.UserID).Msg("active-card cache invalidation failed")
	}
	s.publishAudit(domain.AuditDelete, card.ID, caller.UserID, "card deactivated")
	s.logger.Info().Str("card_id", card.ID).Msg("library card deactivated")
	return nil
}

func (s *CardLifecycleService) publishAudit(action, entityID, actor, payload string) {
	s.audit.Publish(domain.AuditEvent{
		Action:     action,
		EntityType: domain.EntityLibraryCard,
		EntityID:   entityID,
		Payload:    payload,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	})
}

// generateCardNumber returns a candidate card number in the format LIB-XXXXXXXX.
func generateCardNumber() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// fallback: use current nanoseconds
		return fmt.Sprintf("LIB-%08X", time.Now().UnixNano()&0xFFFFFFFF)
	}
	return fmt.Sprintf("LIB-%08X", b)
}

func toCardView(c *domain.LibraryCard) ports.CardView {
	return ports.CardView{
		ID:         c.ID,
		CardNumber: c.CardNumber,
		UserID:     c.UserID,
		Status:     string(c.Status),
		IssuedAt:   c.IssuedAt,
		ExpiresAt:  c.ExpiresAt,
	}
}
