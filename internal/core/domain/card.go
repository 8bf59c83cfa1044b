package domain

import (
	"fmt"
	"time"
)

// CardStatus represents the lifecycle state of a library card.
type CardStatus string

const (
	CardActive  CardStatus = "active"
	CardExpired CardStatus = "expired"
	CardLost    CardStatus = "lost"
	CardBlocked CardStatus = "blocked"
)

// LibraryCard is a member's borrowing credential. It references its owner by
// the user's external identity key only; the User aggregate is never embedded.
//
// The card number is assigned at issue time and immutable afterwards.
type LibraryCard struct {
	ID         string     `json:"id" bson:"_id,omitempty"`
	CardNumber string     `json:"card_number" bson:"card_number"`
	UserID     string     `json:"user_id" bson:"user_id"`
	Status     CardStatus `json:"status" bson:"status"`
	IssuedAt   time.Time  `json:"issued_at" bson:"issued_at"`
	ExpiresAt  time.Time  `json:"expires_at" bson:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

// NewLibraryCard issues a new active card.
func NewLibraryCard(cardNumber, userID string, expiresAt time.Time, now time.Time) *LibraryCard {
	return &LibraryCard{
		CardNumber: cardNumber,
		UserID:     userID,
		Status:     CardActive,
		IssuedAt:   now,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo moves the card to a new status. A transition must change state,
// and a lost card can never go straight back to active; the member is issued a
// replacement card instead.
func (lc *LibraryCard) TransitionTo(next CardStatus, now time.Time) error {
	if lc.Status == next {
		return fmt.Errorf("%w: card %s is already %s", ErrInvalidTransition, lc.CardNumber, next)
	}
	if lc.Status == CardLost && next == CardActive {
		return fmt.Errorf("%w: a lost card cannot be reactivated, issue a new card", ErrInvalidTransition)
	}
	lc.Status = next
	lc.UpdatedAt = now
	return nil
}

// IsExpired reports whether the card's validity window has passed, regardless
// of its recorded status.
func (lc *LibraryCard) IsExpired(now time.Time) bool {
	return lc.ExpiresAt.Before(now)
}

// SoftDelete deactivates the card without removing the row.
func (lc *LibraryCard) SoftDelete(now time.Time) {
	lc.DeletedAt = &now
	lc.UpdatedAt = now
}
