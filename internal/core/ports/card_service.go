package ports

import (
	"context"
	"time"
)

// CreateCardInput carries the parameters for issuing a new library card.
type CreateCardInput struct {
	UserID    string // keycloak id of the card owner
	ExpiresAt time.Time
	Caller    Caller
}

// CardView is the service-level projection of a library card.
type CardView struct {
	ID         string
	CardNumber string
	UserID     string
	Status     string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// CardService defines the use-case operations on the library-card lifecycle.
type CardService interface {
	CreateCard(ctx context.Context, in CreateCardInput) (*CardView, error)
	UpdateCardStatus(ctx context.Context, cardID, newStatus string, caller Caller) (*CardView, error)
	GetUserCards(ctx context.Context, userID string, caller Caller) ([]CardView, error)
	HasActiveCard(ctx context.Context, userID string) (bool, error)
	DeactivateCard(ctx context.Context, cardID string, caller Caller) error
}
