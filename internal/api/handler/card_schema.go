package handler

import "time"

type createCardRequest struct {
	UserID    string `json:"user_id"    validate:"required"`
	ExpiresAt string `json:"expires_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type updateCardStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active expired lost blocked"`
}

type cardResponse struct {
	ID         string    `json:"id"`
	CardNumber string    `json:"card_number"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type listCardsResponse struct {
	Data  []cardResponse `json:"data"`
	Count int            `json:"count"`
}

type activeCardResponse struct {
	UserID string `json:"user_id"`
	Active bool   `json:"active"`
}
