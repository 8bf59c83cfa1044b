package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bibliora/library-system/internal/core/domain"
	"github.com/bibliora/library-system/internal/core/ports"
)

type stubCardService struct {
	createFn    func(ctx context.Context, in ports.CreateCardInput) (*ports.CardView, error)
	updateFn    func(ctx context.Context, cardID, newStatus string, caller ports.Caller) (*ports.CardView, error)
	listFn      func(ctx context.Context, userID string, caller ports.Caller) ([]ports.CardView, error)
	hasActiveFn func(ctx context.Context, userID string) (bool, error)
}

func (s *stubCardService) CreateCard(ctx context.Context, in ports.CreateCardInput) (*ports.CardView, error) {
	return s.createFn(ctx, in)
}

func (s *stubCardService) UpdateCardStatus(ctx context.Context, cardID, newStatus string, caller ports.Caller) (*ports.CardView, error) {
	return s.updateFn(ctx, cardID, newStatus, caller)
}

func (s *stubCardService) GetUserCards(ctx context.Context, userID string, caller ports.Caller) ([]ports.CardView, error) {
	return s.listFn(ctx, userID, caller)
}

func (s *stubCardService) HasActiveCard(ctx context.Context, userID string) (bool, error) {
	return s.hasActiveFn(ctx, userID)
}

func (s *stubCardService) DeactivateCard(ctx context.Context, cardID string, caller ports.Caller) error {
	return nil
}

func TestCardHandler_Create_DefaultExpiry(t *testing.T) {
	before := time.Now().UTC()
	stub := &stubCardService{
		createFn: func(ctx context.Context, in ports.CreateCardInput) (*ports.CardView, error) {
			// Default validity of 12 months applies when expires_at is omitted.
			min := before.AddDate(0, 12, 0).Add(-time.Minute)
			max := before.AddDate(0, 12, 0).Add(time.Minute)
			if in.ExpiresAt.Before(min) || in.ExpiresAt.After(max) {
				t.Fatalf("unexpected default expiry: %v", in.ExpiresAt)
			}
			return &ports.CardView{
				ID:         "card-1",
				CardNumber: "LIB-0A1B2C3D",
				UserID:     in.UserID,
				Status:     "active",
				IssuedAt:   before,
				ExpiresAt:  in.ExpiresAt,
			}, nil
		},
	}
	h := NewCardHandler(stub, 12)

	c, rec := newTestContext(t, http.MethodPost, "/v1/cards", `{"user_id":"kc-member"}`)

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp cardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.CardNumber != "LIB-0A1B2C3D" || resp.Status != "active" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCardHandler_Create_ExplicitExpiry(t *testing.T) {
	want := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	stub := &stubCardService{
		createFn: func(ctx context.Context, in ports.CreateCardInput) (*ports.CardView, error) {
			if !in.ExpiresAt.Equal(want) {
				t.Fatalf("expected explicit expiry %v, got %v", want, in.ExpiresAt)
			}
			return &ports.CardView{ID: "card-1", UserID: in.UserID, Status: "active", ExpiresAt: in.ExpiresAt}, nil
		},
	}
	h := NewCardHandler(stub, 12)

	c, rec := newTestContext(t, http.MethodPost, "/v1/cards",
		`{"user_id":"kc-member","expires_at":"2027-03-01T00:00:00Z"}`)

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestCardHandler_UpdateStatus(t *testing.T) {
	stub := &stubCardService{
		updateFn: func(ctx context.Context, cardID, newStatus string, caller ports.Caller) (*ports.CardView, error) {
			if cardID != "card-1" || newStatus != "blocked" {
				t.Fatalf("unexpected args: %s %s", cardID, newStatus)
			}
			return &ports.CardView{ID: cardID, Status: newStatus}, nil
		},
	}
	h := NewCardHandler(stub, 12)

	c, rec := newTestContext(t, http.MethodPatch, "/v1/cards/card-1/status", `{"status":"blocked"}`)
	c.SetParamNames("id")
	c.SetParamValues("card-1")

	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCardHandler_UpdateStatus_UnknownStatus(t *testing.T) {
	stub := &stubCardService{
		updateFn: func(ctx context.Context, cardID, newStatus string, caller ports.Caller) (*ports.CardView, error) {
			t.Fatalf("service should not be called")
			return nil, nil
		},
	}
	h := NewCardHandler(stub, 12)

	c, _ := newTestContext(t, http.MethodPatch, "/v1/cards/card-1/status", `{"status":"frozen"}`)
	c.SetParamNames("id")
	c.SetParamValues("card-1")

	err := h.UpdateStatus(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 HTTPError, got %v", err)
	}
}

func TestCardHandler_ListForUser(t *testing.T) {
	stub := &stubCardService{
		listFn: func(ctx context.Context, userID string, caller ports.Caller) ([]ports.CardView, error) {
			if userID != "kc-member" || caller.Role != domain.RoleLibrarian {
				t.Fatalf("unexpected args: %s %+v", userID, caller)
			}
			return []ports.CardView{
				{ID: "card-1", UserID: userID, Status: "active"},
				{ID: "card-2", UserID: userID, Status: "expired"},
			}, nil
		},
	}
	h := NewCardHandler(stub, 12)

	c, rec := newTestContext(t, http.MethodGet, "/v1/users/kc-member/cards", "")
	c.SetParamNames("user_id")
	c.SetParamValues("kc-member")

	if err := h.ListForUser(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp listCardsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Count != 2 || len(resp.Data) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCardHandler_HasActive(t *testing.T) {
	stub := &stubCardService{
		hasActiveFn: func(ctx context.Context, userID string) (bool, error) {
			return true, nil
		},
	}
	h := NewCardHandler(stub, 12)

	c, rec := newTestContext(t, http.MethodGet, "/v1/users/kc-member/cards/active", "")
	c.SetParamNames("user_id")
	c.SetParamValues("kc-member")

	if err := h.HasActive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp activeCardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Active || resp.UserID != "kc-member" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
