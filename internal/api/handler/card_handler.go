package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bibliora/library-system/internal/api/metrics"
	"github.com/bibliora/library-system/internal/core/ports"
)

// CardHandler handles HTTP requests for the library-card lifecycle.
type CardHandler struct {
	service            ports.CardService
	cardValidityMonths int
}

func NewCardHandler(service ports.CardService, cardValidityMonths int) *CardHandler {
	return &CardHandler{service: service, cardValidityMonths: cardValidityMonths}
}

// Create handles POST /v1/cards — issues a new card. When expires_at is
// omitted the configured validity period applies.
func (h *CardHandler) Create(c echo.Context) error {
	var req createCardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	expiresAt := time.Now().UTC().AddDate(0, h.cardValidityMonths, 0)
	if req.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "expires_at must be RFC3339")
		}
		expiresAt = parsed
	}

	view, err := h.service.CreateCard(c.Request().Context(), ports.CreateCardInput{
		UserID:    req.UserID,
		ExpiresAt: expiresAt,
		Caller:    caller,
	})
	if err != nil {
		return err
	}

	metrics.CardsIssuedTotal.Inc()
	return c.JSON(http.StatusCreated, toCardResponse(*view))
}

// UpdateStatus handles PATCH /v1/cards/:id/status.
func (h *CardHandler) UpdateStatus(c echo.Context) error {
	var req updateCardStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	view, err := h.service.UpdateCardStatus(c.Request().Context(), c.Param("id"), req.Status, caller)
	if err != nil {
		return err
	}

	metrics.CardStatusChangesTotal.WithLabelValues(view.Status).Inc()
	return c.JSON(http.StatusOK, toCardResponse(*view))
}

// ListForUser handles GET /v1/users/:user_id/cards. Members see only their
// own cards; the service enforces the ownership check.
func (h *CardHandler) ListForUser(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	views, err := h.service.GetUserCards(c.Request().Context(), c.Param("user_id"), caller)
	if err != nil {
		return err
	}

	resp := listCardsResponse{Data: make([]cardResponse, 0, len(views)), Count: len(views)}
	for _, v := range views {
		resp.Data = append(resp.Data, toCardResponse(v))
	}
	return c.JSON(http.StatusOK, resp)
}

// HasActive handles GET /v1/users/:user_id/cards/active — the hot-path check
// the loan desk runs before every checkout.
func (h *CardHandler) HasActive(c echo.Context) error {
	active, err := h.service.HasActiveCard(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, activeCardResponse{
		UserID: c.Param("user_id"),
		Active: active,
	})
}

// Deactivate handles DELETE /v1/cards/:id — soft delete.
func (h *CardHandler) Deactivate(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	if err := h.service.DeactivateCard(c.Request().Context(), c.Param("id"), caller); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// toCardResponse maps the service DTO to the wire shape.
func toCardResponse(v ports.CardView) cardResponse {
	return cardResponse{
		ID:         v.ID,
		CardNumber: v.CardNumber,
		UserID:     v.UserID,
		Status:     v.Status,
		IssuedAt:   v.IssuedAt,
		ExpiresAt:  v.ExpiresAt,
	}
}
