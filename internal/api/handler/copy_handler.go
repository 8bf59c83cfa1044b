package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bibliora/library-system/internal/api/metrics"
	"github.com/bibliora/library-system/internal/core/domain"
	"github.com/bibliora/library-system/internal/core/ports"
)

// CopyHandler handles HTTP requests for the book-copy lifecycle.
type CopyHandler struct {
	service        ports.CopyService
	loanPeriodDays int
	dailyFineRate  float64
}

func NewCopyHandler(service ports.CopyService, loanPeriodDays int, dailyFineRate float64) *CopyHandler {
	return &CopyHandler{
		service:        service,
		loanPeriodDays: loanPeriodDays,
		dailyFineRate:  dailyFineRate,
	}
}

// Create handles POST /v1/books/:book_id/copies — registers a batch of
// physical copies for a catalog entry.
func (h *CopyHandler) Create(c echo.Context) error {
	var req createCopiesRequest
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

	startNumber := req.StartNumber
	if startNumber == 0 {
		startNumber = 1
	}

	views, err := h.service.CreateCopies(c.Request().Context(), ports.CreateCopiesInput{
		BookID:      c.Param("book_id"),
		Count:       req.Count,
		StartNumber: startNumber,
		Condition:   req.Condition,
		Location:    req.Location,
		Caller:      caller,
	})
	if err != nil {
		return err
	}

	resp := createCopiesResponse{Data: make([]copyResponse, 0, len(views)), Count: len(views)}
	for _, v := range views {
		resp.Data = append(resp.Data, toCopyResponse(v))
	}
	return c.JSON(http.StatusCreated, resp)
}

// Borrow handles POST /v1/copies/:id/borrow.
func (h *CopyHandler) Borrow(c echo.Context) error {
	var req borrowCopyRequest
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

	loanDays := req.LoanPeriodDays
	if loanDays == 0 {
		loanDays = h.loanPeriodDays
	}

	view, err := h.service.BorrowCopy(c.Request().Context(), ports.BorrowCopyInput{
		CopyID:         c.Param("id"),
		BorrowerID:     req.BorrowerID,
		LoanPeriodDays: loanDays,
		Caller:         caller,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCopyConflict) {
			metrics.CirculationConflictsTotal.WithLabelValues("borrow").Inc()
		}
		return err
	}

	metrics.CopiesBorrowedTotal.Inc()
	return c.JSON(http.StatusOK, toCopyResponse(*view))
}

// Return handles POST /v1/copies/:id/return.
func (h *CopyHandler) Return(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	view, err := h.service.ReturnCopy(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		if errors.Is(err, domain.ErrCopyConflict) {
			metrics.CirculationConflictsTotal.WithLabelValues("return").Inc()
		}
		return err
	}

	metrics.CopiesReturnedTotal.Inc()
	return c.JSON(http.StatusOK, toCopyResponse(*view))
}

// Reserve handles POST /v1/copies/:id/reserve.
func (h *CopyHandler) Reserve(c echo.Context) error {
	var req reserveCopyRequest
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

	view, err := h.service.ReserveCopy(c.Request().Context(), ports.ReserveCopyInput{
		CopyID:     c.Param("id"),
		ReserverID: req.ReserverID,
		Caller:     caller,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCopyConflict) {
			metrics.CirculationConflictsTotal.WithLabelValues("reserve").Inc()
		}
		return err
	}

	metrics.CopiesReservedTotal.Inc()
	return c.JSON(http.StatusOK, toCopyResponse(*view))
}

// BestAvailable handles GET /v1/books/:book_id/copies/best — picks the copy a
// desk clerk should hand out next.
func (h *CopyHandler) BestAvailable(c echo.Context) error {
	view, err := h.service.FindBestAvailableCopy(c.Request().Context(), c.Param("book_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCopyResponse(*view))
}

// Fine handles GET /v1/copies/:id/fine. The daily_rate query parameter
// overrides the configured rate.
func (h *CopyHandler) Fine(c echo.Context) error {
	rate := h.dailyFineRate
	if raw := c.QueryParam("daily_rate"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "daily_rate must be a non-negative number")
		}
		rate = parsed
	}

	fine, err := h.service.CalculateOverdueFine(c.Request().Context(), c.Param("id"), rate)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, fineResponse{
		CopyID:    c.Param("id"),
		Fine:      fine,
		DailyRate: rate,
	})
}

// Maintenance handles POST /v1/copies/maintenance — bulk sweep, best effort
// per copy. Always 200: per-copy outcomes are in the body.
func (h *CopyHandler) Maintenance(c echo.Context) error {
	var req maintenanceSweepRequest
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

	results := h.service.MarkCopiesForMaintenance(c.Request().Context(), req.CopyIDs, caller)

	resp := maintenanceSweepResponse{Results: make([]maintenanceResultResponse, 0, len(results))}
	for _, r := range results {
		if !r.Marked && r.Reason == domain.ErrCopyConflict.Error() {
			metrics.CirculationConflictsTotal.WithLabelValues("maintenance").Inc()
		}
		resp.Results = append(resp.Results, maintenanceResultResponse{
			CopyID: r.CopyID,
			Marked: r.Marked,
			Reason: r.Reason,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// CompleteMaintenance handles POST /v1/copies/:id/maintenance/complete.
func (h *CopyHandler) CompleteMaintenance(c echo.Context) error {
	var req completeMaintenanceRequest
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

	view, err := h.service.CompleteMaintenance(c.Request().Context(), c.Param("id"), req.Condition, caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCopyResponse(*view))
}

// MarkLost handles POST /v1/copies/:id/lost.
func (h *CopyHandler) MarkLost(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	view, err := h.service.MarkCopyLost(c.Request().Context(), c.Param("id"), caller)
	if err != nil {
		if errors.Is(err, domain.ErrCopyConflict) {
			metrics.CirculationConflictsTotal.WithLabelValues("lost").Inc()
		}
		return err
	}
	return c.JSON(http.StatusOK, toCopyResponse(*view))
}

// Overdue handles GET /v1/copies/overdue — the overdue report.
func (h *CopyHandler) Overdue(c echo.Context) error {
	views, err := h.service.ListOverdueCopies(c.Request().Context())
	if err != nil {
		return err
	}

	resp := listCopiesResponse{Data: make([]copyResponse, 0, len(views)), Count: len(views)}
	for _, v := range views {
		resp.Data = append(resp.Data, toCopyResponse(v))
	}
	return c.JSON(http.StatusOK, resp)
}

// DueSoon handles GET /v1/copies/due-soon — copies due within the next `days`
// days (default 3), feeding courtesy reminders.
func (h *CopyHandler) DueSoon(c echo.Context) error {
	days := 3
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive integer")
		}
		days = parsed
	}

	views, err := h.service.ListCopiesDueWithin(c.Request().Context(), days)
	if err != nil {
		return err
	}

	resp := listCopiesResponse{Data: make([]copyResponse, 0, len(views)), Count: len(views)}
	for _, v := range views {
		resp.Data = append(resp.Data, toCopyResponse(v))
	}
	return c.JSON(http.StatusOK, resp)
}

// Statistics handles GET /v1/books/:book_id/copies/statistics.
func (h *CopyHandler) Statistics(c echo.Context) error {
	stats, err := h.service.GetStatistics(c.Request().Context(), c.Param("book_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statisticsResponse{
		Total:            stats.Total,
		Available:        stats.Available,
		Borrowed:         stats.Borrowed,
		Reserved:         stats.Reserved,
		Maintenance:      stats.Maintenance,
		AvailabilityRate: stats.AvailabilityRate,
		UtilizationRate:  stats.UtilizationRate,
	})
}

// Deletable handles GET /v1/books/:book_id/deletable — tells the catalog
// service whether all copies of the book are out of circulation.
func (h *CopyHandler) Deletable(c echo.Context) error {
	ok, err := h.service.CanBookBeDeleted(c.Request().Context(), c.Param("book_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deletableResponse{
		BookID:    c.Param("book_id"),
		Deletable: ok,
	})
}

// Delete handles DELETE /v1/copies/:id — soft delete.
func (h *CopyHandler) Delete(c echo.Context) error {
	caller, err := ctxCaller(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteCopy(c.Request().Context(), c.Param("id"), caller); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// toCopyResponse maps the service DTO to the wire shape.
func toCopyResponse(v ports.CopyView) copyResponse {
	return copyResponse{
		ID:         v.ID,
		BookID:     v.BookID,
		CopyNumber: v.CopyNumber,
		Status:     v.Status,
		Condition:  v.Condition,
		Location:   v.Location,
		BorrowedBy: v.BorrowedBy,
		BorrowedAt: v.BorrowedAt,
		DueAt:      v.DueAt,
	}
}
