package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type createCopiesRequest struct {
	Count       int    `json:"count"        validate:"required,min=1,max=100"`
	StartNumber int    `json:"start_number" validate:"omitempty,min=1"`
	Condition   string `json:"condition"    validate:"required,oneof=new good fair poor damaged"`
	Location    string `json:"location"     validate:"required"`
}

type borrowCopyRequest struct {
	BorrowerID     string `json:"borrower_id"      validate:"required"`
	LoanPeriodDays int    `json:"loan_period_days" validate:"omitempty,min=1,max=365"`
}

type reserveCopyRequest struct {
	ReserverID string `json:"reserver_id" validate:"required"`
}

type maintenanceSweepRequest struct {
	CopyIDs []string `json:"copy_ids" validate:"required,min=1,dive,required"`
}

type completeMaintenanceRequest struct {
	Condition string `json:"condition" validate:"required,oneof=new good fair poor damaged"`
}

// Response-only types owned by the transport layer.
// These are intentionally separate from ports/domain types so the JSON
// contract is not coupled to internal service changes.

type copyResponse struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	CopyNumber string     `json:"copy_number"`
	Status     string     `json:"status"`
	Condition  string     `json:"condition"`
	Location   string     `json:"location"`
	BorrowedBy string     `json:"borrowed_by,omitempty"`
	BorrowedAt *time.Time `json:"borrowed_at,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
}

type createCopiesResponse struct {
	Data  []copyResponse `json:"data"`
	Count int            `json:"count"`
}

type listCopiesResponse struct {
	Data  []copyResponse `json:"data"`
	Count int            `json:"count"`
}

type maintenanceResultResponse struct {
	CopyID string `json:"copy_id"`
	Marked bool   `json:"marked"`
	Reason string `json:"reason,omitempty"`
}

type maintenanceSweepResponse struct {
	Results []maintenanceResultResponse `json:"results"`
}

type fineResponse struct {
	CopyID    string  `json:"copy_id"`
	Fine      float64 `json:"fine"`
	DailyRate float64 `json:"daily_rate"`
}

type statisticsResponse struct {
	Total            int64   `json:"total"`
	Available        int64   `json:"available"`
	Borrowed         int64   `json:"borrowed"`
	Reserved         int64   `json:"reserved"`
	Maintenance      int64   `json:"maintenance"`
	AvailabilityRate float64 `json:"availability_rate"`
	UtilizationRate  float64 `json:"utilization_rate"`
}

type deletableResponse struct {
	BookID    string `json:"book_id"`
	Deletable bool   `json:"deletable"`
}
