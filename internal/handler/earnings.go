package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// EarningsHandler handles HTTP requests for the earnings ledger.
type EarningsHandler struct {
	ledger *service.LedgerService
}

// NewEarningsHandler creates a new EarningsHandler.
func NewEarningsHandler(ledger *service.LedgerService) *EarningsHandler {
	return &EarningsHandler{ledger: ledger}
}

// RequestPayoutRequest is the HTTP request body for a payout.
type RequestPayoutRequest struct {
	Method string `json:"method"`
}

// CompletePayoutRequest is the HTTP request body reporting a payout result.
type CompletePayoutRequest struct {
	Succeeded bool `json:"succeeded"`
}

// CompletePayoutResponse is the HTTP response for a settled payout.
type CompletePayoutResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"payment_status"`
	Count     int    `json:"count"`
}

// Summary handles GET /v1/riders/:id/earnings/summary?start=&end=
func (h *EarningsHandler) Summary(c *gin.Context) {
	start, end, ok := period(c)
	if !ok {
		return
	}

	summary, err := h.ledger.Summarize(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, summary)
}

// Buckets handles GET /v1/riders/:id/earnings/buckets?start=&end=&granularity=
func (h *EarningsHandler) Buckets(c *gin.Context) {
	start, end, ok := period(c)
	if !ok {
		return
	}
	granularity := service.Granularity(c.DefaultQuery("granularity", string(service.GranularityDay)))

	buckets, err := h.ledger.Buckets(c.Request.Context(), c.Param("id"), start, end, granularity)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, buckets)
}

// Pending handles GET /v1/riders/:id/earnings/pending
func (h *EarningsHandler) Pending(c *gin.Context) {
	summary, err := h.ledger.PendingTotal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, summary)
}

// RequestPayout handles POST /v1/riders/:id/payouts
func (h *EarningsHandler) RequestPayout(c *gin.Context) {
	var req RequestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	payout, err := h.ledger.RequestPayout(c.Request.Context(), c.Param("id"), domain.PayoutMethod(req.Method))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, payout)
}

// CompletePayout handles POST /v1/payouts/:reference/complete
func (h *EarningsHandler) CompletePayout(c *gin.Context) {
	var req CompletePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	reference := c.Param("reference")
	n, err := h.ledger.CompletePayout(c.Request.Context(), reference, req.Succeeded)
	if err != nil {
		respondError(c, err)
		return
	}

	status := domain.PaymentStatusFailed
	if req.Succeeded {
		status = domain.PaymentStatusPaid
	}
	respondJSON(c, http.StatusOK, CompletePayoutResponse{
		Reference: reference,
		Status:    string(status),
		Count:     n,
	})
}

// period reads the start and end query parameters. Both accept RFC 3339 or
// a plain date, read as midnight UTC.
func period(c *gin.Context) (time.Time, time.Time, bool) {
	start, err := parseTime(c.Query("start"))
	if err != nil {
		badRequest(c, "start must be RFC 3339 or YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	end, err := parseTime(c.Query("end"))
	if err != nil {
		badRequest(c, "end must be RFC 3339 or YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
