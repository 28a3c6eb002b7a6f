package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blackroad.io/operator/internal/api/middleware"
	"blackroad.io/operator/internal/ledger"
	"blackroad.io/operator/models"
)

// LedgerHandler serves the witnessing ledger.
type LedgerHandler struct {
	ledger *ledger.Ledger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(l *ledger.Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

// List handles GET /api/v1/ledger?task_id=&after=&limit=.
//
// Entries are returned in chain order starting after seq `after`.
func (h *LedgerHandler) List(c *gin.Context) {
	after, err := queryInt(c, "after", 0)
	if err != nil || after < 0 {
		mapErrorToResponse(c, models.ErrInvalidRequest)
		return
	}
	limit, err := queryInt(c, "limit", ledger.DefaultListLimit)
	if err != nil || limit < 0 {
		mapErrorToResponse(c, models.ErrInvalidRequest)
		return
	}

	entries, err := h.ledger.List(c.Request.Context(), c.Query("task_id"), int64(after), limit)
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, entries)
}

// Head handles GET /api/v1/ledger/head.
func (h *LedgerHandler) Head(c *gin.Context) {
	head, err := h.ledger.Head(c.Request.Context())
	if err != nil {
		mapErrorToResponse(c, err)
		return
	}
	if head == nil {
		mapErrorToResponse(c, models.ErrNotFound)
		return
	}
	respondSuccess(c, http.StatusOK, head)
}

// VerifyResponse carries a broken chain's report alongside the error.
type VerifyResponse struct {
	ErrorResponse
	Data *models.LedgerVerification `json:"data"`
}

// Verify handles GET /api/v1/ledger/verify.
//
// Returns:
//   - 200 OK with the report when the chain verifies
//   - 500 with error "ledger_corrupted" and the report when it does not
func (h *LedgerHandler) Verify(c *gin.Context) {
	report, err := h.ledger.Verify(c.Request.Context())
	if err != nil {
		if errors.Is(err, models.ErrLedgerCorrupted) && report != nil {
			middleware.GetLogger(c).Error("ledger verification failed",
				zap.Int64("broken_at", report.BrokenAt),
				zap.String("reason", report.Reason),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, VerifyResponse{
				ErrorResponse: ErrorResponse{
					Error:     "ledger_corrupted",
					Message:   "Witness ledger chain is broken",
					RequestID: middleware.GetRequestID(c),
				},
				Data: report,
			})
			return
		}
		mapErrorToResponse(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, report)
}
