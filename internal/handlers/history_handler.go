package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/repository"
	"bank-reconciliation-backend/internal/services/history"
)

// EntityHandler serves the entity pickers, entity history and payment recording.
type EntityHandler struct {
	entities   *repository.EntityRepository
	payments   *repository.PaymentRepository
	aggregator *history.Aggregator
}

func NewEntityHandler(entities *repository.EntityRepository, payments *repository.PaymentRepository, aggregator *history.Aggregator) *EntityHandler {
	return &EntityHandler{entities: entities, payments: payments, aggregator: aggregator}
}

func (h *EntityHandler) ListEntities(c *gin.Context) {
	kind, err := models.ParseEntityKind(c.Param("kind"))
	if err != nil {
		respondError(c, err)
		return
	}

	items, err := h.entities.ListEntities(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "items": items})
}

// History returns the entity's bank matches, invoices and payments. The
// optional name query parameter drives the invoice name search.
func (h *EntityHandler) History(c *gin.Context) {
	kind, err := models.ParseEntityKind(c.Param("kind"))
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.aggregator.History(c.Request.Context(), kind, c.Param("id"), c.Query("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type paymentPayload struct {
	EntityKind  string          `json:"entity_kind" binding:"required,entitykind"`
	EntityID    string          `json:"entity_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAt      string          `json:"paid_at"` // "2006-01-02"
	Reference   string          `json:"reference"`
	BankMatchID string          `json:"bank_match_id" binding:"omitempty,uuid"`
}

func (h *EntityHandler) RecordPayment(c *gin.Context) {
	var payload paymentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}
	if !payload.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	kind, err := models.ParseEntityKind(payload.EntityKind)
	if err != nil {
		respondError(c, err)
		return
	}
	payment := &models.Payment{
		EntityKind: kind,
		EntityID:   payload.EntityID,
		Amount:     payload.Amount,
		Reference:  payload.Reference,
	}
	if payload.PaidAt != "" {
		paidAt, err := time.Parse("2006-01-02", payload.PaidAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paid_at format, expected yyyy-mm-dd"})
			return
		}
		payment.PaidAt = paidAt
	}
	if payload.BankMatchID != "" {
		id := uuid.MustParse(payload.BankMatchID)
		payment.BankMatchID = &id
	}

	if err := h.payments.Record(c.Request.Context(), payment); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "payment recorded", "payment": payment})
}
