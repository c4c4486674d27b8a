package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"freelancehub/internal/model"
	"freelancehub/internal/service"
)

type SettlementHandler struct {
	settlementService *service.SettlementService
}

func NewSettlementHandler(settlementService *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{
		settlementService: settlementService,
	}
}

// GenerateInvoice handles POST /milestones/:id/invoice
func (h *SettlementHandler) GenerateInvoice(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	milestoneID, ok := pathID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.settlementService.GenerateInvoice(c.Request.Context(), actor, milestoneID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// GetInvoice handles GET /invoices/:id
func (h *SettlementHandler) GetInvoice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.settlementService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// InitiatePayment handles POST /invoices/:id/pay
func (h *SettlementHandler) InitiatePayment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Amount         string `json:"amount"`
		Method         string `json:"method"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	amount, err := model.ParseMoney(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	payment, err := h.settlementService.InitiatePayment(c.Request.Context(), actor, service.InitiatePaymentInput{
		InvoiceID:      invoiceID,
		Amount:         amount,
		Method:         req.Method,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, payment)
}

// GetPayment handles GET /payments/:id
func (h *SettlementHandler) GetPayment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	payment, err := h.settlementService.GetPayment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// ConfirmWebhook handles POST /webhooks/payments. The gateway calls this
// with the settlement verdict; it is authenticated by a shared secret
// header checked in the router, not by a user token.
func (h *SettlementHandler) ConfirmWebhook(c *gin.Context) {
	var req struct {
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.TransactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	succeeded := req.Status == "succeeded" || req.Status == "completed"
	payment, err := h.settlementService.ConfirmPayment(c.Request.Context(), req.TransactionID, succeeded)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
}
