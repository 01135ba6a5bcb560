package handler

import (
	"net/http"

	"slippers/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	svc *service.PaymentService
	log *zap.Logger
}

func NewPaymentHandler(svc *service.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, log: log}
}

// createPaymentRequest accepts both snake_case and camelCase order ids and
// either amount alias, in major units as a number or a string.
type createPaymentRequest struct {
	OrderID     uint             `json:"order_id"`
	OrderIDAlt  uint             `json:"orderId"`
	Amount      *decimal.Decimal `json:"amount"`
	TotalSum    *decimal.Decimal `json:"total_sum"`
	Description string           `json:"description"`
}

// Create starts an OCTO payment for an order. POST /octo/create
func (h *PaymentHandler) Create(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	orderID := req.OrderID
	if orderID == 0 {
		orderID = req.OrderIDAlt
	}
	res, err := h.svc.Create(c.Request.Context(), callerFrom(c), service.CreatePaymentInput{
		OrderID:     orderID,
		Amount:      req.Amount,
		TotalSum:    req.TotalSum,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type refundRequest struct {
	ExternalReference string           `json:"external_payment_reference"`
	OctoPaymentUUID   string           `json:"octo_payment_UUID"`
	Amount            *decimal.Decimal `json:"amount"`
}

// Refund returns money for a paid payment. POST /octo/refund (admin)
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ref := req.ExternalReference
	if ref == "" {
		ref = req.OctoPaymentUUID
	}
	res, err := h.svc.Refund(c.Request.Context(), callerFrom(c), service.RefundInput{ExternalReference: ref, Amount: req.Amount})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Status queries the gateway and reconciles the payment. GET /octo/status/:reference
func (h *PaymentHandler) Status(c *gin.Context) {
	res, err := h.svc.Sync(c.Request.Context(), callerFrom(c), c.Param("reference"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// History handles GET /admin/payments/:id/history.
func (h *PaymentHandler) History(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	res, err := h.svc.History(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
