package handler

import (
	"errors"
	"io"
	"net/http"

	"slippers/internal/service"
	"slippers/pkg/payment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	signatureHeader = "X-Octo-Signature"
	maxNotifyBody   = 64 << 10
)

// WebhookHandler receives OCTO notify callbacks. OCTO retries anything that
// is not a 200, so every outcome except an unreadable callback is acknowledged.
type WebhookHandler struct {
	svc    *service.PaymentService
	secret string
	log    *zap.Logger
}

func NewWebhookHandler(svc *service.PaymentService, secret string, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{svc: svc, secret: secret, log: log}
}

// Notify handles POST /octo/notify.
func (h *WebhookHandler) Notify(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotifyBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.secret != "" && !payment.Verify(body, c.GetHeader(signatureHeader), h.secret) {
		h.log.Warn("[notify] signature mismatch", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	n, err := payment.ParseNotification(body, c.ContentType())
	if err != nil {
		h.log.Warn("[notify] rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.HandleNotify(c.Request.Context(), service.NotifyInput{
		ExternalReference: n.ExternalReference,
		ShopTransactionID: n.ShopTransactionID,
		Status:            n.Status,
		Raw:               n.Raw,
	})
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrUnknownPayment):
		// already logged by the service
	case err != nil:
		h.log.Error("[notify] reconciliation failed",
			zap.String("external_reference", n.ExternalReference), zap.String("status", n.Status), zap.Error(err))
	default:
		h.log.Info("[notify] processed",
			zap.Uint("payment_id", res.PaymentID), zap.String("status", string(res.Status)), zap.Bool("changed", res.Changed))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
