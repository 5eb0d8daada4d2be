package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
)

// Stripe caps event payloads well below this.
const maxWebhookBody = 1 << 20

// WebhookProcessor verifies and applies one Stripe delivery.
type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, signature string) (string, error)
}

// WebhookHandler receives Stripe events. It answers 200 whatever happens;
// failures are recorded and alerted by the processor.
type WebhookHandler struct {
	processor WebhookProcessor
}

func NewWebhookHandler(processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// Stripe POST /stripe/webhook/
func (h *WebhookHandler) Stripe(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		logger.L().WithError(err).Warn("stripe webhook: read body")
		c.JSON(http.StatusOK, gin.H{"status": models.WebhookStatusFailed})
		return
	}

	status, err := h.processor.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil && status == "" {
		status = "rejected"
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}
