package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
)

// FailedWebhookLister reads the dead-letter log of Stripe deliveries.
type FailedWebhookLister interface {
	ListFailed(ctx context.Context, limit int) ([]models.WebhookEvent, error)
}

// ReleaseSweeper runs the auto-release of overdue approvals.
type ReleaseSweeper interface {
	ReleaseDue(ctx context.Context) (int, error)
}

// AdminHandler serves staff-only operations. Routes are guarded by
// RequireRole("admin").
type AdminHandler struct {
	webhooks FailedWebhookLister
	sweeper  ReleaseSweeper
}

func NewAdminHandler(webhooks FailedWebhookLister, sweeper ReleaseSweeper) *AdminHandler {
	return &AdminHandler{webhooks: webhooks, sweeper: sweeper}
}

// FailedWebhooks GET /admin/webhooks/failed?limit=
func (h *AdminHandler) FailedWebhooks(c *gin.Context) {
	limit := common.ParseIntQuery(c, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	events, err := h.webhooks.ListFailed(c.Request.Context(), limit)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// RunReleaseSweep POST /admin/invoices/release-due
func (h *AdminHandler) RunReleaseSweep(c *gin.Context) {
	released, err := h.sweeper.ReleaseDue(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"released": released})
}
