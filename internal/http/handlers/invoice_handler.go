package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/dto"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
)

type InvoiceHandler struct {
	invoices *service.InvoiceService
}

func NewInvoiceHandler(invoices *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// List GET /invoices?status=&agreement_id=
func (h *InvoiceHandler) List(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	agreementID, err := optionalUUID("agreement_id", c.Query("agreement_id"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	page := common.GetPagination(c)
	f := repository.InvoiceFilter{AgreementID: agreementID, Status: c.Query("status")}
	items, total, err := h.invoices.List(c.Request.Context(), actor, f, page)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondPage(c, items, total, page)
}

// Get GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.invoices.Get(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

// Approve POST /invoices/:id/approve
func (h *InvoiceHandler) Approve(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.invoices.Approve(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

// Dispute POST /invoices/:id/dispute
func (h *InvoiceHandler) Dispute(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.DisputeInvoiceRequest
	if !common.BindOptionalJSON(c, &req) {
		return
	}

	inv, err := h.invoices.Dispute(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

// MarkPaid POST /invoices/:id/mark-paid
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.invoices.MarkPaid(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}
