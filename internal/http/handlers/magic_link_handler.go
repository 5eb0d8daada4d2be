package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/dto"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
)

// MagicLinkHandler serves homeowners who follow the emailed link instead of
// logging in. The token in the path is the only credential.
type MagicLinkHandler struct {
	agreements *service.AgreementService
	documents  *service.DocumentService
	invoices   *service.InvoiceService
}

func NewMagicLinkHandler(agreements *service.AgreementService, documents *service.DocumentService, invoices *service.InvoiceService) *MagicLinkHandler {
	return &MagicLinkHandler{agreements: agreements, documents: documents, invoices: invoices}
}

func magicToken(c *gin.Context) (uuid.UUID, bool) {
	return common.UUIDParam(c, "token")
}

// Get GET /magic/agreements/:token
func (h *MagicLinkHandler) Get(c *gin.Context) {
	token, ok := magicToken(c)
	if !ok {
		return
	}

	detail, err := h.agreements.GetByToken(c.Request.Context(), token)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// Sign POST /magic/agreements/:token/sign
func (h *MagicLinkHandler) Sign(c *gin.Context) {
	token, ok := magicToken(c)
	if !ok {
		return
	}

	var req dto.SignRequest
	if !common.BindJSON(c, &req) {
		return
	}

	agreement, err := h.agreements.SignByToken(c.Request.Context(), token, req.TypedName, c.ClientIP())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, agreement)
}

// FundEscrow POST /magic/agreements/:token/fund-escrow
func (h *MagicLinkHandler) FundEscrow(c *gin.Context) {
	token, ok := magicToken(c)
	if !ok {
		return
	}

	intent, err := h.agreements.FundEscrowByToken(c.Request.Context(), token)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, intent)
}

// DownloadPDF GET /magic/agreements/:token/pdf
func (h *MagicLinkHandler) DownloadPDF(c *gin.Context) {
	token, ok := magicToken(c)
	if !ok {
		return
	}

	file, err := h.documents.DownloadByToken(c.Request.Context(), token)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SendFile(c, file, true)
}

// ListInvoices GET /magic/agreements/:token/invoices
func (h *MagicLinkHandler) ListInvoices(c *gin.Context) {
	token, ok := magicToken(c)
	if !ok {
		return
	}

	page := common.GetPagination(c)
	items, total, err := h.invoices.ListByToken(c.Request.Context(), token, page)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondPage(c, items, total, page)
}

// ApproveInvoice POST /magic/agreements/:token/invoices/:id/approve
func (h *MagicLinkHandler) ApproveInvoice(c *gin.Context) {
	token, ok := magicToken(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	inv, err := h.invoices.Approve(c.Request.Context(), service.TokenActor(token), id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

// DisputeInvoice POST /magic/agreements/:token/invoices/:id/dispute
func (h *MagicLinkHandler) DisputeInvoice(c *gin.Context) {
	token, ok := magicToken(c)
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

	inv, err := h.invoices.Dispute(c.Request.Context(), service.TokenActor(token), id, req.Reason)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}
