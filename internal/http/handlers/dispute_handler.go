package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/repository"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
)

type DisputeHandler struct {
	svc *service.DisputeService
}

func NewDisputeHandler(s *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{svc: s}
}

// CreateDispute POST /disputes
func (h *DisputeHandler) CreateDispute(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req service.CreateDisputeInput
	if !common.BindJSON(c, &req) {
		return
	}

	dispute, err := h.svc.Create(c.Request.Context(), actor, req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// GetDispute GET /disputes/:id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	dispute, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ListDisputes GET /disputes?agreement_id=&status=
func (h *DisputeHandler) ListDisputes(c *gin.Context) {
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
	f := repository.DisputeFilter{AgreementID: agreementID, Status: c.Query("status")}
	items, total, err := h.svc.List(c.Request.Context(), actor, f, page)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondPage(c, items, total, page)
}

// PayFee POST /disputes/:id/pay-fee
func (h *DisputeHandler) PayFee(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	intent, err := h.svc.PayFee(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, intent)
}

// Resolve POST /admin/disputes/:id/resolve
func (h *DisputeHandler) Resolve(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req service.ResolveDisputeInput
	if !common.BindJSON(c, &req) {
		return
	}

	dispute, err := h.svc.Resolve(c.Request.Context(), actor, id, req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// AddAttachment POST /disputes/:id/attachments (multipart "file")
func (h *DisputeHandler) AddAttachment(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	up, f, ok := common.FormFile(c, "file")
	if !ok {
		return
	}
	defer f.Close()

	att, err := h.svc.AddAttachment(c.Request.Context(), actor, id, up)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, att)
}

// ListAttachments GET /disputes/:id/attachments
func (h *DisputeHandler) ListAttachments(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	items, err := h.svc.ListAttachments(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attachments": items})
}
