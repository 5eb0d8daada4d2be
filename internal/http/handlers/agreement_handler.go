package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/dto"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
)

// AgreementHandler serves agreements for logged-in parties.
type AgreementHandler struct {
	agreements *service.AgreementService
	documents  *service.DocumentService
}

func NewAgreementHandler(agreements *service.AgreementService, documents *service.DocumentService) *AgreementHandler {
	return &AgreementHandler{agreements: agreements, documents: documents}
}

// Create POST /agreements
func (h *AgreementHandler) Create(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req service.CreateAgreementInput
	if !common.BindJSON(c, &req) {
		return
	}

	detail, err := h.agreements.Create(c.Request.Context(), actor, req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, detail)
}

// List GET /agreements?status=&archived=&search=
func (h *AgreementHandler) List(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	in := service.ListAgreementsInput{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   common.GetPagination(c),
	}
	if raw := c.Query("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			common.RespondError(c, badQuery("archived", "Must be true or false"))
			return
		}
		in.Archived = &archived
	}

	items, total, err := h.agreements.List(c.Request.Context(), actor, in)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondPage(c, items, total, in.Page)
}

// Get GET /agreements/:id
func (h *AgreementHandler) Get(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.agreements.Get(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// Sign POST /agreements/:id/sign
func (h *AgreementHandler) Sign(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.SignRequest
	if !common.BindJSON(c, &req) {
		return
	}

	agreement, err := h.agreements.Sign(c.Request.Context(), actor, id, req.TypedName, c.ClientIP())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, agreement)
}

// FundEscrow POST /agreements/:id/fund-escrow
func (h *AgreementHandler) FundEscrow(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	intent, err := h.agreements.FundEscrow(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, intent)
}

// Amend POST /agreements/:id/amend
func (h *AgreementHandler) Amend(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	amended, err := h.agreements.Amend(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, amended)
}

// ListAmendments GET /agreements/:id/amendments
func (h *AgreementHandler) ListAmendments(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	items, err := h.agreements.ListAmendments(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"amendments": items})
}

// Merge POST /agreements/merge
func (h *AgreementHandler) Merge(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req dto.MergeAgreementsRequest
	if !common.BindJSON(c, &req) {
		return
	}

	res, err := h.agreements.Merge(c.Request.Context(), actor, req.AgreementIDs, req.PrimaryID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"primary":          res.Primary,
		"merged_ids":       res.Plan.ArchiveIDs,
		"added_cost":       res.Plan.AddedCost,
		"added_milestones": res.Plan.AddedMilestones,
		"added_days":       res.Plan.AddedDays,
	})
}

// SendInvite POST /agreements/:id/invite
func (h *AgreementHandler) SendInvite(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.agreements.SendInvite(c.Request.Context(), actor, id); err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondDetail(c, http.StatusAccepted, "invitation sent")
}

// PreviewPDF GET /agreements/:id/pdf/preview
func (h *AgreementHandler) PreviewPDF(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	file, err := h.documents.Preview(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SendFile(c, file, true)
}

// DownloadPDF GET /agreements/:id/pdf
func (h *AgreementHandler) DownloadPDF(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	file, err := h.documents.Download(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SendFile(c, file, c.Query("inline") == "true")
}
