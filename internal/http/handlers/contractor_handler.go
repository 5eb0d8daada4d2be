package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
)

// ContractorHandler serves the contractor's own profile, Stripe onboarding
// and customer list.
type ContractorHandler struct {
	contractors *service.ContractorService
}

func NewContractorHandler(contractors *service.ContractorService) *ContractorHandler {
	return &ContractorHandler{contractors: contractors}
}

// GetProfile GET /contractors/me
func (h *ContractorHandler) GetProfile(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	profile, err := h.contractors.Profile(c.Request.Context(), actor)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateProfile PATCH /contractors/me
func (h *ContractorHandler) UpdateProfile(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req service.UpdateContractorInput
	if !common.BindJSON(c, &req) {
		return
	}

	profile, err := h.contractors.UpdateProfile(c.Request.Context(), actor, req)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// StartOnboarding POST /contractors/me/onboarding
func (h *ContractorHandler) StartOnboarding(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	link, err := h.contractors.StartOnboarding(c.Request.Context(), actor)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}

// OnboardingStatus GET /contractors/me/onboarding
func (h *ContractorHandler) OnboardingStatus(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	status, err := h.contractors.OnboardingStatus(c.Request.Context(), actor)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// ListHomeowners GET /homeowners?search=
func (h *ContractorHandler) ListHomeowners(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	page := common.GetPagination(c)
	items, total, err := h.contractors.ListHomeowners(c.Request.Context(), actor, c.Query("search"), page)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondPage(c, items, total, page)
}
