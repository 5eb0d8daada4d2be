package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
)

// AttachmentHandler serves the documents appended to an agreement PDF.
type AttachmentHandler struct {
	attachments *service.AttachmentService
}

func NewAttachmentHandler(attachments *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments}
}

// Upload POST /agreements/:id/attachments (multipart "file", "title", "category")
func (h *AttachmentHandler) Upload(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	agreementID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	up, f, ok := common.FormFile(c, "file")
	if !ok {
		return
	}
	defer f.Close()

	att, err := h.attachments.Upload(c.Request.Context(), actor, agreementID, c.PostForm("title"), c.PostForm("category"), up)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, att)
}

// List GET /agreements/:id/attachments
func (h *AttachmentHandler) List(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	agreementID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	items, err := h.attachments.List(c.Request.Context(), actor, agreementID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attachments": items})
}

// Download GET /attachments/:id
func (h *AttachmentHandler) Download(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	file, err := h.attachments.Open(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.SendFile(c, file, false)
}

// Delete DELETE /attachments/:id
func (h *AttachmentHandler) Delete(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.attachments.Delete(c.Request.Context(), actor, id); err != nil {
		common.RespondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
