package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/dto"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
)

var errUnauthorized = apperror.ErrUnauthorized

// ConversationHandler serves the agreement chat over REST. Live delivery
// goes through WSHandler.
type ConversationHandler struct {
	chat *service.ChatService
}

func NewConversationHandler(chat *service.ChatService) *ConversationHandler {
	return &ConversationHandler{chat: chat}
}

// ForAgreement GET /agreements/:id/conversation
func (h *ConversationHandler) ForAgreement(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	agreementID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}

	conv, err := h.chat.ForAgreement(c.Request.Context(), actor, agreementID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// ListMine GET /conversations
func (h *ConversationHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, errUnauthorized)
		return
	}

	items, err := h.chat.ListForUser(c.Request.Context(), userID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": items})
}

// ListMessages GET /conversations/:conversationId/messages
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, errUnauthorized)
		return
	}
	conversationID, ok := common.UUIDParam(c, "conversationId")
	if !ok {
		return
	}

	page := common.GetPagination(c)
	items, total, err := h.chat.Messages(c.Request.Context(), userID, conversationID, page)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondPage(c, items, total, page)
}

// SendMessage POST /conversations/:conversationId/messages
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, errUnauthorized)
		return
	}
	conversationID, ok := common.UUIDParam(c, "conversationId")
	if !ok {
		return
	}

	var req dto.MessageRequest
	if !common.BindJSON(c, &req) {
		return
	}

	msg, err := h.chat.Post(c.Request.Context(), userID, conversationID, req.Text)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}
