package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/middleware"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/ws"
)

// WSHandler upgrades connections to the personal notification room and to
// conversation rooms. Browsers cannot set headers on a websocket handshake,
// so the access token travels as ?token=.
type WSHandler struct {
	hub      *ws.Hub
	tokens   middleware.AccessParser
	chat     *service.ChatService
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *ws.Hub, tokens middleware.AccessParser, chat *service.ChatService, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		chat:   chat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

func (h *WSHandler) authenticate(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Query("token")
	if raw == "" {
		common.RespondError(c, errUnauthorized)
		return uuid.Nil, false
	}
	userID, _, err := h.tokens.ParseAccess(raw)
	if err != nil || userID == uuid.Nil {
		common.RespondError(c, errUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// Notifications serves GET /ws?token=...
func (h *WSHandler) Notifications(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(conn, h.hub, ws.UserRoom(userID), userID, nil)
	client.Run(c.Request.Context())
}

// Conversation serves GET /ws/conversations/:id?token=...
// Only participants may join; inbound frames become chat messages.
func (h *WSHandler) Conversation(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}
	conversationID, ok := common.UUIDParam(c, "id")
	if !ok {
		return
	}
	if _, err := h.chat.Authorize(c.Request.Context(), userID, conversationID); err != nil {
		common.RespondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(conn, h.hub, ws.ConversationRoom(conversationID), userID, h.chat.Inbound(conversationID))
	client.Run(c.Request.Context())
}
