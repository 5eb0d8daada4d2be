package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/dto"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/http/handlers/common"
	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/service"
)

// AuthHandler is the HTTP layer for accounts and sessions.
type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func requestMeta(c *gin.Context) map[string]string {
	return map[string]string{
		"user_agent": c.GetHeader("User-Agent"),
		"ip":         c.ClientIP(),
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterInput
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.auth.Register(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginInput
	if !common.BindJSON(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !common.BindJSON(c, &req) {
		return
	}

	tokens, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, requestMeta(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req dto.RefreshRequest
	if !common.BindJSON(c, &req) {
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		common.RespondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	user, err := h.auth.Me(c.Request.Context(), actor.UserID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) ListSessions(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	sessions, err := h.auth.ListSessions(c.Request.Context(), actor.UserID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// RequestPasswordReset handles POST /auth/password-reset. It always answers
// 202 so the endpoint cannot be used to probe for accounts.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.PasswordResetRequest
	if !common.BindJSON(c, &req) {
		return
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondDetail(c, http.StatusAccepted, "if the account exists, a reset link has been sent")
}

// ConfirmPasswordReset handles POST /auth/password-reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req dto.PasswordResetConfirmRequest
	if !common.BindJSON(c, &req) {
		return
	}

	if err := h.auth.ConfirmPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondDetail(c, http.StatusOK, "password updated")
}

// RequestEmailVerification handles POST /auth/verify-email.
func (h *AuthHandler) RequestEmailVerification(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	if err := h.auth.RequestEmailVerification(c.Request.Context(), actor.UserID); err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondDetail(c, http.StatusAccepted, "verification email sent")
}

// ConfirmEmail handles POST /auth/verify-email/confirm.
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	var req dto.EmailConfirmRequest
	if !common.BindJSON(c, &req) {
		return
	}

	if err := h.auth.ConfirmEmail(c.Request.Context(), req.Token); err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondDetail(c, http.StatusOK, "email verified")
}
