package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/otcping/walletauth/core"
	"github.com/otcping/walletauth/service"
)

// DataHandlers serves the role, beta and chat RPCs. Every route runs behind
// AuthMiddleware.
type DataHandlers struct {
	access *service.AccessService
	chats  *service.ChatService
}

// NewDataHandlers creates new data handlers
func NewDataHandlers(access *service.AccessService, chats *service.ChatService) *DataHandlers {
	return &DataHandlers{access: access, chats: chats}
}

// HasRole handles has_role
func (h *DataHandlers) HasRole(c *gin.Context) {
	var req struct {
		UserID string    `json:"_user_id" binding:"required"`
		Role   core.Role `json:"_role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("Invalid request"))
		return
	}

	ok, err := h.access.HasRole(c.Request.Context(), req.UserID, req.Role)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ok)
}

// GetUserRole handles get_user_role
func (h *DataHandlers) GetUserRole(c *gin.Context) {
	var req struct {
		UserID string `json:"_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("Invalid request"))
		return
	}

	role, err := h.access.GetUserRole(c.Request.Context(), req.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if role == "" {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, role)
}

// HasBetaAccess handles has_beta_access
func (h *DataHandlers) HasBetaAccess(c *gin.Context) {
	var req struct {
		CheckUserID string `json:"check_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("Invalid request"))
		return
	}

	ok, err := h.access.HasBetaAccess(c.Request.Context(), req.CheckUserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ok)
}

// GetBetaSettings handles get_beta_settings
func (h *DataHandlers) GetBetaSettings(c *gin.Context) {
	settings, err := h.access.GetBetaSettings(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// SetUserRole handles set_user_role
func (h *DataHandlers) SetUserRole(c *gin.Context) {
	var req struct {
		UserID string    `json:"_user_id" binding:"required"`
		Role   core.Role `json:"_role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("Invalid request"))
		return
	}

	caller := currentSession(c)
	if err := h.access.SetUserRole(c.Request.Context(), caller.UserID, req.UserID, req.Role); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nil)
}

// SetBetaSettings handles set_beta_settings
func (h *DataHandlers) SetBetaSettings(c *gin.Context) {
	var req core.BetaSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("Invalid request"))
		return
	}

	caller := currentSession(c)
	if err := h.access.SetBetaSettings(c.Request.Context(), caller.UserID, req); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nil)
}

// GrantBetaAccess handles grant_beta_access
func (h *DataHandlers) GrantBetaAccess(c *gin.Context) {
	var req struct {
		UserID string `json:"_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("Invalid request"))
		return
	}

	caller := currentSession(c)
	if err := h.access.GrantBetaAccess(c.Request.Context(), caller.UserID, req.UserID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nil)
}

// IncrementUnreadCount handles increment_unread_count
func (h *DataHandlers) IncrementUnreadCount(c *gin.Context) {
	var req struct {
		ChatID   string `json:"chat_id" binding:"required"`
		SenderID string `json:"sender_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("Invalid request"))
		return
	}

	caller := currentSession(c)
	if err := h.chats.IncrementUnreadCount(c.Request.Context(), caller.UserID, req.ChatID, req.SenderID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nil)
}

// CreateChat creates a chat owned by the caller
func (h *DataHandlers) CreateChat(c *gin.Context) {
	var req struct {
		Name         string   `json:"name" binding:"required"`
		Participants []string `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest("Invalid request"))
		return
	}

	caller := currentSession(c)
	chat, err := h.chats.CreateChat(c.Request.Context(), caller.UserID, req.Name, req.Participants)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

// Unread returns the caller's unread counters
func (h *DataHandlers) Unread(c *gin.Context) {
	caller := currentSession(c)
	counts, err := h.chats.UnreadCounts(c.Request.Context(), caller.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
