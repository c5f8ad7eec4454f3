package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/notebridge/notebridge-api/internal/service"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
	"github.com/notebridge/notebridge-api/pkg/response"
)

// MessageHandler exposes chat messages and read-state endpoints.
type MessageHandler struct {
	messages *service.MessageService
}

// NewMessageHandler constructs a new MessageHandler.
func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Send godoc
// @Summary Send a message
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "Chat ID"
// @Param payload body service.SendMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chats/{id}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	message, err := h.messages.Send(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message)
}

// List godoc
// @Summary List chat messages
// @Description Paginated history, newest first
// @Tags Messages
// @Produce json
// @Param id path string true "Chat ID"
// @Param page query int false "Page number" default(0)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} response.Envelope
// @Router /chats/{id}/messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	messages, pagination, err := h.messages.List(c.Request.Context(), c.Param("id"), claims.UserID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, pagination)
}

// Recent godoc
// @Summary Latest chat messages
// @Tags Messages
// @Produce json
// @Param id path string true "Chat ID"
// @Success 200 {object} response.Envelope
// @Router /chats/{id}/messages/recent [get]
func (h *MessageHandler) Recent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	messages, err := h.messages.Recent(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}

// MarkAllRead godoc
// @Summary Mark chat as read
// @Description Marks every unread counterpart message in the chat as read
// @Tags Messages
// @Produce json
// @Param id path string true "Chat ID"
// @Success 200 {object} response.Envelope
// @Router /chats/{id}/read [post]
func (h *MessageHandler) MarkAllRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	affected, err := h.messages.MarkAllRead(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"marked_read": affected}, nil)
}

// UnreadCount godoc
// @Summary Unread count for a chat
// @Tags Messages
// @Produce json
// @Param id path string true "Chat ID"
// @Success 200 {object} response.Envelope
// @Router /chats/{id}/unread-count [get]
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	count, err := h.messages.UnreadCount(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread_count": count}, nil)
}

// TotalUnread godoc
// @Summary Total unread across all chats
// @Tags Messages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /messages/unread-count [get]
func (h *MessageHandler) TotalUnread(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	count, err := h.messages.TotalUnread(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread_count": count}, nil)
}
