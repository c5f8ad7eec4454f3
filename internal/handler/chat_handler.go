package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notebridge/notebridge-api/internal/service"
	appErrors "github.com/notebridge/notebridge-api/pkg/errors"
	"github.com/notebridge/notebridge-api/pkg/response"
)

// ChatHandler wires conversations to HTTP routes.
type ChatHandler struct {
	chats *service.ChatService
}

// NewChatHandler constructs a new ChatHandler.
func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// CreateOrGet godoc
// @Summary Open or resume a chat
// @Description Returns the existing chat with the counterpart, or creates one
// @Tags Chats
// @Accept json
// @Produce json
// @Param payload body service.CreateChatRequest true "Chat payload"
// @Success 200 {object} response.Envelope
// @Router /chats [post]
func (h *ChatHandler) CreateOrGet(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid chat payload"))
		return
	}

	summary, err := h.chats.CreateOrGet(c.Request.Context(), claims.UserID, claims.Role, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if summary.IsNew {
		response.Created(c, summary)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// List godoc
// @Summary List own chats
// @Tags Chats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /chats [get]
func (h *ChatHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summaries, err := h.chats.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Get godoc
// @Summary Get chat detail
// @Tags Chats
// @Produce json
// @Param id path string true "Chat ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chats/{id} [get]
func (h *ChatHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	chat, err := h.chats.Get(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chat, nil)
}

// UpdateSubject godoc
// @Summary Update chat subject
// @Tags Chats
// @Accept json
// @Produce json
// @Param id path string true "Chat ID"
// @Param payload body service.UpdateChatSubjectRequest true "Subject payload"
// @Success 200 {object} response.Envelope
// @Router /chats/{id}/subject [put]
func (h *ChatHandler) UpdateSubject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateChatSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subject payload"))
		return
	}

	chat, err := h.chats.UpdateSubject(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, chat, nil)
}
