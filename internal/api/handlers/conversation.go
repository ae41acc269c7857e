package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/services"
)

type ConversationHandler struct {
	conversations *services.ConversationService
	messages      *services.MessageService
}

func NewConversationHandler(conversations *services.ConversationService, messages *services.MessageService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, messages: messages}
}

// CreateConversation godoc
// @Summary Get or create a conversation
// @Description Returns the existing conversation for the buyer, seller and product, creating it on first contact
// @Tags conversations
// @Accept json
// @Produce json
// @Param request body models.CreateConversationRequest true "Participants"
// @Success 200 {object} models.ConversationResponse "Existing conversation"
// @Success 201 {object} models.ConversationResponse "Created conversation"
// @Failure 400 {object} models.ErrorResponse "Invalid participants"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /conversations [post]
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	conv, created, err := h.conversations.GetOrCreate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create conversation")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, models.NewConversationResponse(conv))
}

// GetUserConversations godoc
// @Summary List a user's conversations
// @Description Conversations where the user holds the given role, most recent first
// @Tags conversations
// @Produce json
// @Param userId query string true "User ID"
// @Param role query string true "Role" Enums(buyer, seller)
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {array} models.ConversationSummary
// @Failure 400 {object} models.ErrorResponse "Invalid query"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /conversations [get]
func (h *ConversationHandler) GetUserConversations(c *gin.Context) {
	var q models.ConversationListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	summaries, err := h.conversations.ListForUser(c.Request.Context(), q)
	if err != nil {
		respondError(c, err, "Failed to get conversations")
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}
	c.JSON(http.StatusOK, summaries)
}

// GetConversationMessages godoc
// @Summary Get messages in a conversation
// @Description Messages visible to the user, oldest first within the page
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Param userId query string true "User ID"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {array} models.Message
// @Failure 400 {object} models.ErrorResponse "Invalid query"
// @Failure 403 {object} models.ErrorResponse "Not a participant"
// @Failure 404 {object} models.ErrorResponse "Conversation not found"
// @Router /conversations/{id}/messages [get]
func (h *ConversationHandler) GetConversationMessages(c *gin.Context) {
	var q models.MessageListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	msgs, err := h.messages.List(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		respondError(c, err, "Failed to get messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// MarkAsRead godoc
// @Summary Mark a conversation as read
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body models.UserActionRequest true "Reader"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse "Not a participant"
// @Failure 404 {object} models.ErrorResponse "Conversation not found"
// @Router /conversations/{id}/read [put]
func (h *ConversationHandler) MarkAsRead(c *gin.Context) {
	var req models.UserActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if _, err := h.conversations.MarkRead(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		respondError(c, err, "Failed to mark conversation as read")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// DeleteConversation godoc
// @Summary Delete a conversation for one participant
// @Description Hides the conversation for the caller; it is fully deleted once both participants delete it
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Param userId query string true "User ID"
// @Success 200 {object} models.DeleteConversationResponse
// @Failure 403 {object} models.ErrorResponse "Not a participant"
// @Failure 404 {object} models.ErrorResponse "Conversation not found"
// @Router /conversations/{id} [delete]
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: http.StatusBadRequest, Message: "userId is required"})
		return
	}

	fully, err := h.conversations.Delete(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to delete conversation")
		return
	}
	c.JSON(http.StatusOK, models.DeleteConversationResponse{Success: true, FullyDeleted: fully})
}
