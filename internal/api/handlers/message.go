package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/services"
)

type MessageHandler struct {
	messages *services.MessageService
}

func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// SendText godoc
// @Summary Send a text message
// @Tags messages
// @Accept json
// @Produce json
// @Param request body models.SendTextRequest true "Message"
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse "Invalid message"
// @Failure 403 {object} models.ErrorResponse "Not a participant"
// @Failure 404 {object} models.ErrorResponse "Conversation not found"
// @Router /messages/text [post]
func (h *MessageHandler) SendText(c *gin.Context) {
	var req models.SendTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.messages.SendText(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to send message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// CreatePlaceholder godoc
// @Summary Create a media message placeholder
// @Description Creates a pending media message; the attachment is uploaded separately
// @Tags messages
// @Accept json
// @Produce json
// @Param request body models.CreatePlaceholderRequest true "Placeholder"
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse "Invalid message"
// @Failure 403 {object} models.ErrorResponse "Not a participant"
// @Router /messages/placeholder [post]
func (h *MessageHandler) CreatePlaceholder(c *gin.Context) {
	var req models.CreatePlaceholderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.messages.CreatePlaceholder(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// UploadContent godoc
// @Summary Upload the attachment of a pending message
// @Description Stores the file and moves the message to sent. A failed upload leaves the message failed and can be retried.
// @Tags messages
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Message ID"
// @Param file formData file true "Attachment"
// @Param senderId formData string true "Sender ID"
// @Param durationSec formData number false "Duration for voice and video"
// @Param fileName formData string false "Original file name"
// @Param mimeType formData string false "MIME type"
// @Success 200 {object} models.Message
// @Failure 400 {object} models.ErrorResponse "Invalid attachment"
// @Failure 409 {object} models.ErrorResponse "Message is not awaiting an upload"
// @Failure 500 {object} models.UploadFailureResponse "Upload failed"
// @Router /messages/{id}/upload [post]
func (h *MessageHandler) UploadContent(c *gin.Context) {
	var form models.UploadContentForm
	if err := c.ShouldBind(&form); err != nil {
		respondBindError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		respondBindError(c, err)
		return
	}
	file, err := header.Open()
	if err != nil {
		respondBindError(c, err)
		return
	}
	defer file.Close()

	fileName := form.FileName
	if fileName == "" {
		fileName = header.Filename
	}
	mimeType := form.MimeType
	if mimeType == "" {
		mimeType = header.Header.Get("Content-Type")
	}

	messageID := c.Param("id")
	msg, err := h.messages.AttachContent(c.Request.Context(), messageID, services.AttachRequest{
		SenderID:     form.SenderID,
		Body:         file,
		Size:         header.Size,
		FileName:     fileName,
		MimeType:     mimeType,
		DurationHint: form.DurationSec,
	})
	if err != nil {
		if errors.Is(err, services.ErrUpload) {
			c.JSON(http.StatusInternalServerError, models.UploadFailureResponse{
				Error:     err.Error(),
				MessageID: messageID,
				Status:    models.MessageStatusFailed,
				Retryable: true,
			})
			return
		}
		respondError(c, err, "Failed to attach content")
		return
	}
	c.JSON(http.StatusOK, msg)
}

// MarkDelivered godoc
// @Summary Acknowledge delivery of a message
// @Tags messages
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param request body models.UserActionRequest true "Receiver"
// @Success 200 {object} models.Message
// @Failure 403 {object} models.ErrorResponse "Only the receiver can acknowledge"
// @Failure 409 {object} models.ErrorResponse "Message not sent yet"
// @Router /messages/{id}/delivered [put]
func (h *MessageHandler) MarkDelivered(c *gin.Context) {
	var req models.UserActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.messages.MarkDelivered(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		respondError(c, err, "Failed to mark message delivered")
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage godoc
// @Summary Delete a message for one participant
// @Tags messages
// @Produce json
// @Param id path string true "Message ID"
// @Param userId query string true "User ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse "Not a participant"
// @Failure 404 {object} models.ErrorResponse "Message not found"
// @Router /messages/{id} [delete]
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: http.StatusBadRequest, Message: "userId is required"})
		return
	}

	if _, err := h.messages.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		respondError(c, err, "Failed to delete message")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}
