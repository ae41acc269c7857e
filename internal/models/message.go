package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// enum
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeVoice    MessageType = "voice"
	MessageTypeDocument MessageType = "document"
)

func (t MessageType) IsValid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeVoice, MessageTypeDocument:
		return true
	default:
		return false
	}
}

// IsMedia is true for every type that goes through the placeholder/upload flow.
func (t MessageType) IsMedia() bool {
	return t.IsValid() && t != MessageTypeText
}

// HasDuration is true for playable media.
func (t MessageType) HasDuration() bool {
	return t == MessageTypeVideo || t == MessageTypeVoice
}

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

var messageTransitions = map[MessageStatus][]MessageStatus{
	MessageStatusPending:   {MessageStatusSent, MessageStatusFailed},
	MessageStatusFailed:    {MessageStatusPending},
	MessageStatusSent:      {MessageStatusDelivered},
	MessageStatusDelivered: {MessageStatusRead},
}

// CanTransitionTo reports whether the delivery state machine allows s -> next.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	for _, allowed := range messageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true for statuses with no outgoing transition.
func (s MessageStatus) IsTerminal() bool {
	return len(messageTransitions[s]) == 0
}

// SourcesOf returns every status that may move to next.
func SourcesOf(next MessageStatus) []MessageStatus {
	var sources []MessageStatus
	for _, from := range []MessageStatus{
		MessageStatusPending, MessageStatusSent, MessageStatusFailed, MessageStatusDelivered, MessageStatusRead,
	} {
		if from.CanTransitionTo(next) {
			sources = append(sources, from)
		}
	}
	return sources
}

const (
	MaxTextRunes    = 5000
	MaxCaptionRunes = 1000
	maxPreviewRunes = 120
)

// MessageContent is the per-type payload, persisted as one JSON column.
// Only the fields relevant to the message type are populated.
type MessageContent struct {
	Text        string   `json:"text,omitempty"`
	Caption     string   `json:"caption,omitempty"`
	URL         string   `json:"url,omitempty"`
	ObjectKey   string   `json:"objectKey,omitempty"`
	Size        int64    `json:"size,omitempty"`
	SizeLabel   string   `json:"sizeLabel,omitempty"`
	MimeType    string   `json:"mimeType,omitempty"`
	DurationSec *float64 `json:"durationSec,omitempty"`
	FileName    string   `json:"fileName,omitempty"`
	Extension   string   `json:"extension,omitempty"`
}

// Validate checks the variant fields required by t once content is attached.
func (c MessageContent) Validate(t MessageType) error {
	switch t {
	case MessageTypeText:
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("text is required")
		}
		if utf8.RuneCountInString(c.Text) > MaxTextRunes {
			return fmt.Errorf("text exceeds %d characters", MaxTextRunes)
		}
	case MessageTypeImage, MessageTypeVideo, MessageTypeVoice, MessageTypeDocument:
		if c.URL == "" {
			return fmt.Errorf("%s url is required", t)
		}
		if c.Size <= 0 {
			return fmt.Errorf("%s size is required", t)
		}
		if c.MimeType == "" {
			return fmt.Errorf("%s mime type is required", t)
		}
		if t == MessageTypeDocument && c.FileName == "" {
			return fmt.Errorf("document file name is required")
		}
	default:
		return fmt.Errorf("invalid message type: %s", t)
	}
	return nil
}

// Preview renders the short text used for lastMessage and push bodies.
func (c MessageContent) Preview(t MessageType) string {
	switch t {
	case MessageTypeText:
		return truncateRunes(c.Text, maxPreviewRunes)
	case MessageTypeImage:
		return "📷 " + orDefault(c.Caption, "Photo")
	case MessageTypeVideo:
		return "🎥 " + orDefault(c.Caption, "Video")
	case MessageTypeVoice:
		return "🎵 Voice message"
	case MessageTypeDocument:
		return "📄 " + orDefault(c.FileName, "Document")
	default:
		return ""
	}
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

// MessageMetadata is captured at creation and never changes.
type MessageMetadata struct {
	SenderRole       Role  `gorm:"type:varchar(16)" json:"senderRole"`
	CreatedTimestamp int64 `json:"createdTimestamp"`
}

/** --------------------ENTITIES-------------------- */

type Message struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string         `gorm:"type:varchar(36);not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	SenderID       string         `gorm:"type:varchar(64);not null" json:"senderId"`
	MessageType    MessageType    `gorm:"type:varchar(16);not null" json:"messageType"`
	Content        MessageContent `gorm:"serializer:json;type:text" json:"content"`
	Status         MessageStatus  `gorm:"type:varchar(16);not null;index" json:"status"`
	ReplyToID      *string        `gorm:"type:varchar(36)" json:"replyTo,omitempty"`

	DeletedByBuyer  bool `gorm:"not null;default:false" json:"-"`
	DeletedBySeller bool `gorm:"not null;default:false" json:"-"`
	IsDeleted       bool `gorm:"not null;default:false" json:"isDeleted"`

	Metadata MessageMetadata `gorm:"embedded;embeddedPrefix:meta_" json:"metadata"`

	CreatedAt time.Time `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (m *Message) DeletedFor(slot Role) bool {
	switch slot {
	case RoleBuyer:
		return m.DeletedByBuyer
	case RoleSeller:
		return m.DeletedBySeller
	default:
		return false
	}
}

// Preview is the lastMessage text for this message.
func (m *Message) Preview() string {
	return m.Content.Preview(m.MessageType)
}

/** -------------------- DTOs -------------------- */

// Request
type SendTextRequest struct {
	ConversationID   string  `json:"conversationId" binding:"required"`
	SenderID         string  `json:"senderId" binding:"required"`
	Text             string  `json:"text" binding:"required,max=5000"`
	ReplyToMessageID *string `json:"replyToMessageId,omitempty"`
}

type CreatePlaceholderRequest struct {
	ConversationID   string      `json:"conversationId" binding:"required"`
	SenderID         string      `json:"senderId" binding:"required"`
	MessageType      MessageType `json:"messageType" binding:"required,mediatype"`
	Caption          string      `json:"caption,omitempty" binding:"omitempty,max=1000"`
	ReplyToMessageID *string     `json:"replyToMessageId,omitempty"`
}

type UploadContentForm struct {
	SenderID    string   `form:"senderId" binding:"required"`
	DurationSec *float64 `form:"durationSec" binding:"omitempty,min=0"`
	FileName    string   `form:"fileName" binding:"omitempty,max=255"`
	MimeType    string   `form:"mimeType" binding:"omitempty,max=127"`
}

type MessageListQuery struct {
	UserID string `form:"userId" binding:"required"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Response
type UploadFailureResponse struct {
	Error     string        `json:"error"`
	MessageID string        `json:"messageId"`
	Status    MessageStatus `json:"status"`
	Retryable bool          `json:"retryable"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}
