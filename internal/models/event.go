package models

import "time"

// Realtime event names published on a participant's channel.
const (
	EventSendMessage      = "send_message"
	EventMessageStatus    = "message_status"
	EventMessagesRead     = "messages_read"
	EventConversationGone = "conversation_deleted"
)

type RoleContext struct {
	SenderRole Role   `json:"senderRole"`
	BuyerID    string `json:"buyerId"`
	SellerID   string `json:"sellerId"`
}

// SendMessageEvent is the payload of EventSendMessage.
type SendMessageEvent struct {
	MessageID      string         `json:"messageId"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	MessageType    MessageType    `json:"messageType"`
	Content        MessageContent `json:"content"`
	ReplyTo        *string        `json:"replyTo,omitempty"`
	Timestamp      int64          `json:"timestamp"`
	Status         MessageStatus  `json:"status"`
	RoleContext    RoleContext    `json:"roleContext"`
}

func NewSendMessageEvent(conv *Conversation, msg *Message) SendMessageEvent {
	return SendMessageEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		MessageType:    msg.MessageType,
		Content:        msg.Content,
		ReplyTo:        msg.ReplyToID,
		Timestamp:      msg.CreatedAt.UnixMilli(),
		Status:         msg.Status,
		RoleContext: RoleContext{
			SenderRole: msg.Metadata.SenderRole,
			BuyerID:    conv.BuyerID,
			SellerID:   conv.SellerID,
		},
	}
}

type MessageStatusEvent struct {
	MessageID      string        `json:"messageId"`
	ConversationID string        `json:"conversationId"`
	Status         MessageStatus `json:"status"`
	Timestamp      int64         `json:"timestamp"`
}

type MessagesReadEvent struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
	Count          int64  `json:"count"`
	Timestamp      int64  `json:"timestamp"`
}

type ConversationDeletedEvent struct {
	ConversationID string `json:"conversationId"`
	Timestamp      int64  `json:"timestamp"`
}

// MessageEvent is the durable record streamed to downstream consumers once a
// message becomes visible to its receiver.
type MessageEvent struct {
	Type           string      `json:"type"`
	MessageID      string      `json:"messageId"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	ReceiverID     string      `json:"receiverId"`
	ProductID      string      `json:"productId,omitempty"`
	MessageType    MessageType `json:"messageType"`
	SentAt         time.Time   `json:"sentAt"`
}

const MessageEventSent = "message.sent"
