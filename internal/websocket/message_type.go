package websocket

import (
	"fmt"
	"time"
)

// MessageType is the type of a client <-> server control frame. Conversation
// events published by the services arrive as raw envelopes instead.
type MessageType string

const (
	// Connection events
	MessageTypeConnect MessageType = "connection.connect"

	// Presence events
	MessageTypeJoinConversation  MessageType = "conversation.join"
	MessageTypeLeaveConversation MessageType = "conversation.leave"

	// Delivery acknowledgement from the receiving client
	MessageTypeDelivered MessageType = "message.delivered"

	MessageTypePing MessageType = "ping"
	MessageTypePong MessageType = "pong"
	MessageTypeAck  MessageType = "ack"

	// Error events
	MessageTypeError MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
}

// IsClientType reports whether clients are allowed to send mt.
func (mt MessageType) IsClientType() bool {
	switch mt {
	case MessageTypeJoinConversation, MessageTypeLeaveConversation, MessageTypeDelivered, MessageTypePing:
		return true
	default:
		return false
	}
}

type Message struct {
	ID        string                 `json:"id"`
	Type      MessageType            `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`
}

func (m *Message) Validate() error {
	if !m.Type.IsClientType() {
		return fmt.Errorf("invalid message type: %s", m.Type)
	}
	if m.Data == nil {
		m.Data = make(map[string]interface{})
	}
	return nil
}

// StringField returns Data[key] when it is a non-empty string.
func (m *Message) StringField(key string) (string, bool) {
	v, ok := m.Data[key].(string)
	return v, ok && v != ""
}

func NewMessage(id string, msgType MessageType, userID string, data map[string]interface{}) *Message {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Message{
		ID:        id,
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
		UserID:    userID,
	}
}

func NewConnectMessage(id, clientID, userID string) *Message {
	return NewMessage(id, MessageTypeConnect, userID, map[string]interface{}{
		"client_id": clientID,
		"status":    "connected",
	})
}

func NewErrorMessage(id, userID, code, message string) *Message {
	return NewMessage(id, MessageTypeError, userID, map[string]interface{}{
		"code":    code,
		"message": message,
	})
}

// NewAckMessage confirms the client frame id was handled.
func NewAckMessage(id, userID string, data map[string]interface{}) *Message {
	return NewMessage(id, MessageTypeAck, userID, data)
}
